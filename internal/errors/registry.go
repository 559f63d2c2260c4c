package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
	DocURL     string
}

const docBase = "https://pulse.vango.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E139)
	// ============================================

	"E101": {
		Category:   CategoryConfig,
		Message:    "Invalid spring configuration",
		Suggestion: "Stiffness and damping must be greater than zero and precision must be positive",
		DocURL:     docBase + "E101",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "Unsupported spring value type",
		Suggestion: "Springs animate numbers, time.Time, and slices, maps or structs of those",
		DocURL:     docBase + "E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Transition configuration failed",
		DocURL:   docBase + "E103",
	},
	"E120": {
		Category:   CategoryConfig,
		Message:    "Invalid pulse configuration file",
		Suggestion: "Check that the file is valid JSON or YAML",
		DocURL:     docBase + "E120",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		DocURL:   docBase + "E121",
	},
	"E122": {
		Category:   CategoryConfig,
		Message:    "Invalid frame rate",
		Suggestion: "frameRate must be between 1 and 1000",
		DocURL:     docBase + "E122",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Invalid scheduler configuration",
		DocURL:   docBase + "E123",
	},
	"E124": {
		Category: CategoryConfig,
		Message:  "Unsupported configuration format",
		DocURL:   docBase + "E124",
	},

	// ============================================
	// Invariant Violations (E200-E219)
	// ============================================

	"E201": {
		Category:   CategoryInvariant,
		Message:    "Duplicate key in keyed list",
		Suggestion: "Keys must be unique within one sibling sequence",
		DocURL:     docBase + "E201",
	},
	"E202": {
		Category:   CategoryInvariant,
		Message:    "Update loop detected",
		Suggestion: "A component keeps marking itself or others dirty during every flush pass",
		DocURL:     docBase + "E202",
	},
	"E203": {
		Category: CategoryInvariant,
		Message:  "Component used after destroy",
		DocURL:   docBase + "E203",
	},

	// ============================================
	// Host Runtime Errors (E300-E319)
	// ============================================

	"E301": {
		Category: CategoryRuntime,
		Message:  "Host loop closed",
		DocURL:   docBase + "E301",
	},
	"E302": {
		Category:   CategoryRuntime,
		Message:    "Host dispatch queue full",
		Suggestion: "Increase the dispatch queue size or reduce cross-goroutine traffic",
		DocURL:     docBase + "E302",
	},

	// ============================================
	// Inspector Errors (E400-E419)
	// ============================================

	"E401": {
		Category: CategoryInspector,
		Message:  "Capture export failed",
		DocURL:   docBase + "E401",
	},
	"E402": {
		Category: CategoryInspector,
		Message:  "Inspector server failed",
		DocURL:   docBase + "E402",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
