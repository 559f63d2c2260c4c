// Package errors provides the coded error type shared by the pulse engine.
//
// Every error that crosses a package boundary for a configuration problem or
// an invariant violation is an *EngineError carrying a stable code:
//
//	E1xx  configuration (spring config, transition config, config files)
//	E2xx  invariant violations (duplicate keys, update loops)
//	E3xx  host runtime (loop closed, dispatch queue full)
//	E4xx  inspector and capture export
//
// EngineError wraps the package-level sentinel errors, so callers can keep
// using errors.Is against e.g. spring.ErrInvalidConfig.
package errors
