package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNewKnownCode(t *testing.T) {
	err := New("E101")
	if err.Category != CategoryConfig {
		t.Errorf("expected category config, got %s", err.Category)
	}
	if err.Message != "Invalid spring configuration" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if !strings.HasSuffix(err.DocURL, "E101") {
		t.Errorf("expected doc url for E101, got %q", err.DocURL)
	}
}

func TestNewUnknownCode(t *testing.T) {
	err := New("E999")
	if err.Message != "Unknown error" {
		t.Errorf("expected Unknown error, got %q", err.Message)
	}
}

func TestWrapSupportsErrorsIs(t *testing.T) {
	sentinel := stderrors.New("boom")
	err := New("E103").Wrap(sentinel)
	if !stderrors.Is(err, sentinel) {
		t.Error("expected errors.Is to find the wrapped sentinel")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestFromErrorKeepsEngineErrors(t *testing.T) {
	orig := New("E201")
	if got := FromError(orig, "E103"); got != orig {
		t.Error("expected FromError to return the original EngineError")
	}
	if FromError(nil, "E103") != nil {
		t.Error("expected nil for nil error")
	}
}

func TestFormatWithoutColors(t *testing.T) {
	DisableColors()
	defer EnableColors()

	out := New("E202").WithDetail("flush exceeded 10 passes").Format()
	for _, want := range []string{"ERROR E202", "Update loop detected", "flush exceeded 10 passes", "Hint:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in formatted output:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	out := New("E122").WithDetail("frameRate=0").FormatJSON()
	if !strings.Contains(out, `"code":"E122"`) || !strings.Contains(out, `"detail":"frameRate=0"`) {
		t.Errorf("unexpected JSON: %s", out)
	}
}

func TestGetAllCodesSorted(t *testing.T) {
	codes := GetAllCodes()
	for i := 1; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 9)
	for _, l := range lines {
		if len(l) > 9 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if len(lines) < 3 {
		t.Errorf("expected wrapping, got %v", lines)
	}
}
