package enginetest

import (
	"reflect"
	"testing"
)

// ExpectOrder fails the test if c's node labels differ from labels.
func ExpectOrder(t testing.TB, c *Container, labels ...string) {
	t.Helper()
	got := c.Labels()
	if len(got) == 0 && len(labels) == 0 {
		return
	}
	if !reflect.DeepEqual(got, labels) {
		t.Errorf("expected order %v, got %v", labels, got)
	}
}

// ExpectCount fails the test if h recorded a different number of kind ops.
func ExpectCount(t testing.TB, h *Host, kind OpKind, want int) {
	t.Helper()
	if got := h.Count(kind); got != want {
		t.Errorf("expected %d %s ops, got %d (%v)", want, kind, got, h.Ops())
	}
}
