package future

import "testing"

func TestResolveRunsCallbacksOnceInOrder(t *testing.T) {
	f := New()
	var order []int
	f.Then(func() { order = append(order, 1) })
	f.Then(func() { order = append(order, 2) })

	f.Resolve()
	f.Resolve()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected [1 2], got %v", order)
	}
	select {
	case <-f.Done():
	default:
		t.Error("expected Done to be closed")
	}
}

func TestThenAfterResolveRunsImmediately(t *testing.T) {
	f := Resolved()
	ran := false
	f.Then(func() { ran = true })
	if !ran {
		t.Error("expected callback to run immediately")
	}
	if !f.IsResolved() {
		t.Error("expected resolved")
	}
}

func TestUnresolvedDoneBlocks(t *testing.T) {
	f := New()
	select {
	case <-f.Done():
		t.Error("unresolved future must not be done")
	default:
	}
}
