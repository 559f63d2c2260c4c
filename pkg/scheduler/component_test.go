package scheduler

import (
	"errors"
	"reflect"
	"testing"
)

func TestMountRunsHooksInOrder(t *testing.T) {
	s, _ := newTestScheduler()
	unit := &fakeUnit{}
	c := s.NewComponent(ComponentOptions{Unit: unit})

	var order []string
	c.BeforeUpdate(func() { order = append(order, "before") })
	c.OnMount(func() func() {
		order = append(order, "mount")
		return func() { order = append(order, "mount-cleanup") }
	})
	c.AfterUpdate(func() { order = append(order, "after") })
	c.OnDestroy(func() { order = append(order, "destroy") })

	if err := c.Mount("root", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.created != 1 || unit.mounts != 1 {
		t.Errorf("expected unit created and mounted once, got %d/%d", unit.created, unit.mounts)
	}

	c.Destroy(true)
	c.Destroy(true)

	want := []string{"before", "mount", "after", "destroy", "mount-cleanup"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
	if unit.destroyed != 1 || !unit.detached {
		t.Errorf("expected unit destroyed once with detach, got %d/%v", unit.destroyed, unit.detached)
	}
	if c.Unit() != nil {
		t.Error("expected render unit to be dropped")
	}
}

func TestMountRunsUpdateBeforeHooks(t *testing.T) {
	s, _ := newTestScheduler()
	var order []string
	c := s.NewComponent(ComponentOptions{
		Unit:   &fakeUnit{},
		Update: func() { order = append(order, "update") },
	})
	c.BeforeUpdate(func() { order = append(order, "before") })

	if err := c.Mount("root", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"update", "before"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}

	c.MarkDirty(0)
	if err := s.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = append(want, "update", "before")
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestMountAfterDestroy(t *testing.T) {
	s, _ := newTestScheduler()
	c := s.NewComponent(ComponentOptions{Unit: &fakeUnit{}})
	c.Destroy(false)

	err := c.Mount("root", nil)
	if !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
}

func TestDestroyedComponentIgnoresMarkDirty(t *testing.T) {
	s, loop := newTestScheduler()
	unit := &fakeUnit{}
	c := s.NewComponent(ComponentOptions{Unit: unit})

	c.MarkDirty(0)
	c.Destroy(true)
	c.MarkDirty(1)
	loop.RunMicrotasks()

	if len(unit.patches) != 0 {
		t.Errorf("expected no patches after destroy, got %d", len(unit.patches))
	}
}

func TestDestroyRunsPendingAfterUpdateOnce(t *testing.T) {
	s, _ := newTestScheduler()
	c := s.NewComponent(ComponentOptions{Unit: &fakeUnit{}})
	calls := 0
	c.AfterUpdate(func() { calls++ })

	s.AddRenderFunc(func() {})
	for _, cb := range c.afterUpdate {
		s.AddRenderCallback(cb)
	}
	c.Destroy(true)
	if calls != 1 {
		t.Errorf("expected pending after-update to run on destroy, got %d", calls)
	}

	_ = s.Flush()
	if calls != 1 {
		t.Errorf("expected after-update not to run again, got %d", calls)
	}
}

func TestContextIsCopiedFromParent(t *testing.T) {
	s, _ := newTestScheduler()
	parent := s.NewComponent(ComponentOptions{Name: "parent"})
	parent.SetContext("theme", "dark")

	child := s.NewComponent(ComponentOptions{Name: "child", Parent: parent})
	if child.Context("theme") != "dark" {
		t.Errorf("expected inherited theme dark, got %v", child.Context("theme"))
	}

	child.SetContext("theme", "light")
	if parent.Context("theme") != "dark" {
		t.Errorf("expected parent context untouched, got %v", parent.Context("theme"))
	}

	parent.SetContext("lang", "en")
	if child.HasContext("lang") {
		t.Error("expected context set after construction not to reach the child")
	}

	all := child.AllContexts()
	all["theme"] = "mutated"
	if child.Context("theme") != "light" {
		t.Error("expected AllContexts to return a copy")
	}

	theme, ok := ContextValue[string](child, "theme")
	if !ok || theme != "light" {
		t.Errorf("expected light, got %q (%v)", theme, ok)
	}
}

func TestExplicitContextReplacesInherited(t *testing.T) {
	s, _ := newTestScheduler()
	parent := s.NewComponent(ComponentOptions{})
	parent.SetContext("a", 1)

	child := s.NewComponent(ComponentOptions{
		Parent:  parent,
		Context: map[any]any{"b": 2},
	})
	if child.HasContext("a") {
		t.Error("expected explicit context to replace the parent's")
	}
	if child.Context("b") != 2 {
		t.Errorf("expected b=2, got %v", child.Context("b"))
	}
}

func TestChildMountedDuringFlushJoinsIt(t *testing.T) {
	s, loop := newTestScheduler()
	childUnit := &fakeUnit{}
	child := s.NewComponent(ComponentOptions{Unit: childUnit})
	mounted := false
	child.OnMount(func() func() {
		mounted = true
		return nil
	})

	s.AddRenderFunc(func() {
		if err := child.Mount("root", nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	loop.RunMicrotasks()

	if !mounted {
		t.Error("expected on-mount hook to run within the same flush")
	}
	if s.Flushes() != 1 {
		t.Errorf("expected 1 flush, got %d", s.Flushes())
	}
}
