// Package enginetest provides an in-memory render host for exercising the
// pulse engine without a real UI.
//
// A Host records every render operation. Containers hold Nodes in order,
// Units mount their single Node into a Container, and Blocks are keyed
// Units suitable for the keyed reconciler.
//
// # Quick Start
//
//	h := enginetest.NewHost()
//	list := h.NewContainer("list")
//	a := enginetest.NewBlock(h, "a")
//	a.Create()
//	a.Mount(list, nil)
//	enginetest.ExpectOrder(t, list, "a")
//
// # Transitions
//
// Units created with WithIntro or WithOutro run real transitions through a
// transition.Manager when they enter or exit, and their Nodes record the
// lifecycle events they receive.
//
//	u := h.NewUnit("toast", enginetest.WithOutro(mgr, fade))
//	mgr.GroupOutros()
//	mgr.TransitionOut(u, true, true, func() {})
//	mgr.CheckOutros()
package enginetest
