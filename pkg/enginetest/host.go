package enginetest

import (
	"fmt"
	"strings"

	"github.com/vango-dev/pulse/pkg/transition"
)

// OpKind names a recorded render operation.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpMount   OpKind = "mount"
	OpMove    OpKind = "move"
	OpPatch   OpKind = "patch"
	OpEnter   OpKind = "enter"
	OpExit    OpKind = "exit"
	OpDestroy OpKind = "destroy"
)

// Op is one recorded operation.
type Op struct {
	Kind  OpKind
	Label string
}

// String formats the op as "kind:label".
func (o Op) String() string {
	return string(o.Kind) + ":" + o.Label
}

// Host records operations performed on its units.
type Host struct {
	ops []Op
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{}
}

func (h *Host) record(kind OpKind, label string) {
	h.ops = append(h.ops, Op{Kind: kind, Label: label})
}

// Ops returns every recorded operation in order.
func (h *Host) Ops() []Op {
	return append([]Op(nil), h.ops...)
}

// Count returns how many operations of kind were recorded.
func (h *Host) Count(kind OpKind) int {
	n := 0
	for _, op := range h.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Reset clears the operation log.
func (h *Host) Reset() {
	h.ops = h.ops[:0]
}

// NewContainer creates an empty container.
func (h *Host) NewContainer(name string) *Container {
	return &Container{name: name}
}

// Node is a leaf placed in a Container. It implements transition.Node,
// transition.Styled and transition.Inerter.
type Node struct {
	Label string

	parent    *Container
	events    []transition.EventKind
	animation string
	inert     bool
	sheet     *Sheet
}

// NewNode creates a detached node.
func NewNode(label string) *Node {
	return &Node{Label: label, sheet: &Sheet{}}
}

// Parent returns the container holding n, or nil.
func (n *Node) Parent() *Container {
	return n.parent
}

// Dispatch records a transition event.
func (n *Node) Dispatch(ev transition.Event) {
	n.events = append(n.events, ev.Kind)
}

// Events returns the transition events received so far.
func (n *Node) Events() []transition.EventKind {
	return append([]transition.EventKind(nil), n.events...)
}

// Animation implements transition.Styled.
func (n *Node) Animation() string {
	return n.animation
}

// SetAnimation implements transition.Styled.
func (n *Node) SetAnimation(value string) {
	n.animation = value
}

// Sheet implements transition.Styled.
func (n *Node) Sheet() transition.Sheet {
	return n.sheet
}

// Inert implements transition.Inerter.
func (n *Node) Inert() bool {
	return n.inert
}

// SetInert implements transition.Inerter.
func (n *Node) SetInert(inert bool) {
	n.inert = inert
}

// Sheet is an in-memory style sheet.
type Sheet struct {
	Rules  []string
	Clears int
}

// InsertRule implements transition.Sheet.
func (s *Sheet) InsertRule(rule string) {
	s.Rules = append(s.Rules, rule)
}

// Clear implements transition.Sheet.
func (s *Sheet) Clear() {
	s.Rules = nil
	s.Clears++
}

// Container is an ordered list of nodes.
type Container struct {
	name     string
	children []*Node
}

// Name returns the container's name.
func (c *Container) Name() string {
	return c.name
}

// Children returns the nodes in order.
func (c *Container) Children() []*Node {
	return append([]*Node(nil), c.children...)
}

// Labels returns the labels of the nodes in order.
func (c *Container) Labels() []string {
	labels := make([]string, len(c.children))
	for i, n := range c.children {
		labels[i] = n.Label
	}
	return labels
}

// String renders the container as "name[a b c]".
func (c *Container) String() string {
	return fmt.Sprintf("%s[%s]", c.name, strings.Join(c.Labels(), " "))
}

// Insert places n before anchor, or at the end when anchor is nil. A node
// already in a container is moved. It reports whether n was moved.
func (c *Container) Insert(n *Node, anchor *Node) bool {
	moved := n.parent != nil
	if moved {
		n.parent.Remove(n)
	}
	n.parent = c

	if anchor == nil || anchor.parent != c {
		c.children = append(c.children, n)
		return moved
	}
	for i, child := range c.children {
		if child == anchor {
			c.children = append(c.children[:i], append([]*Node{n}, c.children[i:]...)...)
			return moved
		}
	}
	c.children = append(c.children, n)
	return moved
}

// Remove detaches n from c.
func (c *Container) Remove(n *Node) {
	for i, child := range c.children {
		if child == n {
			c.children = append(c.children[:i], c.children[i+1:]...)
			n.parent = nil
			return
		}
	}
}
