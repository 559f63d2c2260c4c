package transition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/pulse/pkg/frame"
)

// rulePrefix marks animation names generated by a StyleManager.
const rulePrefix = "__pulse"

// Sheet receives generated keyframe rules.
type Sheet interface {
	InsertRule(rule string)
	Clear()
}

// Styled is implemented by nodes that can play generated CSS keyframe
// animations. Nodes that are not Styled ignore Config.CSS.
type Styled interface {
	Node

	// Animation returns the node's current animation declaration.
	Animation() string

	// SetAnimation replaces the node's animation declaration.
	SetAnimation(value string)

	// Sheet returns the style sheet that holds rules for this node.
	Sheet() Sheet
}

// StyleManager turns CSS transition functions into keyframe rules and
// tracks how many generated animations are active. When the last one is
// removed the sheets are cleared on the next frame.
type StyleManager struct {
	frames *frame.Registry
	rules  map[Sheet]map[string]struct{}
	active int
}

// NewStyleManager creates a style manager that schedules sheet clearing
// on frames.
func NewStyleManager(frames *frame.Registry) *StyleManager {
	return &StyleManager{
		frames: frames,
		rules:  make(map[Sheet]map[string]struct{}),
	}
}

// Active returns the number of generated animations currently applied.
func (sm *StyleManager) Active() int {
	return sm.active
}

// Keyframes renders the keyframe block animating from a to b. It emits one
// step per frame interval plus a final 100% frame.
func Keyframes(a, b float64, duration, interval time.Duration, ease Easing, css func(t, u float64) string) string {
	steps := 1
	if duration > 0 && interval > 0 {
		steps = int(math.Ceil(float64(duration) / float64(interval)))
	}

	var sb strings.Builder
	sb.WriteString("{\n")
	for i := 0; i < steps; i++ {
		p := float64(i) / float64(steps)
		t := a + (b-a)*ease(p)
		sb.WriteString(strconv.FormatFloat(p*100, 'f', -1, 64))
		sb.WriteString("%{")
		sb.WriteString(css(t, 1-t))
		sb.WriteString("}\n")
	}
	sb.WriteString("100% {")
	sb.WriteString(css(b, 1-b))
	sb.WriteString("}\n}")
	return sb.String()
}

// CreateRule inserts a keyframe rule animating node from a to b and appends
// it to the node's animation. It returns the generated rule name, or "" if
// node is not Styled.
func (sm *StyleManager) CreateRule(node Node, a, b float64, duration, delay time.Duration, ease Easing, css func(t, u float64) string, uid int) string {
	styled, ok := node.(Styled)
	if !ok || css == nil {
		return ""
	}

	rule := Keyframes(a, b, duration, sm.frames.FrameInterval(), ease, css)
	name := fmt.Sprintf("%s_%d_%d", rulePrefix, hashRule(rule), uid)

	sheet := styled.Sheet()
	if sheet != nil {
		inserted, ok := sm.rules[sheet]
		if !ok {
			inserted = make(map[string]struct{})
			sm.rules[sheet] = inserted
		}
		if _, dup := inserted[name]; !dup {
			inserted[name] = struct{}{}
			sheet.InsertRule("@keyframes " + name + " " + rule)
		}
	}

	decl := fmt.Sprintf("%s %dms linear %dms 1 both", name, duration.Milliseconds(), delay.Milliseconds())
	if current := styled.Animation(); current != "" {
		decl = current + ", " + decl
	}
	styled.SetAnimation(decl)
	sm.active++
	return name
}

// DeleteRule removes the animation called name from node, or every
// generated animation when name is empty.
func (sm *StyleManager) DeleteRule(node Node, name string) {
	styled, ok := node.(Styled)
	if !ok {
		return
	}
	current := styled.Animation()
	if current == "" {
		return
	}

	match := rulePrefix
	if name != "" {
		match = name
	}
	previous := strings.Split(current, ", ")
	next := previous[:0:0]
	for _, anim := range previous {
		if !strings.Contains(anim, match) {
			next = append(next, anim)
		}
	}

	deleted := len(previous) - len(next)
	if deleted == 0 {
		return
	}
	styled.SetAnimation(strings.Join(next, ", "))
	sm.active -= deleted
	if sm.active <= 0 {
		sm.active = 0
		sm.clearRules()
	}
}

func (sm *StyleManager) clearRules() {
	sm.frames.Once(func(time.Time) {
		if sm.active > 0 {
			return
		}
		for sheet := range sm.rules {
			sheet.Clear()
		}
		clear(sm.rules)
	})
}

// hashRule is the djb2-xor hash over the rule text, walked from the end.
func hashRule(s string) uint32 {
	h := int32(5381)
	for i := len(s) - 1; i >= 0; i-- {
		h = (h<<5 - h) ^ int32(s[i])
	}
	return uint32(h)
}
