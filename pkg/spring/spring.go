// Package spring implements stores whose value follows a target under a
// damped spring.
//
// Each Set redirects one frame task registered with a frame.Registry. Per
// frame the spring integrates
//
//	dt       = elapsed * fps / 1s
//	velocity = (current - last) / dt
//	accel    = (stiffness*(target-current) - damping*velocity) * invMass
//	delta    = (velocity + accel) * dt
//
// for every numeric leaf of the value and settles once both |delta| and
// |target-current| are below the precision for all leaves.
//
// Values may be numbers, time.Time (interpolated in milliseconds), or
// slices, arrays, string-keyed maps and structs of those.
package spring

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/future"
	"github.com/vango-dev/pulse/pkg/store"
)

// ErrInvalidConfig is wrapped by errors reporting a bad Config.
var ErrInvalidConfig = errors.New("pulse: invalid spring config")

// ErrUnsupportedType is wrapped by errors reporting a value type that
// cannot be animated.
var ErrUnsupportedType = errors.New("pulse: unsupported spring value type")

// defaultSoftRate is the catch-up duration, in seconds, used by SoftDefault().
const defaultSoftRate = 0.5

// Config holds the spring constants.
type Config struct {
	Stiffness float64 `json:"stiffness" yaml:"stiffness"`
	Damping   float64 `json:"damping" yaml:"damping"`
	Precision float64 `json:"precision" yaml:"precision"`
}

// DefaultConfig returns stiffness 0.15, damping 0.8 and precision 0.01.
func DefaultConfig() Config {
	return Config{
		Stiffness: 0.15,
		Damping:   0.8,
		Precision: 0.01,
	}
}

// Instant reports whether c jumps straight to the target.
func (c Config) Instant() bool {
	return c.Stiffness >= 1 && c.Damping >= 1
}

// Validate checks that all constants are positive.
func (c Config) Validate() error {
	if c.Stiffness > 0 && c.Damping > 0 && c.Precision > 0 &&
		!math.IsInf(c.Stiffness, 0) && !math.IsInf(c.Damping, 0) {
		return nil
	}
	return perrors.New("E101").
		WithDetailf("stiffness=%g damping=%g precision=%g", c.Stiffness, c.Damping, c.Precision).
		Wrap(ErrInvalidConfig)
}

// Option configures a Spring.
type Option func(*options)

type options struct {
	config    Config
	storeOpts []store.Option
}

// WithConfig sets the spring constants.
func WithConfig(c Config) Option {
	return func(o *options) {
		o.config = c
	}
}

// WithStoreOptions passes options to the underlying store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// SetOption changes how a single Set behaves.
type SetOption func(*setOptions)

type setOptions struct {
	hard bool
	soft float64
}

// Hard jumps to the target without animating.
func Hard() SetOption {
	return func(o *setOptions) {
		o.hard = true
	}
}

// Soft makes the spring start from rest and regain full responsiveness over
// rate seconds.
func Soft(rate float64) SetOption {
	return func(o *setOptions) {
		if rate > 0 {
			o.soft = rate
		}
	}
}

// SoftDefault is Soft(defaultSoftRate).
func SoftDefault() SetOption {
	return Soft(defaultSoftRate)
}

// Spring is a readable store animated toward its target.
type Spring[T any] struct {
	frames *frame.Registry
	store  *store.Writable[T]
	config Config

	// Flattened leaves of the current, previous-frame and target values.
	current []float64
	last    []float64
	target  []float64
	shape   string

	targetValue T
	lastTime    time.Time

	task  *frame.Task
	token uint64

	invMass         float64
	invMassRecovery float64
}

// New creates a spring at initial. It fails with E102 if T cannot be
// animated and with E101 if the configuration is invalid.
func New[T any](frames *frame.Registry, initial T, opts ...Option) (*Spring[T], error) {
	o := options{config: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := checkType(reflect.TypeOf((*T)(nil)).Elem()); err != nil {
		return nil, perrors.New("E102").
			WithDetail(err.Error()).
			Wrap(fmt.Errorf("%w: %v", ErrUnsupportedType, err))
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	leaves, shape := encode(initial)
	return &Spring[T]{
		frames:      frames,
		store:       store.NewWritable(initial, o.storeOpts...),
		config:      o.config,
		current:     leaves,
		last:        cloneLeaves(leaves),
		target:      cloneLeaves(leaves),
		shape:       shape,
		targetValue: initial,
		invMass:     1,
	}, nil
}

// Config returns the spring constants.
func (s *Spring[T]) Config() Config {
	return s.config
}

// SetConfig replaces the spring constants. A running animation picks them
// up on its next frame.
func (s *Spring[T]) SetConfig(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.config = c
	return nil
}

// Get returns the current value.
func (s *Spring[T]) Get() T {
	return s.store.Get()
}

// Target returns the value the spring is moving toward.
func (s *Spring[T]) Target() T {
	return s.targetValue
}

// Animating reports whether a frame task is running.
func (s *Spring[T]) Animating() bool {
	return s.task != nil && s.task.Active()
}

// Subscribe implements store.Readable.
func (s *Spring[T]) Subscribe(run func(T)) store.Unsubscriber {
	return s.store.Subscribe(run)
}

// SubscribeInvalidate implements store.Readable.
func (s *Spring[T]) SubscribeInvalidate(run func(T), invalidate func()) store.Unsubscriber {
	return s.store.SubscribeInvalidate(run, invalidate)
}

// Update sets the target to fn(target, current).
func (s *Spring[T]) Update(fn func(target, value T) T, opts ...SetOption) *future.Future {
	return s.Set(fn(s.targetValue, s.store.Get()), opts...)
}

// Set moves the spring toward target. The returned future resolves when
// the spring settles at this target; it never resolves if another Set
// happens first. With Hard, or an instant config, the value jumps and the
// future is already resolved.
func (s *Spring[T]) Set(target T, opts ...SetOption) *future.Future {
	var so setOptions
	for _, opt := range opts {
		opt(&so)
	}

	s.token++
	token := s.token
	s.targetValue = target
	leaves, shape := encode(target)

	if so.hard || s.config.Instant() || shape != s.shape {
		s.jump(target, leaves, shape)
		return future.Resolved()
	}
	s.target = leaves

	if so.soft > 0 {
		s.invMassRecovery = 1 / (so.soft * s.frames.FPS())
		s.invMass = 0
	}

	if s.task == nil && equalLeaves(s.current, s.target) {
		return future.Resolved()
	}

	if s.task == nil {
		s.lastTime = s.frames.Now()
		s.task = s.frames.Loop(s.tick)
	}

	done := future.New()
	s.task.Done().Then(func() {
		if token == s.token {
			done.Resolve()
		}
	})
	return done
}

// jump assigns target immediately and cancels any running animation.
func (s *Spring[T]) jump(target T, leaves []float64, shape string) {
	if s.task != nil {
		s.task.Abort()
		s.task = nil
	}
	s.lastTime = s.frames.Now()
	s.current = leaves
	s.last = cloneLeaves(leaves)
	s.target = cloneLeaves(leaves)
	s.shape = shape
	s.store.Set(target)
}

func (s *Spring[T]) tick(now time.Time) bool {
	fps := s.frames.FPS()
	s.invMass = math.Min(s.invMass+s.invMassRecovery, 1)

	dt := float64(now.Sub(s.lastTime)) * fps / float64(time.Second)
	velocityDt := dt
	if velocityDt == 0 {
		velocityDt = 1 / fps
	}

	settled := true
	next := make([]float64, len(s.current))
	for i, cur := range s.current {
		delta := s.target[i] - cur
		velocity := (cur - s.last[i]) / velocityDt
		spring := s.config.Stiffness * delta
		damper := s.config.Damping * velocity
		accel := (spring - damper) * s.invMass
		d := (velocity + accel) * dt

		if math.Abs(d) < s.config.Precision && math.Abs(delta) < s.config.Precision {
			next[i] = s.target[i]
			continue
		}
		settled = false
		next[i] = cur + d
	}

	s.lastTime = now
	s.last = s.current
	s.current = next
	s.store.Set(decode(s.targetValue, next))

	if settled {
		s.task = nil
	}
	return !settled
}

func cloneLeaves(leaves []float64) []float64 {
	out := make([]float64, len(leaves))
	copy(out, leaves)
	return out
}

func equalLeaves(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
