package transition

import "math"

// Easing maps linear progress t in [0, 1] to eased progress.
type Easing func(t float64) float64

// Linear returns t unchanged.
func Linear(t float64) float64 {
	return t
}

// CubicIn accelerates from zero velocity.
func CubicIn(t float64) float64 {
	return t * t * t
}

// CubicOut decelerates to zero velocity.
func CubicOut(t float64) float64 {
	f := t - 1
	return f*f*f + 1
}

// CubicInOut accelerates until halfway, then decelerates.
func CubicInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 0.5*math.Pow(2*t-2, 3) + 1
}

// QuintIn is a steeper CubicIn.
func QuintIn(t float64) float64 {
	return t * t * t * t * t
}

// QuintOut is a steeper CubicOut.
func QuintOut(t float64) float64 {
	f := t - 1
	return f*f*f*f*f + 1
}

// SineInOut follows half a cosine wave.
func SineInOut(t float64) float64 {
	return -0.5 * (math.Cos(math.Pi*t) - 1)
}

// BackOut overshoots the target slightly before settling.
func BackOut(t float64) float64 {
	const s = 1.70158
	f := t - 1
	return f*f*((s+1)*f+s) + 1
}

// Standard CSS curves.
var (
	Ease      = CubicBezier(0.25, 0.1, 0.25, 1.0)
	EaseIn    = CubicBezier(0.4, 0.0, 1.0, 1.0)
	EaseOut   = CubicBezier(0.0, 0.0, 0.2, 1.0)
	EaseInOut = CubicBezier(0.4, 0.0, 0.2, 1.0)
)

// CubicBezier returns an easing matching CSS cubic-bezier(x1, y1, x2, y2).
func CubicBezier(x1, y1, x2, y2 float64) Easing {
	return func(t float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}

		u := t
		for range 8 {
			x := bezier(x1, x2, u) - t
			if math.Abs(x) < 1e-7 {
				return bezier(y1, y2, clamp01(u))
			}
			dx := bezierSlope(x1, x2, u)
			if math.Abs(dx) < 1e-7 {
				break
			}
			u -= x / dx
		}

		// Newton did not converge; bisect.
		lo, hi := 0.0, 1.0
		u = clamp01(u)
		for range 12 {
			x := bezier(x1, x2, u) - t
			if math.Abs(x) < 1e-7 {
				break
			}
			if x > 0 {
				hi = u
			} else {
				lo = u
			}
			u = (lo + hi) / 2
		}
		return bezier(y1, y2, u)
	}
}

func bezier(a, b, t float64) float64 {
	inv := 1 - t
	return 3*inv*inv*t*a + 3*inv*t*t*b + t*t*t
}

func bezierSlope(a, b, t float64) float64 {
	inv := 1 - t
	return 3*inv*inv*a + 6*inv*t*(b-a) + 3*t*t*(1-b)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
