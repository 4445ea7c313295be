package sequence

import "sort"

// Ease shapes the segment that starts at a keyframe.
type Ease string

const (
	Linear Ease = "linear"
	Smooth Ease = "smooth"
	Cubic  Ease = "cubic"
	// Hold keeps the keyframe value until the next one.
	Hold Ease = "hold"
)

func (e Ease) apply(u float64) float64 {
	u = min(max(u, 0), 1)
	switch e {
	case Smooth:
		return u * u * (3 - 2*u)
	case Cubic:
		return u * u * u * (u*(u*6-15) + 10)
	case Hold:
		return 0
	}
	return u
}

// Keyframe is a level at T seconds into a step.
type Keyframe struct {
	T    float64 `json:"t" yaml:"t"`
	V    float64 `json:"v" yaml:"v"`
	Ease Ease    `json:"ease,omitempty" yaml:"ease,omitempty"`
}

// Envelope is a keyframe list sorted by T.
type Envelope []Keyframe

// Sort orders keys by time; Load calls it on every step.
func (e Envelope) Sort() {
	sort.SliceStable(e, func(i, j int) bool { return e[i].T < e[j].T })
}

// Eval interpolates the envelope at t. Outside the keys it holds the nearest
// value; an empty envelope is 0.
func (e Envelope) Eval(t float64) float64 {
	n := len(e)
	switch {
	case n == 0:
		return 0
	case t <= e[0].T:
		return e[0].V
	case t >= e[n-1].T:
		return e[n-1].V
	}
	i := sort.Search(n, func(i int) bool { return e[i].T > t }) - 1
	a, b := e[i], e[i+1]
	if b.T <= a.T {
		return b.V
	}
	return a.V + (b.V-a.V)*a.Ease.apply((t-a.T)/(b.T-a.T))
}
