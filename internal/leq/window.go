// Package leq derives energy-averaged sound levels from a raw stream of
// sound pressure level samples. Decibel values cannot be averaged
// arithmetically; an equivalent continuous level (Leq) is the mean of the
// linear power values converted back to decibels.
package leq

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Defaults match REW's SPL meter push rate: 10 updates per second over a
// 2-minute window.
const (
	DefaultSampleRateHz  = 10
	DefaultWindowSeconds = 120
)

// DefaultCapacity is the sample count for the default 2-minute window.
const DefaultCapacity = DefaultSampleRateHz * DefaultWindowSeconds

// Window is a fixed-capacity circular buffer of SPL samples in decibels.
// Once full it holds exactly the most recent Cap() samples; pushing evicts
// the oldest. Not safe for concurrent use; the caller synchronizes.
type Window struct {
	samples []float64
	next    int
	count   int
}

// NewWindow creates a window holding up to capacity samples.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{samples: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest once the window is full.
func (w *Window) Push(sample float64) {
	w.samples[w.next] = sample
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// Len reports the current occupancy.
func (w *Window) Len() int { return w.count }

// Cap reports the window capacity.
func (w *Window) Cap() int { return len(w.samples) }

// Clear empties the window. Value reports absent until the window refills.
func (w *Window) Clear() {
	w.next = 0
	w.count = 0
}

// Value computes the energy-averaged level over the window:
//
//	Leq = 10 * log10(mean(10^(s/10)))
//
// The result is absent until the window has filled to capacity — a partial
// window would present a statistically unstable figure as a 2-minute metric.
// Non-finite intermediates (extreme readings under- or overflowing the
// linear domain) also report absent rather than a garbage value.
func (w *Window) Value() (float64, bool) {
	if w.count < len(w.samples) {
		return 0, false
	}
	linear := make([]float64, w.count)
	for i, s := range w.samples[:w.count] {
		linear[i] = math.Pow(10, s/10)
	}
	mean := stat.Mean(linear, nil)
	if mean <= 0 || math.IsInf(mean, 0) || math.IsNaN(mean) {
		return 0, false
	}
	v := 10 * math.Log10(mean)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
