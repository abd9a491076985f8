package lab

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultCriticalMultiplier is the fraction of the reference-range width
// beyond either bound at which a result warrants urgent clinical
// attention. Hospitals that tune their own critical thresholds can
// construct a Classifier with a different multiplier.
const DefaultCriticalMultiplier = 0.5

// ReferenceRange is the low–high interval considered clinically normal
// for a test.
type ReferenceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Width returns the width of the range. A non-positive width means the
// range is misconfigured.
func (r ReferenceRange) Width() float64 {
	return r.High - r.Low
}

// String formats the range the way it is stored on order tests, e.g. "3.5-5".
func (r ReferenceRange) String() string {
	return fmt.Sprintf("%s-%s",
		strconv.FormatFloat(r.Low, 'f', -1, 64),
		strconv.FormatFloat(r.High, 'f', -1, 64))
}

// ParseRange parses a "low-high" range string such as "3.5-5.0".
// Negative bounds ("-2.5-4.0") are handled by trying each interior
// separator position until both halves parse.
func ParseRange(s string) (ReferenceRange, error) {
	s = strings.TrimSpace(s)
	for i := 1; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		low, err := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
		if err != nil {
			continue
		}
		high, err := strconv.ParseFloat(strings.TrimSpace(s[i+1:]), 64)
		if err != nil {
			continue
		}
		return ReferenceRange{Low: low, High: high}, nil
	}
	return ReferenceRange{}, fmt.Errorf("invalid reference range %q: expected \"low-high\"", s)
}

// Classification is the derived abnormal/critical verdict for a result
// value. Critical implies Abnormal whenever the range width is positive,
// because the critical thresholds lie strictly outside the range.
type Classification struct {
	Abnormal bool `json:"is_abnormal"`
	Critical bool `json:"is_critical"`
}

// Classifier flags numeric results against a reference range. It is
// pure: it performs no I/O, and writing the verdict back to an order
// test is the caller's explicit step.
type Classifier struct {
	multiplier float64
}

// NewClassifier returns a Classifier using DefaultCriticalMultiplier.
func NewClassifier() *Classifier {
	return &Classifier{multiplier: DefaultCriticalMultiplier}
}

// NewClassifierWithMultiplier returns a Classifier with a custom
// critical multiplier. The multiplier must be positive.
func NewClassifierWithMultiplier(m float64) (*Classifier, error) {
	if m <= 0 {
		return nil, fmt.Errorf("critical multiplier must be positive, got %g", m)
	}
	return &Classifier{multiplier: m}, nil
}

// Classify evaluates value against rng. A result is abnormal when it
// falls outside the range, and critical when it is at least
// multiplier*width beyond either bound (boundary inclusive).
// A non-positive range width is a configuration error.
func (c *Classifier) Classify(value float64, rng ReferenceRange) (Classification, error) {
	width := rng.Width()
	if width <= 0 {
		return Classification{}, fmt.Errorf("reference range %s has non-positive width", rng)
	}

	cl := Classification{
		Abnormal: value < rng.Low || value > rng.High,
	}
	if value <= rng.Low-c.multiplier*width || value >= rng.High+c.multiplier*width {
		cl.Critical = true
	}
	return cl, nil
}
