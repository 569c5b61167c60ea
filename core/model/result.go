package model

import (
	"fmt"

	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// Interval is a contiguous half-open range [Start, End) of wavelength indices.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Width returns the number of wavelengths in the interval.
func (iv Interval) Width() int { return iv.End - iv.Start }

// Contains reports whether wavelength j lies inside the interval.
func (iv Interval) Contains(j int) bool { return j >= iv.Start && j < iv.End }

// Indices returns the wavelength indices covered by the interval.
func (iv Interval) Indices() []int {
	idx := make([]int, 0, iv.Width())
	for j := iv.Start; j < iv.End; j++ {
		idx = append(idx, j)
	}
	return idx
}

func (iv Interval) String() string { return fmt.Sprintf("[%d,%d)", iv.Start, iv.End) }

// Partition splits the wavelength axis 0..p-1 into ⌈p/width⌉ disjoint
// intervals of the given width. The last interval may be narrower.
func Partition(p, width int) ([]Interval, error) {
	if width < 1 {
		return nil, errors.NewInvalidParameterError("interval_width", "must be at least 1", width)
	}
	if p < 1 {
		return nil, errors.NewInvalidParameterError("X", "must contain at least one wavelength", p)
	}
	count := (p + width - 1) / width
	intervals := make([]Interval, count)
	for k := range intervals {
		end := (k + 1) * width
		if end > p {
			end = p
		}
		intervals[k] = Interval{Start: k * width, End: end}
	}
	return intervals, nil
}

// SelectionResult is the outcome of one selector fit.
type SelectionResult struct {
	Method  string `json:"method"`
	Support []bool `json:"support"`
	// Indices are the retained wavelengths in ascending order.
	Indices []int `json:"indices"`
	// Scores holds one diagnostic value per wavelength.
	Scores []float64 `json:"scores"`
	// Intervals and IntervalScores are set by interval selectors only.
	Intervals      []Interval `json:"intervals,omitempty"`
	IntervalScores []float64  `json:"interval_scores,omitempty"`
	// CVError is the RMSECV of the winning subset when the method computes one.
	CVError *float64               `json:"cv_error,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// NewSelectionResult builds a result from a mask and per-wavelength scores.
func NewSelectionResult(method string, support []bool, scores []float64) *SelectionResult {
	return &SelectionResult{
		Method:  method,
		Support: support,
		Indices: IndicesFromSupport(support),
		Scores:  scores,
	}
}

// NSelected returns the number of retained wavelengths.
func (r *SelectionResult) NSelected() int { return len(r.Indices) }

// SetCVError records the cross-validated error of the retained subset.
func (r *SelectionResult) SetCVError(v float64) { r.CVError = &v }

// Clone returns a deep copy, so callers can not modify a selector's state.
func (r *SelectionResult) Clone() *SelectionResult {
	out := &SelectionResult{
		Method:         r.Method,
		Support:        append([]bool(nil), r.Support...),
		Indices:        append([]int(nil), r.Indices...),
		Scores:         append([]float64(nil), r.Scores...),
		Intervals:      append([]Interval(nil), r.Intervals...),
		IntervalScores: append([]float64(nil), r.IntervalScores...),
	}
	if r.CVError != nil {
		out.SetCVError(*r.CVError)
	}
	if r.Params != nil {
		out.Params = make(map[string]interface{}, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Validate checks the structural invariants of a result over p wavelengths.
func (r *SelectionResult) Validate(p int) error {
	if len(r.Support) != p {
		return errors.NewDimensionError("SelectionResult", p, len(r.Support), 1)
	}
	if len(r.Scores) != p {
		return errors.NewDimensionError("SelectionResult.Scores", p, len(r.Scores), 1)
	}
	n := len(IndicesFromSupport(r.Support))
	if n < 1 {
		return errors.NewRankDeficiencyError("SelectionResult", "no wavelength retained")
	}
	if n != len(r.Indices) {
		return errors.Newf("selection result: %d indices for %d retained wavelengths", len(r.Indices), n)
	}
	return nil
}

// IndicesFromSupport returns the positions of true entries in ascending order.
func IndicesFromSupport(support []bool) []int {
	idx := make([]int, 0, len(support))
	for j, keep := range support {
		if keep {
			idx = append(idx, j)
		}
	}
	return idx
}

// SupportFromIndices builds a mask of length p with the given indices set.
func SupportFromIndices(p int, indices []int) []bool {
	support := make([]bool, p)
	for _, j := range indices {
		support[j] = true
	}
	return support
}
