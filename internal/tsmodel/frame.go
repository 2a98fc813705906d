package tsmodel

import (
	"sort"
	"time"
)

const day = 24 * time.Hour

// Frame is a column-oriented table of dates, an optional target column and
// named regressor columns. Every column has len(Dates) values.
type Frame struct {
	Dates      []time.Time
	Y          []float64 // nil for future frames
	Regressors map[string][]float64
}

func (f Frame) Len() int {
	return len(f.Dates)
}

// SetRegressor stores a full column for name.
func (f *Frame) SetRegressor(name string, values []float64) {
	if f.Regressors == nil {
		f.Regressors = make(map[string][]float64)
	}
	f.Regressors[name] = values
}

// Tail returns the last n rows of predictions, or all of them if n exceeds
// the length.
func Tail(p []Prediction, n int) []Prediction {
	if n >= len(p) {
		return p
	}
	return p[len(p)-n:]
}

// normalizeDate truncates to a calendar date in UTC.
func normalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func uniqueSortedDates(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = normalizeDate(d)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
