// Package tsmodel is an additive time-series model: a linear trend plus
// Fourier seasonality plus declared external regressors, fitted by
// ridge-regularized least squares.
package tsmodel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrTooFewRows         = errors.New("tsmodel: frame has less than 2 non-NaN rows")
	ErrAlreadyFitted      = errors.New("tsmodel: model has already been fitted")
	ErrNotFitted          = errors.New("tsmodel: model has not been fitted")
	ErrMissingRegressor   = errors.New("tsmodel: regressor missing from frame")
	ErrUnknownRegressor   = errors.New("tsmodel: frame has an undeclared regressor")
	ErrDuplicateRegressor = errors.New("tsmodel: regressor declared twice")
	ErrSingular           = errors.New("tsmodel: could not solve for coefficients")
	ErrShapeMismatch      = errors.New("tsmodel: column length does not match dates")
)

// z-scores for the two-sided interval widths we support
var intervalZ = map[float64]float64{
	0.80: 1.2816,
	0.90: 1.6449,
	0.95: 1.9600,
	0.99: 2.5758,
}

type Options struct {
	WeeklyOrder   int     // Fourier order of the 7-day cycle
	YearlyOrder   int     // Fourier order of the 365.25-day cycle
	WeeklyMinDays int     // weekly terms are used when history spans at least this many days
	YearlyMinDays int     // same for yearly terms
	IntervalWidth float64 // one of 0.80, 0.90, 0.95, 0.99
	Ridge         float64 // L2 penalty on seasonality and regressor coefficients
}

func DefaultOptions() Options {
	return Options{
		WeeklyOrder:   3,
		YearlyOrder:   10,
		WeeklyMinDays: 14,
		YearlyMinDays: 730,
		IntervalWidth: 0.80,
		Ridge:         1e-3,
	}
}

type Prediction struct {
	Date      time.Time `json:"ds"`
	Yhat      float64   `json:"yhat"`
	YhatLower float64   `json:"yhat_lower"`
	YhatUpper float64   `json:"yhat_upper"`
	Trend     float64   `json:"trend"`
}

type regressorScale struct {
	mu, std  float64
	constant bool
}

type Model struct {
	opts       Options
	regressors []string
	fitted     bool

	start    time.Time
	end      time.Time
	spanDays float64
	yScale   float64
	weekly   bool
	yearly   bool
	scales   map[string]regressorScale
	coef     []float64
	sigma    float64
	nTrain   int
	history  []time.Time
}

func New(opts Options) *Model {
	if _, ok := intervalZ[opts.IntervalWidth]; !ok {
		opts.IntervalWidth = 0.80
	}
	if opts.Ridge <= 0 {
		opts.Ridge = DefaultOptions().Ridge
	}
	return &Model{opts: opts}
}

// AddRegressor declares an additive regressor. Must be called before Fit.
func (m *Model) AddRegressor(name string) error {
	if m.fitted {
		return ErrAlreadyFitted
	}
	if m.declared(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateRegressor, name)
	}
	m.regressors = append(m.regressors, name)
	return nil
}

// Fit estimates the model on f. Rows whose target is NaN are ignored.
func (m *Model) Fit(f Frame) error {
	if m.fitted {
		return ErrAlreadyFitted
	}
	if len(f.Y) != f.Len() {
		return fmt.Errorf("%w: y has %d values for %d dates", ErrShapeMismatch, len(f.Y), f.Len())
	}
	if err := m.checkRegressors(f); err != nil {
		return err
	}

	rows := make([]int, 0, f.Len())
	for i, y := range f.Y {
		if !math.IsNaN(y) && !math.IsInf(y, 0) {
			rows = append(rows, i)
		}
	}
	if len(rows) < 2 {
		return ErrTooFewRows
	}
	sort.SliceStable(rows, func(a, b int) bool { return f.Dates[rows[a]].Before(f.Dates[rows[b]]) })

	m.start = normalizeDate(f.Dates[rows[0]])
	m.end = normalizeDate(f.Dates[rows[len(rows)-1]])
	m.spanDays = m.end.Sub(m.start).Hours() / 24
	m.weekly = m.opts.WeeklyOrder > 0 && m.spanDays >= float64(m.opts.WeeklyMinDays)
	m.yearly = m.opts.YearlyOrder > 0 && m.spanDays >= float64(m.opts.YearlyMinDays)

	m.yScale = 0
	for _, i := range rows {
		m.yScale = math.Max(m.yScale, math.Abs(f.Y[i]))
	}
	if m.yScale == 0 {
		m.yScale = 1
	}

	m.scales = make(map[string]regressorScale, len(m.regressors))
	for _, name := range m.regressors {
		col := f.Regressors[name]
		vals := make([]float64, len(rows))
		for k, i := range rows {
			vals[k] = col[i]
		}
		m.scales[name] = scaleFor(vals)
	}

	p := m.numFeatures()
	x := mat.NewDense(len(rows), p, nil)
	y := mat.NewVecDense(len(rows), nil)
	for k, i := range rows {
		x.SetRow(k, m.features(f, i))
		y.SetVec(k, f.Y[i]/m.yScale)
	}

	coef, err := m.solve(x, y)
	if err != nil {
		return err
	}
	m.coef = coef

	var fitted mat.VecDense
	fitted.MulVec(x, mat.NewVecDense(p, coef))
	var ssr float64
	for k := 0; k < len(rows); k++ {
		r := y.AtVec(k) - fitted.AtVec(k)
		ssr += r * r
	}
	dof := math.Max(float64(len(rows)-2), 1)
	m.sigma = math.Sqrt(ssr/dof) * m.yScale

	m.nTrain = len(rows)
	m.history = make([]time.Time, 0, len(rows))
	for _, i := range rows {
		m.history = append(m.history, f.Dates[i])
	}
	m.fitted = true
	return nil
}

// MakeFutureFrame returns the unique training dates followed by periods
// daily dates after the last one. Regressor columns are left for the caller.
func (m *Model) MakeFutureFrame(periods int) (Frame, error) {
	if !m.fitted {
		return Frame{}, ErrNotFitted
	}
	dates := uniqueSortedDates(m.history)
	last := dates[len(dates)-1]
	for i := 1; i <= periods; i++ {
		dates = append(dates, last.Add(time.Duration(i)*day))
	}
	return Frame{Dates: dates}, nil
}

// Predict evaluates the fitted model on every row of f.
func (m *Model) Predict(f Frame) ([]Prediction, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := m.checkRegressors(f); err != nil {
		return nil, err
	}

	z := intervalZ[m.opts.IntervalWidth]
	out := make([]Prediction, f.Len())
	for i := range f.Dates {
		feats := m.features(f, i)
		var yhat float64
		for j, v := range feats {
			yhat += v * m.coef[j]
		}
		yhat *= m.yScale
		trend := (m.coef[0] + m.coef[1]*feats[1]) * m.yScale

		width := z * m.sigma * m.horizonFactor(f.Dates[i])
		out[i] = Prediction{
			Date:      normalizeDate(f.Dates[i]),
			Yhat:      yhat,
			YhatLower: yhat - width,
			YhatUpper: yhat + width,
			Trend:     trend,
		}
	}
	return out, nil
}

func (m *Model) checkRegressors(f Frame) error {
	for name := range f.Regressors {
		if !m.declared(name) {
			return fmt.Errorf("%w: %s", ErrUnknownRegressor, name)
		}
	}
	for _, name := range m.regressors {
		col, ok := f.Regressors[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingRegressor, name)
		}
		if len(col) != f.Len() {
			return fmt.Errorf("%w: regressor %s has %d values for %d dates", ErrShapeMismatch, name, len(col), f.Len())
		}
	}
	return nil
}

func (m *Model) declared(name string) bool {
	for _, r := range m.regressors {
		if r == name {
			return true
		}
	}
	return false
}

// horizonFactor widens the interval with distance past the training data.
func (m *Model) horizonFactor(d time.Time) float64 {
	ahead := normalizeDate(d).Sub(m.end).Hours() / 24
	if ahead <= 0 {
		return 1
	}
	return math.Sqrt(1 + ahead/float64(m.nTrain))
}

func (m *Model) numFeatures() int {
	p := 2 // intercept, trend
	if m.weekly {
		p += 2 * m.opts.WeeklyOrder
	}
	if m.yearly {
		p += 2 * m.opts.YearlyOrder
	}
	return p + len(m.regressors)
}

func (m *Model) features(f Frame, i int) []float64 {
	d := normalizeDate(f.Dates[i])
	days := d.Sub(m.start).Hours() / 24

	t := days
	if m.spanDays > 0 {
		t = days / m.spanDays
	}

	feats := make([]float64, 0, m.numFeatures())
	feats = append(feats, 1, t)

	// seasonal terms use absolute day numbers so cycles line up across fits
	abs := float64(d.Unix()) / 86400
	if m.weekly {
		feats = appendFourier(feats, abs, 7, m.opts.WeeklyOrder)
	}
	if m.yearly {
		feats = appendFourier(feats, abs, 365.25, m.opts.YearlyOrder)
	}

	for _, name := range m.regressors {
		feats = append(feats, m.scales[name].apply(f.Regressors[name][i]))
	}
	return feats
}

func appendFourier(dst []float64, t, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		arg := 2 * math.Pi * float64(k) * t / period
		dst = append(dst, math.Sin(arg), math.Cos(arg))
	}
	return dst
}

// solve computes (X'X + ridge) beta = X'y. The intercept and trend get only a
// negligible penalty so they stay effectively unregularized.
func (m *Model) solve(x *mat.Dense, y *mat.VecDense) ([]float64, error) {
	_, p := x.Dims()

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	a := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			a.SetSym(i, j, xtx.At(i, j))
		}
		penalty := m.opts.Ridge
		if i < 2 {
			penalty = 1e-9
		}
		a.SetSym(i, i, a.At(i, i)+penalty)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, ErrSingular
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	out := make([]float64, p)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

// scaleFor standardizes non-binary regressors. A column without variance
// carries no information and always contributes zero.
func scaleFor(vals []float64) regressorScale {
	binary := true
	for _, v := range vals {
		if v != 0 && v != 1 {
			binary = false
			break
		}
	}

	mu, std := stat.MeanStdDev(vals, nil)
	if std == 0 || math.IsNaN(std) {
		return regressorScale{constant: true}
	}
	if binary {
		return regressorScale{mu: 0, std: 1}
	}
	return regressorScale{mu: mu, std: std}
}

func (s regressorScale) apply(v float64) float64 {
	if s.constant {
		return 0
	}
	return (v - s.mu) / s.std
}
