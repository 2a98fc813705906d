// Package forecast turns a user's stored sales history and a scenario into a
// daily forecast.
package forecast

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"salesforecast-backend/internal/apperrors"
	"salesforecast-backend/internal/models"
	"salesforecast-backend/internal/scenario"
	"salesforecast-backend/internal/tsmodel"
)

const dateLayout = "2006-01-02"

// Oracle is the fit/predict surface the engine needs from a time-series
// model. A fresh Oracle is used for every forecast.
type Oracle interface {
	AddRegressor(name string) error
	Fit(frame tsmodel.Frame) error
	MakeFutureFrame(periods int) (tsmodel.Frame, error)
	Predict(frame tsmodel.Frame) ([]tsmodel.Prediction, error)
}

type Point struct {
	Date      time.Time `json:"-"`
	DS        string    `json:"ds"`
	Yhat      float64   `json:"yhat"`
	YhatLower float64   `json:"yhat_lower"`
	YhatUpper float64   `json:"yhat_upper"`
}

type EngineOptions struct {
	Timeout        time.Duration
	MaxConcurrency int // 0 = runtime.NumCPU()
	// Encode each historical row from its stored scenario columns instead of
	// the all-zero baseline.
	UseObservedRegressors bool
	NewOracle             func() Oracle
}

type Engine struct {
	timeout     time.Duration
	sem         chan struct{}
	useObserved bool
	newOracle   func() Oracle
}

func NewEngine(opts EngineOptions) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = runtime.NumCPU()
	}
	if opts.NewOracle == nil {
		opts.NewOracle = func() Oracle { return tsmodel.New(tsmodel.DefaultOptions()) }
	}
	return &Engine{
		timeout:     opts.Timeout,
		sem:         make(chan struct{}, opts.MaxConcurrency),
		useObserved: opts.UseObservedRegressors,
		newOracle:   opts.NewOracle,
	}
}

// Mode names how historical regressors are built: "baseline" or "observed".
func (e *Engine) Mode() string {
	if e.useObserved {
		return "observed"
	}
	return "baseline"
}

type result struct {
	points []Point
	err    error
}

// Forecast fits a model on history and predicts horizonDays daily points
// after the last historical date, with scenario applied to every future day.
func (e *Engine) Forecast(ctx context.Context, history []models.SalesRecord, horizonDays int, params scenario.Params) ([]Point, error) {
	if len(history) == 0 {
		return nil, apperrors.ErrNotFound
	}
	if horizonDays <= 0 {
		return nil, apperrors.NewValidationError("days", "must be positive", horizonDays)
	}
	for i, row := range history {
		if row.Date.IsZero() {
			return nil, apperrors.InvalidData("row %d has no date", i+1)
		}
		if math.IsNaN(row.Sales) || math.IsInf(row.Sales, 0) || row.Sales < 0 {
			return nil, apperrors.InvalidData("row %d has invalid sales %v", i+1, row.Sales)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, apperrors.ForecastFailed(ctx.Err())
	}

	done := make(chan result, 1)
	go func() {
		defer func() { <-e.sem }()
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		points, err := e.run(history, horizonDays, params)
		done <- result{points: points, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, apperrors.ForecastFailed(res.err)
		}
		return res.points, nil
	case <-ctx.Done():
		return nil, apperrors.ForecastFailed(ctx.Err())
	}
}

func (e *Engine) run(history []models.SalesRecord, horizonDays int, params scenario.Params) ([]Point, error) {
	m := e.newOracle()
	columns := scenario.Columns()
	for _, col := range columns {
		if err := m.AddRegressor(col); err != nil {
			return nil, fmt.Errorf("declare regressor %s: %w", col, err)
		}
	}

	train := tsmodel.Frame{
		Dates: make([]time.Time, len(history)),
		Y:     make([]float64, len(history)),
	}
	encoded := make([]scenario.Row, len(history))
	byDate := make(map[string]scenario.Row, len(history))
	for i, row := range history {
		train.Dates[i] = row.Date
		train.Y[i] = row.Sales
		encoded[i] = e.historicalRow(row)
		key := row.Date.Format(dateLayout)
		if _, ok := byDate[key]; !ok {
			byDate[key] = encoded[i]
		}
	}
	for _, col := range columns {
		vals := make([]float64, len(history))
		for i := range history {
			vals[i] = encoded[i][col]
		}
		train.SetRegressor(col, vals)
	}

	if err := m.Fit(train); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	future, err := m.MakeFutureFrame(horizonDays)
	if err != nil {
		return nil, fmt.Errorf("future frame: %w", err)
	}

	scenarioRow := scenario.Encode(params)
	for _, col := range columns {
		vals := make([]float64, future.Len())
		for i, d := range future.Dates {
			if hist, ok := byDate[d.Format(dateLayout)]; ok {
				vals[i] = hist[col]
			} else {
				vals[i] = scenarioRow[col]
			}
		}
		future.SetRegressor(col, vals)
	}

	preds, err := m.Predict(future)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	preds = tsmodel.Tail(preds, horizonDays)

	points := make([]Point, len(preds))
	for i, p := range preds {
		points[i] = Point{
			Date:      p.Date,
			DS:        p.Date.Format(dateLayout),
			Yhat:      p.Yhat,
			YhatLower: p.YhatLower,
			YhatUpper: p.YhatUpper,
		}
	}
	return points, nil
}

func (e *Engine) historicalRow(row models.SalesRecord) scenario.Row {
	if !e.useObserved {
		return scenario.Baseline()
	}
	var p scenario.Params
	if row.DiscountPct != nil {
		p.DiscountPct = *row.DiscountPct
	}
	if row.Seasonality != nil {
		p.Seasonality = *row.Seasonality
	}
	if row.IsHoliday != nil {
		p.IsHoliday = *row.IsHoliday
	}
	if row.WeatherCondition != nil {
		p.WeatherCondition = *row.WeatherCondition
	}
	return scenario.Encode(p)
}
