package forecast

import (
	"context"
	"errors"
	"time"

	"salesforecast-backend/internal/apperrors"
	"salesforecast-backend/internal/logger"
	"salesforecast-backend/internal/metrics"
	"salesforecast-backend/internal/models"
	"salesforecast-backend/internal/scenario"
)

// HistorySource is the part of the sales repository the service reads.
type HistorySource interface {
	Fetch(ctx context.Context, userID uint, product, city string) ([]models.SalesRecord, error)
	DatasetVersion(ctx context.Context, userID uint) (string, error)
}

type Request struct {
	UserID   uint
	Product  string
	City     string
	Days     int
	Scenario scenario.Params
}

type Response struct {
	Product  string  `json:"product"`
	City     string  `json:"city"`
	Days     int     `json:"days"`
	Forecast []Point `json:"forecast"`
}

type Service struct {
	history  HistorySource
	engine   *Engine
	cache    Cache
	cacheTTL time.Duration
}

func NewService(history HistorySource, engine *Engine, cache Cache, cacheTTL time.Duration) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Service{history: history, engine: engine, cache: cache, cacheTTL: cacheTTL}
}

func (s *Service) Forecast(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	version, err := s.history.DatasetVersion(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if version == "" {
		metrics.RecordForecast("not_found", 0)
		return nil, apperrors.ErrNotFound
	}

	key := cacheKey(req.UserID, version, s.engine.Mode(), req.Product, req.City, req.Days, req.Scenario)
	if points, ok, err := s.cache.Get(ctx, key); err != nil {
		metrics.RecordCache("error")
		logger.Warnf("forecast cache get: %v", err)
	} else if ok {
		metrics.RecordCache("hit")
		return s.response(req, points), nil
	} else {
		metrics.RecordCache("miss")
	}

	rows, err := s.history.Fetch(ctx, req.UserID, req.Product, req.City)
	if err != nil {
		return nil, err
	}

	points, err := s.engine.Forecast(ctx, rows, req.Days, req.Scenario)
	metrics.RecordForecast(outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, points, s.cacheTTL); err != nil {
		logger.Warnf("forecast cache set: %v", err)
	}
	return s.response(req, points), nil
}

func (s *Service) response(req Request, points []Point) *Response {
	return &Response{Product: req.Product, City: req.City, Days: req.Days, Forecast: points}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, apperrors.ErrInvalidData), apperrors.IsValidation(err):
		return "invalid"
	}
	return "failed"
}
