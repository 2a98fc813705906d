package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesforecast_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salesforecast_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Forecast metrics
	Forecasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesforecast_forecasts_total",
			Help: "Total number of forecast requests",
		},
		[]string{"status"}, // status: success|not_found|invalid|failed|timeout
	)

	ForecastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salesforecast_forecast_duration_seconds",
			Help:    "Model fit + predict duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ForecastCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesforecast_forecast_cache_total",
			Help: "Forecast cache lookups",
		},
		[]string{"result"}, // result: hit|miss|error
	)

	// Upload metrics
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesforecast_uploads_total",
			Help: "Total number of dataset uploads",
		},
		[]string{"status"}, // status: success|rejected|error
	)

	UploadRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "salesforecast_upload_rows_total",
			Help: "Total number of sales rows stored by uploads",
		},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)

	prometheus.MustRegister(Forecasts)
	prometheus.MustRegister(ForecastDuration)
	prometheus.MustRegister(ForecastCache)

	prometheus.MustRegister(Uploads)
	prometheus.MustRegister(UploadRows)
}

// Handler serves the default registry on a Fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records request count and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		route := c.Route().Path
		HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordForecast records the outcome and duration of one forecast.
func RecordForecast(status string, duration time.Duration) {
	Forecasts.WithLabelValues(status).Inc()
	if status == "success" {
		ForecastDuration.Observe(duration.Seconds())
	}
}

func RecordCache(result string) {
	ForecastCache.WithLabelValues(result).Inc()
}

func RecordUpload(status string, rows int) {
	Uploads.WithLabelValues(status).Inc()
	if rows > 0 {
		UploadRows.Add(float64(rows))
	}
}
