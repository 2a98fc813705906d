package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "nope") })

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/:id", "200"))
	for _, id := range []string{"1", "2"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/:id", "200")))

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/missing", "404")))
}

func TestRecordForecast(t *testing.T) {
	before := testutil.ToFloat64(Forecasts.WithLabelValues("timeout"))
	RecordForecast("timeout", time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(Forecasts.WithLabelValues("timeout")))
}

func TestHandlerServesRegistry(t *testing.T) {
	RecordUpload("success", 3)

	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
