package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elimu-api/internal/observability"
)

func decodeJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &promdto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestRegisterObservesPrefixedRoutes(t *testing.T) {
	logger := zerolog.Nop()
	app := fiber.New()
	Register(app, Config{Logger: &logger, CORSOrigins: "http://localhost:5173", ObservedPrefixes: []string{"/api/v1/instructor"}})
	app.Get("/api/v1/instructor/students", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusTeapot)
	})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	errorsBefore := counterValue(t, observability.APIErrors().WithLabelValues(http.MethodGet, "/api/v1/instructor/students", "418"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instructor/students", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(HeaderCorrelationID))
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	errorsAfter := counterValue(t, observability.APIErrors().WithLabelValues(http.MethodGet, "/api/v1/instructor/students", "418"))
	require.Equal(t, errorsBefore+1, errorsAfter)

	healthBefore := counterValue(t, observability.APIRequests().WithLabelValues(http.MethodGet, "/api/v1/health", "200"))
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, healthBefore, counterValue(t, observability.APIRequests().WithLabelValues(http.MethodGet, "/api/v1/health", "200")))
}

func TestRateLimitPerUser(t *testing.T) {
	app := fiber.New()
	app.Get("/export/:user", func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, c.Params("user"))
		return c.Next()
	}, RateLimit("export", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/export/a", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/export/a", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	var payload map[string]interface{}
	decodeJSON(t, resp, &payload)
	require.Equal(t, false, payload["success"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/export/b", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=25ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=250ms", latencyBucket(200*time.Millisecond))
	require.Equal(t, ">500ms", latencyBucket(time.Second))
}
