package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(NewRateLimiterMiddleware(RateLimitConfig{
		Rate:         0.001,
		Burst:        1,
		ExpiresIn:    time.Minute,
		SkipPrefixes: []string{"/metrics"},
	}))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/api/v1/tp", ok)
	e.GET("/metrics", ok)

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/api/v1/tp"))
	assert.Equal(t, http.StatusTooManyRequests, do("/api/v1/tp"))
	assert.Equal(t, http.StatusOK, do("/metrics"))
	assert.Equal(t, http.StatusOK, do("/metrics"))
}
