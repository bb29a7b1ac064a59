package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"accounts/config"
	deliverycontext "accounts/internal/delivery/context"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware_Process(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		expectReuse bool
	}{
		{name: "reuses caller id", header: "req-123", expectReuse: true},
		{name: "generates when missing", header: ""},
		{name: "replaces oversized id", header: strings.Repeat("x", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(deliverycontext.HeaderXRequestID, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var ctxRequestID string
			var ctxLogger *slog.Logger
			handler := NewRequestIDMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))).Process(func(c echo.Context) error {
				ctxRequestID = deliverycontext.GetRequestIDFromContext(c.Request().Context())
				ctxLogger = deliverycontext.GetLogger(c.Request().Context())

				return c.NoContent(http.StatusNoContent)
			})

			require.NoError(t, handler(c))

			responseID := rec.Header().Get(deliverycontext.HeaderXRequestID)
			assert.NotEmpty(t, responseID)
			assert.Equal(t, responseID, ctxRequestID)
			assert.Equal(t, responseID, deliverycontext.GetRequestID(c))
			assert.NotNil(t, ctxLogger)

			if tt.expectReuse {
				assert.Equal(t, tt.header, responseID)
			} else {
				assert.NotEqual(t, tt.header, responseID)
				assert.LessOrEqual(t, len(responseID), maxRequestIDLength)
			}
		})
	}
}

func TestLoggerMiddleware_Handle(t *testing.T) {
	newEcho := func(buf *bytes.Buffer, debug bool) *echo.Echo {
		logger := slog.New(slog.NewTextHandler(buf, nil))
		cfg := &config.Config{}
		cfg.Env.Debug = debug

		e := echo.New()
		e.Use(NewRequestIDMiddleware(logger).Process)
		e.Use(NewLoggerMiddleware(logger, cfg).Handle)
		e.GET("/ok", func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		e.GET("/missing", func(echo.Context) error {
			return echo.NewHTTPError(http.StatusNotFound, "nope")
		})

		return e
	}

	t.Run("logs with request id and final status in debug mode", func(t *testing.T) {
		var buf bytes.Buffer
		e := newEcho(&buf, true)

		req := httptest.NewRequest(http.MethodGet, "/missing", nil)
		req.Header.Set(deliverycontext.HeaderXRequestID, "trace-1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		out := buf.String()
		assert.Contains(t, out, "HTTP Request")
		assert.Contains(t, out, "request_id=trace-1")
		assert.Contains(t, out, "status=404")
		assert.Contains(t, out, "level=WARN")
	})

	t.Run("silent outside debug mode", func(t *testing.T) {
		var buf bytes.Buffer
		e := newEcho(&buf, false)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, buf.String(), "HTTP Request")
	})
}
