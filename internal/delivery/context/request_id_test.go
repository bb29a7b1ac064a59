package context

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestWithRequestScope(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithRequestScope(context.Background(), "req-7", base)

	assert.Equal(t, "req-7", GetRequestIDFromContext(ctx))
	GetLoggerOrDefault(ctx, nil).Info("hello")
	assert.Contains(t, buf.String(), "request_id=req-7")
}

func TestGetLoggerOrDefault_Fallback(t *testing.T) {
	fallback := slog.Default()

	assert.Same(t, fallback, GetLoggerOrDefault(context.Background(), fallback))
	assert.Nil(t, GetLogger(context.Background()))
	assert.Empty(t, GetRequestIDFromContext(context.Background()))
}

func TestGetRequestID_EchoContext(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	generated := GetRequestID(c)
	assert.NotEmpty(t, generated)

	SetRequestID(c, "req-9")
	assert.Equal(t, "req-9", GetRequestID(c))
}
