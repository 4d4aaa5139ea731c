package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mdm/internal/config"
)

func TestInit(t *testing.T) {
	require.NoError(t, Init(config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"}))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	require.NoError(t, Init(config.LoggingConfig{Level: "warn", Format: "json"}))
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	assert.Error(t, Init(config.LoggingConfig{Level: "loud"}))
}

func TestContextWithLogger(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background(), "req-1")
	assert.Equal(t, "req-1", rlog.Data[requestIDLoggerKey])
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	same, again := ContextWithLogger(ctx, "req-2")
	assert.Equal(t, ctx, same)
	assert.Equal(t, rlog, again)

	_, generated := ContextWithLogger(context.Background(), "")
	assert.NotEmpty(t, generated.Data[requestIDLoggerKey])
}

func TestContextWithIdentity(t *testing.T) {
	ctx, _ := ContextWithLogger(context.Background(), "req-1")
	ctx = ContextWithIdentity(ctx, "user:1")

	rlog := FromContext(ctx)
	assert.Equal(t, "user:1", rlog.Data[identityLoggerKey])
	assert.Equal(t, "req-1", rlog.Data[requestIDLoggerKey])
}

func TestFromContextWithoutLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestMiddlewareUsesRequestIDHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	handler := Middleware()(func(c echo.Context) error {
		seen = RequestIDFromContext(c.Request().Context())
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, "abc", seen)
}
