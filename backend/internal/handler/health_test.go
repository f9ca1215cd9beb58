package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/itchan-dev/bbs/shared/config"
	"github.com/stretchr/testify/assert"
)

type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func TestHealth(t *testing.T) {
	handler := &Handler{cfg: &config.Config{}, health: &MockHealthChecker{}}

	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestReady(t *testing.T) {
	t.Run("returns 200 OK when storage is available", func(t *testing.T) {
		var hasDeadline bool
		handler := &Handler{
			cfg: &config.Config{},
			health: &MockHealthChecker{PingFunc: func(ctx context.Context) error {
				_, hasDeadline = ctx.Deadline()
				return nil
			}},
		}

		rr := httptest.NewRecorder()
		handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", rr.Body.String())
		assert.True(t, hasDeadline, "ping should run with a timeout")
	})

	for _, pingErr := range []error{errors.New("connection refused"), context.DeadlineExceeded} {
		t.Run("returns 503 on "+pingErr.Error(), func(t *testing.T) {
			handler := &Handler{
				cfg:    &config.Config{},
				health: &MockHealthChecker{PingFunc: func(ctx context.Context) error { return pingErr }},
			}

			rr := httptest.NewRecorder()
			handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
			assert.Equal(t, "storage unavailable", rr.Body.String())
		})
	}
}
