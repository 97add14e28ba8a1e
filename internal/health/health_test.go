package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestReport(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   Status
	}{
		{name: "no checks", want: StatusHealthy},
		{name: "all healthy", checks: map[string]CheckFunc{"storage": ok, "kafka": ok}, want: StatusHealthy},
		{name: "one failing", checks: map[string]CheckFunc{"storage": ok, "kafka": failing("broker down")}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler("v1.2.3")
			for name, check := range tt.checks {
				h.Register(name, check)
			}

			report := h.Report(context.Background())

			assert.Equal(t, tt.want, report.Status)
			assert.Equal(t, "v1.2.3", report.Version)
			assert.Len(t, report.Checks, len(tt.checks))
		})
	}
}

func TestReport_TimeoutBecomesFailure(t *testing.T) {
	h := NewHandler("test")
	h.timeout = 20 * time.Millisecond
	h.Register("storage", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := h.Report(context.Background())

	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks["storage"].Error)
	assert.GreaterOrEqual(t, report.Checks["storage"].DurationMs, int64(20))
}

func TestRegister_Replaces(t *testing.T) {
	h := NewHandler("test")
	h.Register("storage", failing("down"))
	h.Register("storage", ok)

	assert.Equal(t, StatusHealthy, h.Report(context.Background()).Status)
}

func TestHTTPHandlers(t *testing.T) {
	healthy := NewHandler("v1")
	healthy.Register("storage", ok)
	broken := NewHandler("v1")
	broken.Register("storage", failing("connection refused"))

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{name: "ready", handler: healthy.Ready, wantCode: http.StatusOK, wantBody: "ready"},
		{name: "not ready", handler: broken.Ready, wantCode: http.StatusServiceUnavailable, wantBody: "not ready"},
		{name: "live ignores checks", handler: Live, wantCode: http.StatusOK, wantBody: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestServeHTTP_JSONReport(t *testing.T) {
	h := NewHandler("v1")
	h.Register("storage", failing("connection refused"))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "connection refused", report.Checks["storage"].Error)
}
