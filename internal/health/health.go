// Package health отдаёт HTTP-пробы сервиса: /healthz с подробным отчётом,
// /readyz для балансировщика и /livez, который не зависит от внешних систем.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const checkTimeout = 2 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc проверяет одну зависимость; nil означает, что она доступна.
type CheckFunc func(ctx context.Context) error

// Result — итог одной проверки.
type Result struct {
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — тело ответа /healthz.
type Report struct {
	Status        Status            `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]Result `json:"checks,omitempty"`
}

type Handler struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func NewHandler(version string) *Handler {
	return &Handler{
		version: version,
		started: time.Now(),
		timeout: checkTimeout,
		checks:  make(map[string]CheckFunc),
	}
}

// Register добавляет проверку; повторная регистрация имени заменяет прежнюю.
func (h *Handler) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Report запускает все проверки параллельно с общим таймаутом.
// Сервис нездоров, если нездорова хотя бы одна проверка.
func (h *Handler) Report(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	report := Report{
		Status:        StatusHealthy,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Checks:        make(map[string]Result, len(checks)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			res := run(ctx, check)
			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = res
			if res.Status == StatusUnhealthy {
				report.Status = StatusUnhealthy
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func run(ctx context.Context, check CheckFunc) Result {
	start := time.Now()
	err := check(ctx)
	res := Result{Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	return res
}

// ServeHTTP отвечает на /healthz JSON-отчётом; 503, если сервис нездоров.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(report.Status))
	_ = json.NewEncoder(w).Encode(report)
}

// Ready отвечает на /readyz коротким текстом.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.Report(r.Context()).Status
	w.WriteHeader(statusCode(status))
	if status == StatusHealthy {
		_, _ = w.Write([]byte("ready"))
		return
	}
	_, _ = w.Write([]byte("not ready"))
}

// Live отвечает на /livez: процесс жив, пока обслуживает HTTP.
func Live(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func statusCode(s Status) int {
	if s == StatusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
