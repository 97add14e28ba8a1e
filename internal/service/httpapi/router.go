// Package httpapi публикует операции над заказами по REST под /api/orders.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/inventory/internal/service/orders"
)

// Handler обслуживает REST-запросы к сервису заказов.
type Handler struct {
	orders *orders.Service
	logger *log.Entry
}

// NewHandler создаёт обработчик; nil-логгер заменяется логгером компонента.
func NewHandler(svc *orders.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	return &Handler{orders: svc, logger: logger}
}

// NewRouter возвращает chi-роутер со стандартным набором middleware и маршрутами заказов.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(h.logger),
		middleware.Recoverer,
	)

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.searchOrders)
		r.Post("/", h.createOrder)
		r.Get("/stream", h.streamOrders)
		r.Post("/bulk", h.upsertOrders)
		r.Post("/seed", h.seedOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
	})
	return r
}

// NewServer возвращает http.Server с таймаутами; WriteTimeout не задан из-за потоковых ответов.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			}).Debug("http request")
		})
	}
}
