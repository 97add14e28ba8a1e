package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/service/orders"
)

// streamFlushEvery — через сколько записей потоковый ответ сбрасывается клиенту.
const streamFlushEvery = 100

// BulkResponse — результат POST /api/orders/bulk.
type BulkResponse struct {
	Received int `json:"received"`
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) searchOrders(w http.ResponseWriter, r *http.Request) {
	criteria, violations := parseSearchCriteria(r.URL.Query())
	if len(violations) > 0 {
		writeViolations(w, violations)
		return
	}
	result, err := h.orders.Search(r.Context(), criteria)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// streamOrders пишет заказы в формате NDJSON: одна JSON-запись на строку.
func (h *Handler) streamOrders(w http.ResponseWriter, r *http.Request) {
	filter, violations := parseFilter(r.URL.Query())
	if len(violations) > 0 {
		writeViolations(w, violations)
		return
	}

	ctx := r.Context()
	cursor, err := h.orders.SearchStream(ctx, domain.StreamCriteria{OrderFilter: filter})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	written := 0
	for order, err := range orders.All(ctx, cursor) {
		if err != nil {
			// заголовки уже отправлены, остаётся оборвать поток
			h.logger.WithError(err).WithField("written", written).Warn("order stream aborted")
			return
		}
		if err := enc.Encode(order); err != nil {
			h.logger.WithError(err).Debug("order stream client write failed")
			return
		}
		written++
		if written%streamFlushEvery == 0 {
			_ = rc.Flush()
		}
	}
	_ = rc.Flush()
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	order, err := decodeOrder(r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.orders.Create(r.Context(), order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	order, err := decodeOrder(r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.orders.Update(r.Context(), id, order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := h.orders.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// upsertOrders читает тело как JSON-массив по одному элементу и передаёт его в пакетный upsert.
func (h *Handler) upsertOrders(w http.ResponseWriter, r *http.Request) {
	received := 0
	source := orders.DecodeJSONArray(r.Body)
	counted := func(yield func(domain.Order, error) bool) {
		for order, err := range source {
			if err == nil {
				received++
			}
			if !yield(order, err) {
				return
			}
		}
	}

	if err := h.orders.UpsertBatch(r.Context(), counted); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkResponse{Received: received})
}

func (h *Handler) seedOrders(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil {
		writeViolations(w, []domain.Violation{{Field: "count", Message: "must be an integer"}})
		return
	}
	if err := h.orders.Seed(r.Context(), count); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"count": count})
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeViolations(w, []domain.Violation{{Field: "id", Message: "must be a valid UUID"}})
		return uuid.Nil, false
	}
	return id, true
}
