package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Операции, для которых считаются ошибки валидации.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationSearch = "search"
	OperationUpsert = "upsert"
)

// OrderMetrics содержит метрики движков поиска и пакетной записи заказов.
type OrderMetrics struct {
	searchDuration     *prometheus.HistogramVec
	streamedOrders     prometheus.Counter
	upsertRecords      *prometheus.CounterVec
	chunksFlushed      prometheus.Counter
	batchAborts        prometheus.Counter
	validationFailures *prometheus.CounterVec

	// Kafka
	eventsPublished *prometheus.CounterVec
	importMessages  *prometheus.CounterVec
}

// NewOrderMetrics создаёт метрики в реестре по умолчанию.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном реестре (удобно для тестов).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		searchDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "inv_order_search_duration_seconds",
			Help:    "Duration of paged order searches in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"aggregate"}),
		streamedOrders: registerCounter(registerer, prometheus.CounterOpts{
			Name: "inv_orders_streamed_total",
			Help: "Total number of orders yielded by streaming searches",
		}),
		upsertRecords: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "inv_upsert_records_total",
			Help: "Total number of orders persisted by batch upsert",
		}, []string{"action"}),
		chunksFlushed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "inv_upsert_chunks_flushed_total",
			Help: "Total number of batch upsert chunks committed",
		}),
		batchAborts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "inv_upsert_batch_aborts_total",
			Help: "Total number of batch upserts aborted because of accumulated validation failures",
		}),
		validationFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "inv_validation_failures_total",
			Help: "Total number of rejected inputs by operation",
		}, []string{"operation"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "inv_order_events_published_total",
			Help: "Total number of order events sent to Kafka by result",
		}, []string{"type", "result"}),
		importMessages: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "inv_import_messages_total",
			Help: "Total number of consumed import messages by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveSearch записывает длительность постраничного поиска.
func (m *OrderMetrics) ObserveSearch(aggregate bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(strconv.FormatBool(aggregate)).Observe(duration.Seconds())
}

// AddStreamed увеличивает счётчик выданных потоком заказов.
func (m *OrderMetrics) AddStreamed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.streamedOrders.Add(float64(n))
}

// RecordChunkFlushed учитывает сохранённый чанк и количество созданных/обновлённых записей.
func (m *OrderMetrics) RecordChunkFlushed(created, updated int) {
	if m == nil {
		return
	}
	m.chunksFlushed.Inc()
	m.upsertRecords.WithLabelValues("created").Add(float64(created))
	m.upsertRecords.WithLabelValues("updated").Add(float64(updated))
}

// RecordBatchAborted увеличивает счётчик прерванных пакетов.
func (m *OrderMetrics) RecordBatchAborted() {
	if m == nil {
		return
	}
	m.batchAborts.Inc()
}

// RecordValidationFailure увеличивает счётчик отклонённых входов для операции.
func (m *OrderMetrics) RecordValidationFailure(operation string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(operation).Inc()
}

// RecordEventPublished учитывает попытку публикации события.
func (m *OrderMetrics) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.eventsPublished.WithLabelValues(eventType, result).Inc()
}

// RecordImportMessage учитывает исход обработки сообщения импорта (ok, retry, dlq).
func (m *OrderMetrics) RecordImportMessage(outcome string) {
	if m == nil {
		return
	}
	m.importMessages.WithLabelValues(outcome).Inc()
}
