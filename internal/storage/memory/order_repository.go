package memory

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

var (
	seedLocations = []string{"Lisbon-001", "Porto-001", "Coimbra-001", "Sintra-001", "Aveiro-001"}
	seedProducts  = []string{"bananas-001", "bananas-002", "apples-001", "rice-001", "potatoes-001"}
)

// orderStoreInMemory — простая in-memory реализация OrderStore.
type orderStoreInMemory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Order
	now   func() time.Time
}

// NewOrderStore возвращает in-memory хранилище для локальной разработки и тестов.
func NewOrderStore() domain.OrderStore {
	return &orderStoreInMemory{
		items: make(map[uuid.UUID]domain.Order),
		now:   time.Now,
	}
}

// FindByID возвращает заказ или ErrOrderNotFound, если его нет.
func (s *orderStoreInMemory) FindByID(_ context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderStoreInMemory) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[uuid.UUID]domain.Order, len(ids))
	for _, id := range ids {
		if order, ok := s.items[id]; ok {
			found[id] = order
		}
	}
	return found, nil
}

// Find возвращает страницу отфильтрованных заказов, упорядоченных по дате и ID.
func (s *orderStoreInMemory) Find(_ context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	result := s.filter(query.Predicates)

	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderDate != result[j].OrderDate {
			return result[i].OrderDate.Before(result[j].OrderDate)
		}
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) < 0
	})

	if query.Offset < 0 || query.Offset >= len(result) {
		return []domain.Order{}, nil
	}
	result = result[query.Offset:]
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

type bucketKey struct {
	date    civil.Date
	product string
}

// Aggregate группирует отфильтрованные заказы по дате и товару.
func (s *orderStoreInMemory) Aggregate(_ context.Context, preds []domain.Predicate) ([]domain.AggregateBucket, error) {
	groups := make(map[bucketKey]*domain.AggregateBucket)
	for _, order := range s.filter(preds) {
		key := bucketKey{date: order.OrderDate, product: order.ProductCode}
		bucket, ok := groups[key]
		if !ok {
			bucket = &domain.AggregateBucket{OrderDate: order.OrderDate, ProductCode: order.ProductCode}
			groups[key] = bucket
		}
		bucket.Count++
		bucket.TotalQuantity += int64(order.Quantity)
	}

	buckets := make([]domain.AggregateBucket, 0, len(groups))
	for _, bucket := range groups {
		bucket.AverageQuantity = decimal.NewFromInt(bucket.TotalQuantity).
			Div(decimal.NewFromInt(int64(bucket.Count))).
			Round(2).
			InexactFloat64()
		buckets = append(buckets, *bucket)
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].OrderDate != buckets[j].OrderDate {
			return buckets[i].OrderDate.Before(buckets[j].OrderDate)
		}
		return buckets[i].ProductCode < buckets[j].ProductCode
	})
	return buckets, nil
}

// Stream фиксирует снимок подходящих заказов на момент открытия и отдаёт их по одному.
func (s *orderStoreInMemory) Stream(_ context.Context, preds []domain.Predicate) (domain.OrderCursor, error) {
	return &sliceCursor{orders: s.filter(preds), pos: -1}, nil
}

// Insert сохраняет новый заказ, если ID ещё не занят.
func (s *orderStoreInMemory) Insert(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[order.ID]; exists {
		return domain.ErrOrderExists
	}
	s.items[order.ID] = order
	return nil
}

// Update перезаписывает изменяемые поля заказа.
func (s *orderStoreInMemory) Update(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	current.ApplyFrom(order)
	s.items[order.ID] = current
	return nil
}

func (s *orderStoreInMemory) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(s.items, id)
	return nil
}

// SaveAll сначала проверяет весь набор и только потом применяет его, поэтому частичной записи не бывает.
func (s *orderStoreInMemory) SaveAll(ctx context.Context, changes domain.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserting := make(map[uuid.UUID]struct{}, len(changes.Inserts))
	for _, order := range changes.Inserts {
		if _, exists := s.items[order.ID]; exists {
			return fmt.Errorf("insert %s: %w", order.ID, domain.ErrOrderExists)
		}
		if _, dup := inserting[order.ID]; dup {
			return fmt.Errorf("insert %s: %w", order.ID, domain.ErrOrderExists)
		}
		inserting[order.ID] = struct{}{}
	}
	for _, order := range changes.Updates {
		if _, ok := s.items[order.ID]; !ok {
			return fmt.Errorf("update %s: %w", order.ID, domain.ErrOrderNotFound)
		}
	}

	for _, order := range changes.Inserts {
		s.items[order.ID] = order
	}
	for _, order := range changes.Updates {
		current := s.items[order.ID]
		current.ApplyFrom(order)
		s.items[order.ID] = current
	}
	return nil
}

// Seed генерирует синтетические заказы по тем же правилам, что и процедура inv.seed_orders.
func (s *orderStoreInMemory) Seed(ctx context.Context, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	generated := make([]domain.Order, 0, count)
	for i := 1; i <= count; i++ {
		submittedAt := now.Add(-time.Duration(rand.Int64N(int64(1000 * 24 * time.Hour))))
		generated = append(generated, domain.Order{
			ID:           uuid.New(),
			LocationCode: seedLocations[rand.IntN(len(seedLocations))],
			ProductCode:  seedProducts[rand.IntN(len(seedProducts))],
			OrderDate:    civil.DateOf(submittedAt),
			Quantity:     i%100 + 1,
			SubmittedBy:  fmt.Sprintf("user_%d@store.com", i),
			SubmittedAt:  submittedAt,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range generated {
		s.items[order.ID] = order
	}
	return nil
}

func (s *orderStoreInMemory) filter(preds []domain.Predicate) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.items))
	for _, order := range s.items {
		if domain.Matches(order, preds) {
			result = append(result, order)
		}
	}
	return result
}

// sliceCursor отдаёт заранее собранный снимок.
type sliceCursor struct {
	orders []domain.Order
	pos    int
	err    error
	closed bool
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.orders) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Order() domain.Order {
	if c.pos < 0 || c.pos >= len(c.orders) {
		return domain.Order{}
	}
	return c.orders[c.pos]
}

func (c *sliceCursor) Err() error {
	return c.err
}

func (c *sliceCursor) Close() error {
	c.closed = true
	c.orders = nil
	return nil
}

var _ domain.OrderStore = (*orderStoreInMemory)(nil)
