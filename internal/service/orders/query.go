package orders

import (
	"context"
	"math"
	"time"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
	"github.com/vladislavdragonenkov/inventory/internal/metrics"
	"github.com/vladislavdragonenkov/inventory/internal/validation"
)

// Search выполняет постраничный поиск с опциональной агрегацией.
// Сводки считаются по всему отфильтрованному набору, страница применяется только к заказам.
func (s *Service) Search(ctx context.Context, criteria domain.SearchCriteria) (domain.SearchResult, error) {
	if violations := validation.ValidateSearch(criteria); len(violations) > 0 {
		s.metrics.RecordValidationFailure(metrics.OperationSearch)
		return domain.SearchResult{}, domain.NewValidationError(violations)
	}

	start := time.Now()
	defer func() { s.metrics.ObserveSearch(criteria.Aggregate, time.Since(start)) }()

	preds := criteria.Predicates()

	var result domain.SearchResult
	if criteria.Aggregate {
		buckets, err := s.store.Aggregate(ctx, preds)
		if err != nil {
			return domain.SearchResult{}, err
		}
		result.Aggregates = buckets
	}

	number, size := criteria.Page()
	offset, ok := pageOffset(number, size)
	if !ok {
		// страница дальше любого возможного набора
		result.Orders = []domain.Order{}
		return result, nil
	}
	page, err := s.store.Find(ctx, domain.OrderQuery{
		Predicates: preds,
		Offset:     offset,
		Limit:      size,
	})
	if err != nil {
		return domain.SearchResult{}, err
	}
	if page == nil {
		page = []domain.Order{}
	}
	result.Orders = page

	return result, nil
}

// pageOffset возвращает смещение страницы; false, если оно не помещается в int.
func pageOffset(number, size int) (int, bool) {
	if number-1 > math.MaxInt/size {
		return 0, false
	}
	return (number - 1) * size, true
}
