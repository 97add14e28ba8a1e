package orders_test

import (
	"context"
	"math"
	"testing"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

func intPtr(v int) *int { return &v }

func seedOrders(t *testing.T, store domain.OrderStore, list ...domain.Order) {
	t.Helper()
	for _, o := range list {
		o.ID = uuid.New()
		require.NoError(t, store.Insert(context.Background(), o))
	}
}

func TestSearch_LocationFilterOnly(t *testing.T) {
	svc, store := newService(t)
	seedOrders(t, store,
		newOrder("L1", "P1", day(1), 1),
		newOrder("L1", "P2", day(2), 1),
		newOrder("L2", "P1", day(1), 1),
		newOrder("L3", "P3", day(3), 1),
	)

	result, err := svc.Search(context.Background(), domain.SearchCriteria{
		OrderFilter: domain.OrderFilter{LocationCode: "L1"},
		PageSize:    intPtr(100),
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	for _, o := range result.Orders {
		require.Equal(t, "L1", o.LocationCode)
	}
	require.Nil(t, result.Aggregates)
}

func TestSearch_BlankFiltersIgnored(t *testing.T) {
	svc, store := newService(t)
	seedOrders(t, store,
		newOrder("L1", "P1", day(1), 1),
		newOrder("L2", "P2", day(2), 1),
	)

	result, err := svc.Search(context.Background(), domain.SearchCriteria{
		OrderFilter: domain.OrderFilter{LocationCode: "  ", ProductCode: ""},
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
}

func TestSearch_PagesAreBoundedAndSorted(t *testing.T) {
	svc, store := newService(t)
	for _, d := range []int{9, 3, 7, 1, 5, 2, 8, 4, 6} {
		seedOrders(t, store, newOrder("L1", "P1", day(d), d))
	}

	var seen []civil.Date
	for page := 1; page <= 4; page++ {
		result, err := svc.Search(context.Background(), domain.SearchCriteria{
			PageNumber: intPtr(page),
			PageSize:   intPtr(4),
		})
		require.NoError(t, err)
		require.LessOrEqual(t, len(result.Orders), 4)
		for i := 1; i < len(result.Orders); i++ {
			require.False(t, result.Orders[i].OrderDate.Before(result.Orders[i-1].OrderDate))
		}
		for _, o := range result.Orders {
			seen = append(seen, o.OrderDate)
		}
	}
	require.Len(t, seen, 9)
	for i := 1; i < len(seen); i++ {
		require.True(t, seen[i-1].Before(seen[i]))
	}
}

func TestSearch_DefaultPage(t *testing.T) {
	svc, store := newService(t)
	for d := 1; d <= 15; d++ {
		seedOrders(t, store, newOrder("L1", "P1", day(d), 1))
	}

	result, err := svc.Search(context.Background(), domain.SearchCriteria{})
	require.NoError(t, err)
	require.Len(t, result.Orders, domain.DefaultPageSize)
	require.Equal(t, 1, result.Orders[0].OrderDate.Day)
}

func TestSearch_PageBeyondEndIsEmpty(t *testing.T) {
	svc, store := newService(t)
	seedOrders(t, store, newOrder("L1", "P1", day(1), 1))

	result, err := svc.Search(context.Background(), domain.SearchCriteria{PageNumber: intPtr(5)})
	require.NoError(t, err)
	require.NotNil(t, result.Orders)
	require.Empty(t, result.Orders)
}

func TestSearch_Aggregation(t *testing.T) {
	svc, store := newService(t)
	seedOrders(t, store,
		newOrder("L1", "A", day(1), 5),
		newOrder("L1", "A", day(1), 3),
		newOrder("L1", "B", day(2), 7),
		newOrder("L2", "A", day(1), 100),
	)

	result, err := svc.Search(context.Background(), domain.SearchCriteria{
		OrderFilter: domain.OrderFilter{LocationCode: "L1"},
		Aggregate:   true,
		PageSize:    intPtr(1),
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	require.Equal(t, []domain.AggregateBucket{
		{OrderDate: day(1), ProductCode: "A", Count: 2, TotalQuantity: 8, AverageQuantity: 4.00},
		{OrderDate: day(2), ProductCode: "B", Count: 1, TotalQuantity: 7, AverageQuantity: 7.00},
	}, result.Aggregates)
}

func TestSearch_AggregationRoundsHalfAwayFromZero(t *testing.T) {
	svc, store := newService(t)
	// 1+1+1+2+2+2+2+2 = 13 / 8 = 1.625
	for _, q := range []int{1, 1, 1, 2, 2, 2, 2, 2} {
		seedOrders(t, store, newOrder("L1", "A", day(1), q))
	}

	result, err := svc.Search(context.Background(), domain.SearchCriteria{Aggregate: true})
	require.NoError(t, err)
	require.Len(t, result.Aggregates, 1)
	require.Equal(t, 1.63, result.Aggregates[0].AverageQuantity)
}

func TestSearch_InvertedDateRange(t *testing.T) {
	svc, _ := newService(t)
	from, to := day(10), day(1)

	_, err := svc.Search(context.Background(), domain.SearchCriteria{
		OrderFilter: domain.OrderFilter{OrderDateFrom: &from, OrderDateTo: &to},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	violations, ok := domain.AsViolations(err)
	require.True(t, ok)
	require.Equal(t, "order_date_from", violations[0].Field)
}

func TestSearch_InvalidPaging(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Search(context.Background(), domain.SearchCriteria{PageNumber: intPtr(0), PageSize: intPtr(1001)})
	require.ErrorIs(t, err, domain.ErrValidation)

	violations, _ := domain.AsViolations(err)
	require.Len(t, violations, 2)
}

func TestSearch_HugePageNumberReturnsEmptyPage(t *testing.T) {
	svc, store := newService(t)
	seedOrders(t, store,
		newOrder("L1", "P1", day(1), 1),
		newOrder("L1", "P1", day(1), 3),
	)

	for _, size := range []int{1, 10, 1000} {
		result, err := svc.Search(context.Background(), domain.SearchCriteria{
			PageNumber: intPtr(math.MaxInt),
			PageSize:   intPtr(size),
			Aggregate:  true,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Orders)
		require.Empty(t, result.Orders)
		require.Len(t, result.Aggregates, 1)
		require.Equal(t, 2, result.Aggregates[0].Count)
	}
}
