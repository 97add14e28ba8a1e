package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

func decodeOrder(r io.Reader) (domain.Order, error) {
	var order domain.Order
	if err := json.NewDecoder(r).Decode(&order); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	return order, nil
}

// parseFilter разбирает фильтры из query-параметров; ошибки формата возвращаются как нарушения.
func parseFilter(q url.Values) (domain.OrderFilter, []domain.Violation) {
	var violations []domain.Violation
	filter := domain.OrderFilter{
		LocationCode: q.Get("location_code"),
		ProductCode:  q.Get("product_code"),
	}

	parseDate := func(name string) *civil.Date {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return nil
		}
		d, err := civil.ParseDate(raw)
		if err != nil {
			violations = append(violations, domain.Violation{Field: name, Message: "must be a date in YYYY-MM-DD format"})
			return nil
		}
		return &d
	}
	filter.OrderDateFrom = parseDate("order_date_from")
	filter.OrderDateTo = parseDate("order_date_to")

	return filter, violations
}

func parseSearchCriteria(q url.Values) (domain.SearchCriteria, []domain.Violation) {
	filter, violations := parseFilter(q)
	criteria := domain.SearchCriteria{OrderFilter: filter}

	if raw := strings.TrimSpace(q.Get("aggregate")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			violations = append(violations, domain.Violation{Field: "aggregate", Message: "must be a boolean"})
		}
		criteria.Aggregate = v
	}

	parseInt := func(name string) *int {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			violations = append(violations, domain.Violation{Field: name, Message: "must be an integer"})
			return nil
		}
		return &v
	}
	criteria.PageNumber = parseInt("page_number")
	criteria.PageSize = parseInt("page_size")

	return criteria, violations
}
