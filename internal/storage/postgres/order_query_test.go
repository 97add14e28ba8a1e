package postgres

import (
	"testing"
	"time"

	"github.com/golang-sql/civil"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

func TestBuildWhere_Empty(t *testing.T) {
	t.Parallel()

	where, args, err := buildWhere(nil)
	if err != nil {
		t.Fatalf("buildWhere failed: %v", err)
	}
	if where != "" || len(args) != 0 {
		t.Fatalf("expected empty clause, got %q %v", where, args)
	}
}

func TestBuildWhere_AllFilters(t *testing.T) {
	t.Parallel()

	from := civil.Date{Year: 2024, Month: time.March, Day: 1}
	to := civil.Date{Year: 2024, Month: time.March, Day: 31}
	preds := domain.OrderFilter{
		LocationCode:  "Lisbon-001",
		ProductCode:   "rice-001",
		OrderDateFrom: &from,
		OrderDateTo:   &to,
	}.Predicates()

	where, args, err := buildWhere(preds)
	if err != nil {
		t.Fatalf("buildWhere failed: %v", err)
	}

	want := " WHERE location_code = $1 AND product_code = $2 AND order_date >= $3 AND order_date <= $4"
	if where != want {
		t.Fatalf("unexpected clause:\n got: %q\nwant: %q", where, want)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if got, ok := args[2].(time.Time); !ok || !got.Equal(from.In(time.UTC)) {
		t.Fatalf("date must be passed as time.Time, got %#v", args[2])
	}
}

func TestBuildWhere_RejectsUnknownField(t *testing.T) {
	t.Parallel()

	_, _, err := buildWhere([]domain.Predicate{{Field: "quantity; DROP TABLE", Op: domain.OpEq, Value: 1}})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}

	_, _, err = buildWhere([]domain.Predicate{{Field: domain.FieldProductCode, Op: "like", Value: "x"}})
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
}
