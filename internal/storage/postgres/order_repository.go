package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/inventory/internal/domain"
)

const (
	opTimeout   = 5 * time.Second
	saveTimeout = 30 * time.Second
	seedTimeout = 5 * time.Minute

	orderColumns = `id, location_code, product_code, order_date, quantity, submitted_by, submitted_at`
)

// Колонки и операторы, которые разрешено подставлять в SQL; значения идут только параметрами.
var (
	predicateColumns = map[domain.Field]string{
		domain.FieldLocationCode: "location_code",
		domain.FieldProductCode:  "product_code",
		domain.FieldOrderDate:    "order_date",
	}
	predicateOperators = map[domain.Op]string{
		domain.OpEq:  "=",
		domain.OpGte: ">=",
		domain.OpLte: "<=",
	}
)

type orderStore struct {
	db *sql.DB
}

// NewOrderStore создаёт PostgreSQL-реализацию OrderStore поверх таблицы inv.orders.
func NewOrderStore(store *Store) domain.OrderStore {
	return &orderStore{db: store.DB()}
}

func (r *orderStore) FindByID(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM inv.orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderStore) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Order, error) {
	found := make(map[uuid.UUID]domain.Order, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM inv.orders WHERE id = ANY($1::uuid[])`, raw)
	if err != nil {
		return nil, fmt.Errorf("select orders by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		found[order.ID] = order
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return found, nil
}

func (r *orderStore) Find(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	where, args, err := buildWhere(query.Predicates)
	if err != nil {
		return nil, err
	}
	stmt := `SELECT ` + orderColumns + ` FROM inv.orders` + where + ` ORDER BY order_date, id`
	args = append(args, query.Offset)
	stmt += ` OFFSET $` + strconv.Itoa(len(args))
	if query.Limit > 0 {
		args = append(args, query.Limit)
		stmt += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func (r *orderStore) Aggregate(ctx context.Context, preds []domain.Predicate) ([]domain.AggregateBucket, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	where, args, err := buildWhere(preds)
	if err != nil {
		return nil, err
	}

	// ROUND для numeric округляет половину от нуля.
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_date, product_code, COUNT(*), SUM(quantity), ROUND(AVG(quantity)::numeric, 2)
		FROM inv.orders`+where+`
		GROUP BY order_date, product_code
		ORDER BY order_date, product_code
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate orders: %w", err)
	}
	defer rows.Close()

	buckets := make([]domain.AggregateBucket, 0)
	for rows.Next() {
		var (
			bucket  domain.AggregateBucket
			day     time.Time
			average decimal.Decimal
		)
		if err := rows.Scan(&day, &bucket.ProductCode, &bucket.Count, &bucket.TotalQuantity, &average); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		bucket.OrderDate = civil.DateOf(day)
		bucket.AverageQuantity = average.InexactFloat64()
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}
	return buckets, nil
}

// Stream открывает серверный курсор; соединение удерживается до Close или конца данных.
func (r *orderStore) Stream(ctx context.Context, preds []domain.Predicate) (domain.OrderCursor, error) {
	where, args, err := buildWhere(preds)
	if err != nil {
		return nil, err
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire stream connection: %w", err)
	}
	rows, err := conn.QueryContext(ctx, `SELECT `+orderColumns+` FROM inv.orders`+where, args...)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("stream orders: %w", err)
	}
	return &rowsCursor{conn: conn, rows: rows}, nil
}

func (r *orderStore) Insert(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, insertOrderSQL, insertArgs(order)...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderStore) Update(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, updateOrderSQL, updateArgs(order)...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return requireAffected(res, domain.ErrOrderNotFound)
}

func (r *orderStore) Remove(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM inv.orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return requireAffected(res, domain.ErrOrderNotFound)
}

// SaveAll применяет чанк одной транзакцией.
func (r *orderStore) SaveAll(ctx context.Context, changes domain.ChangeSet) (err error) {
	if changes.Empty() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if len(changes.Inserts) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertOrderSQL)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, order := range changes.Inserts {
			if _, err := stmt.ExecContext(ctx, insertArgs(order)...); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("insert %s: %w", order.ID, domain.ErrOrderExists)
				}
				return fmt.Errorf("insert order %s: %w", order.ID, err)
			}
		}
	}

	if len(changes.Updates) > 0 {
		stmt, err := tx.PrepareContext(ctx, updateOrderSQL)
		if err != nil {
			return fmt.Errorf("prepare update: %w", err)
		}
		defer stmt.Close()

		for _, order := range changes.Updates {
			res, err := stmt.ExecContext(ctx, updateArgs(order)...)
			if err != nil {
				return fmt.Errorf("update order %s: %w", order.ID, err)
			}
			if err := requireAffected(res, domain.ErrOrderNotFound); err != nil {
				return fmt.Errorf("update %s: %w", order.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save orders: %w", err)
	}
	return nil
}

// Seed вызывает процедуру inv.seed_orders.
func (r *orderStore) Seed(ctx context.Context, count int) error {
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `CALL inv.seed_orders($1)`, count); err != nil {
		return fmt.Errorf("seed orders: %w", err)
	}
	return nil
}

const (
	insertOrderSQL = `
		INSERT INTO inv.orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	updateOrderSQL = `
		UPDATE inv.orders
		SET location_code = $1,
		    product_code = $2,
		    order_date = $3,
		    quantity = $4,
		    submitted_by = $5,
		    submitted_at = $6
		WHERE id = $7
	`
)

func insertArgs(o domain.Order) []any {
	return []any{o.ID, o.LocationCode, o.ProductCode, o.OrderDate.In(time.UTC), o.Quantity, o.SubmittedBy, o.SubmittedAt}
}

func updateArgs(o domain.Order) []any {
	return []any{o.LocationCode, o.ProductCode, o.OrderDate.In(time.UTC), o.Quantity, o.SubmittedBy, o.SubmittedAt, o.ID}
}

// buildWhere переводит предикаты в WHERE с позиционными параметрами.
func buildWhere(preds []domain.Predicate) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		column, ok := predicateColumns[p.Field]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter field %q", p.Field)
		}
		operator, ok := predicateOperators[p.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", p.Op)
		}

		value := p.Value
		if d, isDate := value.(civil.Date); isDate {
			value = d.In(time.UTC)
		}
		args = append(args, value)
		clauses = append(clauses, column+" "+operator+" $"+strconv.Itoa(len(args)))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order domain.Order
		day   time.Time
	)
	if err := row.Scan(
		&order.ID, &order.LocationCode, &order.ProductCode, &day,
		&order.Quantity, &order.SubmittedBy, &order.SubmittedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.OrderDate = civil.DateOf(day)
	return order, nil
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// rowsCursor читает строки по одной и освобождает соединение при закрытии.
type rowsCursor struct {
	conn    *sql.Conn
	rows    *sql.Rows
	current domain.Order
	err     error
	closed  bool
}

func (c *rowsCursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		_ = c.Close()
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		_ = c.Close()
		return false
	}
	order, err := scanOrder(c.rows)
	if err != nil {
		c.err = fmt.Errorf("scan streamed order: %w", err)
		_ = c.Close()
		return false
	}
	c.current = order
	return true
}

func (c *rowsCursor) Order() domain.Order {
	return c.current
}

func (c *rowsCursor) Err() error {
	return c.err
}

func (c *rowsCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	rowsErr := c.rows.Close()
	connErr := c.conn.Close()
	return errors.Join(rowsErr, connErr)
}

var _ domain.OrderStore = (*orderStore)(nil)
