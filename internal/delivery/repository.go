package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Guard wraps remote calls, typically with a circuit breaker.
type Guard interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Repository is the PostgreSQL Remote. All reads and writes are scoped in SQL.
type Repository struct {
	pool  *pgxpool.Pool
	guard Guard
}

// NewRepository constructs a repository. guard may be nil.
func NewRepository(pool *pgxpool.Pool, guard Guard) *Repository {
	return &Repository{pool: pool, guard: guard}
}

func (r *Repository) do(ctx context.Context, fn func(context.Context) error) error {
	if r.guard == nil {
		return fn(ctx)
	}
	return r.guard.Do(ctx, fn)
}

const orderProjection = `
	SELECT o.id::text, o.order_number, o.store_id::text, o.store_name, o.store_address,
	       s.name, s.address, s.phone, s.latitude::float8, s.longitude::float8,
	       COALESCE(o.total_amount, 0)::float8, o.status,
	       o.distribution_id::text, d.name,
	       o.order_date, o.created_at, o.user_id::text, u.salesman_name, u.salesman_id,
	       o.delivery_status, o.delivery_sm_id, o.delivered_at, o.collected_amount::float8,
	       o.payment_method, o.delivery_notes
	FROM orders o
	LEFT JOIN stores s ON s.id = o.store_id
	LEFT JOIN distributions d ON d.id = o.distribution_id
	LEFT JOIN users u ON u.id = o.user_id
`

// ============================================================================
// READS
// ============================================================================

// ResolveBookers maps booker salesman ids to their user records.
func (r *Repository) ResolveBookers(ctx context.Context, salesmanIDs []string) ([]Booker, error) {
	if len(salesmanIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id::text, salesman_id, COALESCE(salesman_name, '')
		FROM users
		WHERE salesman_id = ANY($1)
		ORDER BY salesman_id
	`
	var bookers []Booker
	err := r.do(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, salesmanIDs)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var b Booker
			if err := rows.Scan(&b.UserID, &b.SalesmanID, &b.Name); err != nil {
				return err
			}
			bookers = append(bookers, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("resolve bookers: %w", err)
	}
	return bookers, nil
}

// ListOrders returns exported orders of the given bookers for one day, newest first.
func (r *Repository) ListOrders(ctx context.Context, q ListQuery) ([]Order, error) {
	if len(q.BookerUserIDs) == 0 {
		return []Order{}, nil
	}
	day, err := time.Parse(DateLayout, q.Date)
	if err != nil {
		return nil, fmt.Errorf("list orders: parse date: %w", err)
	}
	distributionIDs := q.DistributionIDs
	if distributionIDs == nil {
		distributionIDs = []string{}
	}
	query := orderProjection + `
		WHERE o.status = 'exported'
		  AND o.order_date = $1
		  AND o.user_id::text = ANY($2)
		  AND (cardinality($3::text[]) = 0 OR o.distribution_id::text = ANY($3))
		ORDER BY o.created_at DESC
	`
	var orders []Order
	err = r.do(ctx, func(ctx context.Context) error {
		var err error
		orders, err = r.queryOrders(ctx, query, pgtype.Date{Time: day, Valid: true}, q.BookerUserIDs, distributionIDs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// History returns the courier's terminal orders with order_date in [from, to].
func (r *Repository) History(ctx context.Context, courierSalesmanID string, from, to time.Time) ([]Order, error) {
	query := orderProjection + `
		WHERE o.delivery_sm_id = $1
		  AND o.delivery_status = ANY($2)
		  AND o.order_date BETWEEN $3 AND $4
		ORDER BY o.delivered_at DESC NULLS LAST
	`
	var orders []Order
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		orders, err = r.queryOrders(ctx, query, courierSalesmanID, terminalStrings(),
			pgtype.Date{Time: from, Valid: true}, pgtype.Date{Time: to, Valid: true})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delivery history: %w", err)
	}
	return orders, nil
}

// LifetimeOutcomes returns status and collected amount of every terminal order of the courier.
func (r *Repository) LifetimeOutcomes(ctx context.Context, courierSalesmanID string) ([]Outcome, error) {
	query := `
		SELECT delivery_status, COALESCE(collected_amount, 0)::float8
		FROM orders
		WHERE delivery_sm_id = $1
		  AND delivery_status = ANY($2)
	`
	var outcomes []Outcome
	err := r.do(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, courierSalesmanID, terminalStrings())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var o Outcome
			if err := rows.Scan(&o.Status, &o.CollectedAmount); err != nil {
				return err
			}
			outcomes = append(outcomes, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("lifetime outcomes: %w", err)
	}
	return outcomes, nil
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orderRows []orderRow
	for rows.Next() {
		var row orderRow
		err := rows.Scan(
			&row.ID, &row.OrderNumber, &row.StoreID, &row.StoreName, &row.StoreAddress,
			&row.JoinedStoreName, &row.JoinedStoreAddress, &row.StorePhone, &row.StoreLatitude, &row.StoreLongitude,
			&row.TotalAmount, &row.Status,
			&row.DistributionID, &row.DistributionName,
			&row.OrderDate, &row.CreatedAt, &row.UserID, &row.BookerName, &row.BookerSalesmanID,
			&row.DeliveryStatus, &row.DeliverySmID, &row.DeliveredAt, &row.CollectedAmount,
			&row.PaymentMethod, &row.DeliveryNotes,
		)
		if err != nil {
			return nil, err
		}
		orderRows = append(orderRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(orderRows))
	for i, row := range orderRows {
		ids[i] = row.ID
	}
	items, err := r.itemsByOrder(ctx, ids)
	if err != nil {
		return nil, err
	}

	orders := make([]Order, len(orderRows))
	for i, row := range orderRows {
		orders[i] = mapOrder(row, items[row.ID])
	}
	return orders, nil
}

func (r *Repository) itemsByOrder(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	out := make(map[string][]Item, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT id::text, order_id::text, product_id::text, product_code, product_name,
		       COALESCE(price, 0)::float8, COALESCE(quantity, 0)::int, COALESCE(line_total, 0)::float8,
		       delivered_quantity::int, returned_quantity::int, return_reason
		FROM order_items
		WHERE order_id::text = ANY($1)
		ORDER BY order_id, id
	`
	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row itemRow
		err := rows.Scan(
			&row.ID, &row.OrderID, &row.ProductID, &row.ProductCode, &row.ProductName,
			&row.Price, &row.Quantity, &row.LineTotal,
			&row.DeliveredQuantity, &row.ReturnedQuantity, &row.ReturnReason,
		)
		if err != nil {
			return nil, err
		}
		out[row.OrderID] = append(out[row.OrderID], mapItem(row))
	}
	return out, rows.Err()
}

// ============================================================================
// WRITES
// ============================================================================

// UpdateOrder writes a transition patch. The row must be exported, not yet
// terminal, created by one of the scope's bookers and, when the scope lists
// distributions, belong to one of them.
func (r *Repository) UpdateOrder(ctx context.Context, scope Scope, orderID string, p Patch) error {
	setClauses, args := patchAssignments(p)
	if len(setClauses) == 0 {
		return nil
	}
	argPos := len(args) + 1

	distributionIDs := scope.DistributionIDs
	if distributionIDs == nil {
		distributionIDs = []string{}
	}
	args = append(args, orderID, scope.BookerUserIDs, distributionIDs, terminalStrings())

	query := fmt.Sprintf(`
		UPDATE orders
		SET %s
		WHERE id::text = $%d
		  AND status = 'exported'
		  AND user_id::text = ANY($%d)
		  AND (cardinality($%d::text[]) = 0 OR distribution_id::text = ANY($%d))
		  AND COALESCE(delivery_status, 'pending') <> ALL($%d)
	`, strings.Join(setClauses, ", "), argPos, argPos+1, argPos+2, argPos+2, argPos+3)

	var affected int64
	err := r.do(ctx, func(ctx context.Context) error {
		cmdTag, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		affected = cmdTag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	// A guarded row that matched nothing is a scope rejection, not an outage.
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateItem writes one item's delivery outcome.
func (r *Repository) UpdateItem(ctx context.Context, orderID string, u ItemUpdate) error {
	query := `
		UPDATE order_items
		SET delivered_quantity = $1, returned_quantity = $2, return_reason = $3
		WHERE id::text = $4 AND order_id::text = $5
	`
	var affected int64
	err := r.do(ctx, func(ctx context.Context) error {
		cmdTag, err := r.pool.Exec(ctx, query, u.DeliveredQuantity, u.ReturnedQuantity, u.ReturnReason, u.ItemID, orderID)
		if err != nil {
			return fmt.Errorf("update order item: %w", err)
		}
		affected = cmdTag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// patchAssignments turns a patch into SET clauses with positional args starting at $1.
func patchAssignments(p Patch) ([]string, []any) {
	var setClauses []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Status != "" {
		add("delivery_status", string(p.Status))
	}
	if p.DeliverySmID != "" {
		add("delivery_sm_id", p.DeliverySmID)
	}
	if p.DeliveredAt != nil {
		add("delivered_at", *p.DeliveredAt)
	}
	if p.CollectedAmount != nil {
		add("collected_amount", *p.CollectedAmount)
	}
	if p.PaymentMethod != nil {
		add("payment_method", string(*p.PaymentMethod))
	}
	if p.SetNotes {
		add("delivery_notes", p.Notes)
	}
	return setClauses, args
}

func terminalStrings() []string {
	out := make([]string, len(TerminalStatuses))
	for i, s := range TerminalStatuses {
		out[i] = string(s)
	}
	return out
}
