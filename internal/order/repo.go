package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("not enough stock")
	ErrStatusConflict    = errors.New("order status changed concurrently")
)

// Store is the persistence boundary of the ledger. Every method that moves
// stock does so inside a single transaction.
type Store interface {
	// Product reads the purchase-relevant fields without locking.
	Product(ctx context.Context, id string) (*Product, error)
	// NextID reserves an order id before anything is written.
	NextID(ctx context.Context) (int64, error)
	// Place locks the product row, re-checks stock, decrements it and
	// inserts the order with its single item.
	Place(ctx context.Context, p Placement) (*Order, error)

	Get(ctx context.Context, id int64) (*Order, error)
	GetForUser(ctx context.Context, id int64, userID string) (*Order, error)
	GetByGatewayRef(ctx context.Context, gatewayOrderID, userID string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)

	RecordPayment(ctx context.Context, id int64, res PaymentResult) (*Order, error)
	// Transition moves id from -> to only if it is still in from. Moving to
	// cancelled enqueues restock jobs in the same transaction.
	Transition(ctx context.Context, id int64, from, to Status, reason string, at time.Time) error
	// Delete removes the order and, unless it was already cancelled,
	// enqueues restock jobs for its items. Returns the deleted order.
	Delete(ctx context.Context, id int64) (*Order, error)

	// PendingRestocks lists unapplied jobs, for one order when orderID > 0.
	PendingRestocks(ctx context.Context, orderID int64, limit int) ([]RestockJob, error)
	// ApplyRestock applies one job. It reports false when the job was already
	// applied or is being applied by someone else.
	ApplyRestock(ctx context.Context, jobID int64) (bool, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderColumns = `
  o.id, o.user_id, o.total::text, o.delivery_charge::text, o.payment_method, o.payment_status, o.status,
  o.address, o.customer_name, o.customer_phone, o.customer_email, COALESCE(o.card_details::text, ''),
  COALESCE(o.gateway_order_id, ''), COALESCE(o.gateway_payment_id, ''), COALESCE(o.gateway_signature, ''),
  COALESCE(o.cancellation_reason, ''), o.cancelled_at, o.purchased_at, o.updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o    Order
		card string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Total, &o.DeliveryCharge, &o.PaymentMethod, &o.PaymentStatus, &o.Status,
		&o.Address, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &card,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.GatewaySignature,
		&o.CancellationReason, &o.CancelledAt, &o.PurchasedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if card != "" {
		o.CardDetails = json.RawMessage(card)
	}
	return &o, nil
}

func (r *PGRepo) Product(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p Product
	err := r.db.QueryRow(ctx, `
		SELECT id, price::text, stock, is_active, is_deleted
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Price, &p.Stock, &p.IsActive, &p.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) NextID(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var id int64
	err := r.db.QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('orders', 'id'))`).Scan(&id)
	return id, err
}

func (r *PGRepo) Place(ctx context.Context, p Placement) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prod Product
	err = tx.QueryRow(ctx, `
		SELECT id, price::text, stock, is_active, is_deleted
		FROM products WHERE id = $1
		FOR UPDATE
	`, p.ProductID).Scan(&prod.ID, &prod.Price, &prod.Stock, &prod.IsActive, &prod.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !prod.Purchasable() {
		return nil, ErrProductNotFound
	}
	if prod.Stock < p.Quantity {
		return nil, ErrInsufficientStock
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1
	`, p.ProductID, p.Quantity); err != nil {
		return nil, err
	}

	var card any
	if len(p.CardDetails) > 0 {
		card = string(p.CardDetails)
	}
	o := &Order{
		ID:             p.OrderID,
		UserID:         p.UserID,
		Total:          p.Total,
		DeliveryCharge: p.DeliveryCharge,
		PaymentMethod:  p.PaymentMethod,
		PaymentStatus:  PaymentPending,
		Status:         p.Status,
		Address:        p.Address,
		CustomerName:   p.CustomerName,
		CustomerPhone:  p.CustomerPhone,
		CustomerEmail:  p.CustomerEmail,
		CardDetails:    p.CardDetails,
		GatewayOrderID: p.GatewayOrderID,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO orders (
		  id, user_id, total, delivery_charge, payment_method, payment_status, status,
		  address, customer_name, customer_phone, customer_email, card_details, gateway_order_id,
		  purchased_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::jsonb,NULLIF($13,''),$14,$14)
		RETURNING purchased_at, updated_at
	`, o.ID, o.UserID, o.Total.String(), o.DeliveryCharge.String(), string(o.PaymentMethod),
		string(o.PaymentStatus), string(o.Status), o.Address, o.CustomerName, o.CustomerPhone,
		o.CustomerEmail, card, o.GatewayOrderID, p.PurchasedAt,
	).Scan(&o.PurchasedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	it := Item{OrderID: o.ID, ProductID: prod.ID, Quantity: p.Quantity, Price: prod.Price}
	if err := tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, it.OrderID, it.ProductID, it.Quantity, it.Price.String()).Scan(&it.ID); err != nil {
		return nil, err
	}
	o.Items = []Item{it}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PGRepo) Get(ctx context.Context, id int64) (*Order, error) {
	return r.getOne(ctx, r.db, `WHERE o.id = $1`, id)
}

func (r *PGRepo) GetForUser(ctx context.Context, id int64, userID string) (*Order, error) {
	return r.getOne(ctx, r.db, `WHERE o.id = $1 AND o.user_id = $2`, id, userID)
}

func (r *PGRepo) GetByGatewayRef(ctx context.Context, gatewayOrderID, userID string) (*Order, error) {
	return r.getOne(ctx, r.db, `WHERE o.gateway_order_id = $1 AND o.user_id = $2`, gatewayOrderID, userID)
}

func (r *PGRepo) getOne(ctx context.Context, q querier, where string, args ...any) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *PGRepo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	f = f.normalized()
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE ($1 = '' OR o.user_id = $1) AND ($2 = '' OR o.status = $2)
		ORDER BY o.purchased_at DESC, o.id DESC
		LIMIT $3 OFFSET $4
	`, f.UserID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := loadItems(ctx, r.db, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func loadItems(ctx context.Context, q querier, orderIDs ...int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, COALESCE(product_id, ''), quantity, price::text
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *PGRepo) RecordPayment(ctx context.Context, id int64, res PaymentResult) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// A completed payment is never downgraded by a later bad callback.
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET
		  gateway_payment_id = CASE WHEN $2 = 'COMPLETED' THEN $3 ELSE gateway_payment_id END,
		  gateway_signature  = CASE WHEN $2 = 'COMPLETED' THEN $4 ELSE gateway_signature END,
		  payment_status     = CASE WHEN payment_status = 'COMPLETED' THEN payment_status ELSE $2 END,
		  status             = CASE WHEN $2 = 'COMPLETED' AND status = 'pending' THEN 'ordered' ELSE status END,
		  updated_at         = NOW()
		WHERE id = $1
	`, id, string(res.Status), res.GatewayPaymentID, res.Signature)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PGRepo) Transition(ctx context.Context, id int64, from, to Status, reason string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET
		  status = $3,
		  updated_at = $4,
		  cancellation_reason = CASE WHEN $3 = 'cancelled' THEN NULLIF($5, '') ELSE cancellation_reason END,
		  cancelled_at        = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStatusConflict
	}

	if to == StatusCancelled {
		if err := enqueueRestocks(ctx, tx, id, RestockCancel); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) Delete(ctx context.Context, id int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.getOne(ctx, tx, `WHERE o.id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusCancelled {
		if err := enqueueRestocks(ctx, tx, id, RestockDelete); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// enqueueRestocks writes one job per product of the order. The unique key
// makes a repeated enqueue for the same reason a no-op.
func enqueueRestocks(ctx context.Context, q querier, orderID int64, reason RestockReason) error {
	_, err := q.Exec(ctx, `
		INSERT INTO restock_jobs (order_id, product_id, quantity, reason)
		SELECT order_id, product_id, SUM(quantity), $2
		FROM order_items
		WHERE order_id = $1 AND product_id IS NOT NULL
		GROUP BY order_id, product_id
		ON CONFLICT (order_id, product_id, reason) DO NOTHING
	`, orderID, string(reason))
	return err
}

func (r *PGRepo) PendingRestocks(ctx context.Context, orderID int64, limit int) ([]RestockJob, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, reason, attempts, COALESCE(last_error, ''), applied_at, created_at
		FROM restock_jobs
		WHERE applied_at IS NULL AND ($1::bigint = 0 OR order_id = $1)
		ORDER BY id
		LIMIT $2
	`, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RestockJob
	for rows.Next() {
		var j RestockJob
		if err := rows.Scan(&j.ID, &j.OrderID, &j.ProductID, &j.Quantity, &j.Reason,
			&j.Attempts, &j.LastError, &j.AppliedAt, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *PGRepo) ApplyRestock(ctx context.Context, jobID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	applied, err := r.applyRestock(ctx, jobID)
	if err != nil {
		_, _ = r.db.Exec(ctx, `
			UPDATE restock_jobs SET attempts = attempts + 1, last_error = $2 WHERE id = $1
		`, jobID, err.Error())
		return false, err
	}
	return applied, nil
}

func (r *PGRepo) applyRestock(ctx context.Context, jobID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		productID string
		qty       int
	)
	err = tx.QueryRow(ctx, `
		SELECT product_id, quantity
		FROM restock_jobs
		WHERE id = $1 AND applied_at IS NULL
		FOR UPDATE SKIP LOCKED
	`, jobID).Scan(&productID, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1
	`, productID, qty)
	if err != nil {
		return false, err
	}
	var lastErr any
	if tag.RowsAffected() == 0 {
		lastErr = ErrProductNotFound.Error()
	}
	if _, err := tx.Exec(ctx, `
		UPDATE restock_jobs
		SET applied_at = NOW(), attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`, jobID, lastErr); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
