// Package admin aggregates catalog, user and order figures for the admin
// dashboard and keeps a history of snapshots.
package admin

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	UserStats(ctx context.Context, today time.Time) (UserStats, error)
	ProductStats(ctx context.Context) (ProductStats, error)
	OrderStats(ctx context.Context, since time.Time) (OrderStats, error)
	TopProducts(ctx context.Context, since time.Time, limit int) ([]TopProduct, error)
	TopCustomers(ctx context.Context, since time.Time, limit int) ([]TopCustomer, error)
	RecentOrders(ctx context.Context, since time.Time, limit int) ([]RecentOrder, error)

	InsertSnapshot(ctx context.Context, s *Snapshot) error
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
	Snapshots(ctx context.Context, since time.Time) ([]Snapshot, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) UserStats(ctx context.Context, today time.Time) (UserStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s UserStats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active AND NOT is_blocked),
		       COUNT(*) FILTER (WHERE is_blocked),
		       COUNT(*) FILTER (WHERE role = 'admin'),
		       COUNT(*) FILTER (WHERE created_at >= $1)
		FROM users
	`, today).Scan(&s.Total, &s.Active, &s.Blocked, &s.Admins, &s.NewToday)
	return s, err
}

func (r *PGRepo) ProductStats(ctx context.Context) (ProductStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s ProductStats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active AND NOT is_deleted AND stock > 0),
		       COUNT(*) FILTER (WHERE stock = 0),
		       COUNT(*) FILTER (WHERE NOT is_active OR is_deleted)
		FROM products
	`).Scan(&s.Total, &s.Available, &s.OutOfStock, &s.Inactive)
	return s, err
}

func (r *PGRepo) OrderStats(ctx context.Context, since time.Time) (OrderStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s OrderStats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'delivered'),
		       COUNT(*) FILTER (WHERE status IN ('pending', 'processing')),
		       COUNT(*) FILTER (WHERE status IN ('shipped', 'ordered')),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COALESCE(SUM(total), 0)::text,
		       ROUND(COALESCE(AVG(total), 0), 2)::text
		FROM orders
		WHERE purchased_at >= $1
	`, since).Scan(&s.Total, &s.Completed, &s.Pending, &s.Shipped, &s.Cancelled, &s.Revenue, &s.AverageOrderValue)
	return s, err
}

// TopProducts ranks by revenue at the purchase-time price. Items whose
// product was permanently deleted are skipped.
func (r *PGRepo) TopProducts(ctx context.Context, since time.Time, limit int) ([]TopProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.price::text, SUM(oi.quantity), SUM(oi.price * oi.quantity)::text
		FROM order_items oi
		JOIN orders o   ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.purchased_at >= $1
		GROUP BY p.id, p.name, p.price
		ORDER BY SUM(oi.price * oi.quantity) DESC, p.id
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TopProduct{}
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Name, &t.Price, &t.QuantitySold, &t.Revenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) TopCustomers(ctx context.Context, since time.Time, limit int) ([]TopCustomer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.username, u.email, u.phone, COUNT(o.id),
		       SUM(o.total)::text, ROUND(AVG(o.total), 2)::text
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.purchased_at >= $1
		GROUP BY u.id, u.username, u.email, u.phone
		ORDER BY SUM(o.total) DESC, u.id
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TopCustomer{}
	for rows.Next() {
		var c TopCustomer
		if err := rows.Scan(&c.UserID, &c.Username, &c.Email, &c.Phone, &c.OrdersCount, &c.TotalSpent, &c.AverageOrderValue); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepo) RecentOrders(ctx context.Context, since time.Time, limit int) ([]RecentOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT o.id, u.username, o.total::text, o.status, o.purchased_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.purchased_at >= $1
		ORDER BY o.purchased_at DESC, o.id DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecentOrder{}
	for rows.Next() {
		var o RecentOrder
		if err := rows.Scan(&o.ID, &o.Customer, &o.Total, &o.Status, &o.PurchasedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PGRepo) InsertSnapshot(ctx context.Context, s *Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var recordedBy *string
	if s.RecordedBy != "" {
		recordedBy = &s.RecordedBy
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO analytics_snapshots (
			snapshot_date, period_days, total_users, active_users, new_users_today,
			total_products, available_products, out_of_stock,
			total_orders, completed_orders, pending_orders, cancelled_orders,
			total_revenue, average_order_value, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::text::numeric,$14::text::numeric,$15)
		RETURNING id
	`, s.SnapshotDate, s.PeriodDays, s.TotalUsers, s.ActiveUsers, s.NewUsersToday,
		s.TotalProducts, s.AvailableProducts, s.OutOfStock,
		s.TotalOrders, s.CompletedOrders, s.PendingOrders, s.CancelledOrders,
		s.TotalRevenue.StringFixed(2), s.AverageOrderValue.StringFixed(2), recordedBy,
	).Scan(&s.ID)
}

func (r *PGRepo) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM analytics_snapshots WHERE snapshot_date < $1`, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *PGRepo) Snapshots(ctx context.Context, since time.Time) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, snapshot_date, period_days, total_users, active_users, new_users_today,
		       total_products, available_products, out_of_stock,
		       total_orders, completed_orders, pending_orders, cancelled_orders,
		       total_revenue::text, average_order_value::text, COALESCE(recorded_by, '')
		FROM analytics_snapshots
		WHERE snapshot_date >= $1
		ORDER BY snapshot_date DESC, id DESC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.SnapshotDate, &s.PeriodDays, &s.TotalUsers, &s.ActiveUsers, &s.NewUsersToday,
			&s.TotalProducts, &s.AvailableProducts, &s.OutOfStock,
			&s.TotalOrders, &s.CompletedOrders, &s.PendingOrders, &s.CancelledOrders,
			&s.TotalRevenue, &s.AverageOrderValue, &s.RecordedBy); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepo)(nil)
