package admin

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultDays = 30
	topN        = 5
)

type UserStats struct {
	Total    int `json:"total_users"`
	Active   int `json:"active_users"`
	Blocked  int `json:"blocked_users"`
	Admins   int `json:"admin_users"`
	NewToday int `json:"new_users_today"`
}

type ProductStats struct {
	Total      int `json:"total_products"`
	Available  int `json:"available_products"`
	OutOfStock int `json:"out_of_stock_products"`
	Inactive   int `json:"inactive_products"`
}

// OrderStats covers orders purchased inside the dashboard window.
type OrderStats struct {
	Total             int             `json:"total_orders"`
	Completed         int             `json:"completed_orders"`
	Pending           int             `json:"pending_orders"`
	Shipped           int             `json:"shipped_orders"`
	Cancelled         int             `json:"cancelled_orders"`
	Revenue           decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type Summary struct {
	UserStats
	ProductStats
	OrderStats
	ConversionRate float64 `json:"conversion_rate"`
}

type TopProduct struct {
	ProductID    string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"total_revenue"`
}

type TopCustomer struct {
	UserID            string          `json:"id"`
	Username          string          `json:"username"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	OrdersCount       int             `json:"orders_count"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type RecentOrder struct {
	ID          int64           `json:"id"`
	Customer    string          `json:"customer"`
	Total       decimal.Decimal `json:"total"`
	Status      string          `json:"status"`
	PurchasedAt time.Time       `json:"date"`
}

type Dashboard struct {
	Summary      Summary       `json:"summary"`
	TopProducts  []TopProduct  `json:"top_products"`
	TopCustomers []TopCustomer `json:"top_customers"`
	RecentOrders []RecentOrder `json:"recent_orders"`
	PeriodDays   int           `json:"period_days"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Snapshot is one stored dashboard reading.
type Snapshot struct {
	ID                int64           `json:"id"`
	SnapshotDate      time.Time       `json:"snapshot_date"`
	PeriodDays        int             `json:"period_days"`
	TotalUsers        int             `json:"total_users"`
	ActiveUsers       int             `json:"active_users"`
	NewUsersToday     int             `json:"new_users_today"`
	TotalProducts     int             `json:"total_products"`
	AvailableProducts int             `json:"available_products"`
	OutOfStock        int             `json:"out_of_stock_products"`
	TotalOrders       int             `json:"total_orders"`
	CompletedOrders   int             `json:"completed_orders"`
	PendingOrders     int             `json:"pending_orders"`
	CancelledOrders   int             `json:"cancelled_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	RecordedBy        string          `json:"recorded_by,omitempty"`
}

func snapshotOf(d *Dashboard, recordedBy string) *Snapshot {
	s := d.Summary
	return &Snapshot{
		SnapshotDate:      d.Timestamp,
		PeriodDays:        d.PeriodDays,
		TotalUsers:        s.UserStats.Total,
		ActiveUsers:       s.Active,
		NewUsersToday:     s.NewToday,
		TotalProducts:     s.ProductStats.Total,
		AvailableProducts: s.Available,
		OutOfStock:        s.OutOfStock,
		TotalOrders:       s.OrderStats.Total,
		CompletedOrders:   s.Completed,
		PendingOrders:     s.Pending,
		CancelledOrders:   s.Cancelled,
		TotalRevenue:      s.Revenue,
		AverageOrderValue: s.AverageOrderValue,
		RecordedBy:        recordedBy,
	}
}
