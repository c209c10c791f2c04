package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "COD"
	PaymentRazorpay PaymentMethod = "RAZORPAY"
	PaymentOnline   PaymentMethod = "Online"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentRazorpay, PaymentOnline:
		return true
	}
	return false
}

// InitialStatus is pending for methods that await a gateway callback.
func (m PaymentMethod) InitialStatus() Status {
	if m == PaymentCOD {
		return StatusOrdered
	}
	return StatusPending
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

type Order struct {
	ID                 int64           `json:"id"`
	UserID             string          `json:"user_id"`
	Total              decimal.Decimal `json:"total"`
	DeliveryCharge     decimal.Decimal `json:"delivery_charge"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	Status             Status          `json:"status"`
	Address            string          `json:"address"`
	CustomerName       string          `json:"customer_name"`
	CustomerPhone      string          `json:"customer_phone"`
	CustomerEmail      string          `json:"customer_email"`
	CardDetails        json.RawMessage `json:"card_details,omitempty" swaggertype:"object"`
	GatewayOrderID     string          `json:"razorpay_order_id,omitempty"`
	GatewayPaymentID   string          `json:"razorpay_payment_id,omitempty"`
	GatewaySignature   string          `json:"-"`
	CancellationReason string          `json:"cancelled_reason,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	PurchasedAt        time.Time       `json:"purchased_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Items              []Item          `json:"items"`
}

type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID string          `json:"product_id"` // empty once the product is hard-deleted
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Product is the slice of a catalog row the ledger needs on the purchase path.
type Product struct {
	ID        string
	Price     decimal.Decimal
	Stock     int
	IsActive  bool
	IsDeleted bool
}

func (p Product) Purchasable() bool { return p.IsActive && !p.IsDeleted }

// Placement is everything the store needs to commit a new order.
type Placement struct {
	OrderID        int64
	UserID         string
	ProductID      string
	Quantity       int
	PaymentMethod  PaymentMethod
	Status         Status
	Total          decimal.Decimal
	DeliveryCharge decimal.Decimal
	Address        string
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	CardDetails    json.RawMessage
	GatewayOrderID string
	PurchasedAt    time.Time
}

// PaymentResult is persisted after a signature check.
type PaymentResult struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Status           PaymentStatus
}

type RestockReason string

const (
	RestockCancel RestockReason = "cancel"
	RestockDelete RestockReason = "delete"
)

// RestockJob is one durable pending stock increment.
type RestockJob struct {
	ID        int64
	OrderID   int64
	ProductID string
	Quantity  int
	Reason    RestockReason
	Attempts  int
	LastError string
	AppliedAt *time.Time
	CreatedAt time.Time
}

type ListFilter struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
