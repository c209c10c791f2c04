package order

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-ledger/internal/payment"
)

// PlaceRequest is the checkout payload.
// swagger:model PlaceRequest
type PlaceRequest struct {
	ProductID      string          `json:"product"          example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity       *int            `json:"quantity"         example:"2"`
	PaymentMethod  PaymentMethod   `json:"payment_method"   example:"RAZORPAY"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"  example:"40.00" swaggertype:"string"`
	Total          decimal.Decimal `json:"total"            example:"439.80" swaggertype:"string"`
	Address        string          `json:"address"          example:"12 MG Road, Bengaluru"`
	CustomerName   string          `json:"customer_name"    example:"Asha Rao"`
	CustomerPhone  string          `json:"customer_phone"   example:"+91 98450 00000"`
	CustomerEmail  string          `json:"customer_email"   example:"asha@example.com"`
	CardDetails    json.RawMessage `json:"card_details,omitempty" swaggertype:"object"`
}

// PlaceResult carries the gateway order for online payments.
type PlaceResult struct {
	Order   *Order                `json:"order"`
	Gateway *payment.GatewayOrder `json:"razorpay_order,omitempty"`
}

// VerifyRequest is the checkout widget's success callback.
// swagger:model VerifyRequest
type VerifyRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id"   example:"order_NzQ1Mj"`
	GatewayPaymentID string `json:"razorpay_payment_id" example:"pay_NzQ1Mk"`
	Signature        string `json:"razorpay_signature"  example:"9c3f...e1"`
}

type VerifyResult struct {
	Verified bool
	Order    *Order
}

// CancelRequest swagger:model CancelRequest
type CancelRequest struct {
	Reason string `json:"reason" example:"Ordered the wrong size by mistake"`
}

// StatusRequest swagger:model StatusRequest
type StatusRequest struct {
	Status string `json:"status" example:"shipped"`
	Reason string `json:"reason,omitempty"`
}
