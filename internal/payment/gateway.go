// Package payment talks to the Razorpay orders API and verifies the
// checkout signature returned to the client.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest describes a remote payment intent. Amount is in major
// units; the client converts to the gateway's minor units.
type CreateOrderRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

// GatewayOrder is the gateway's view of a payment intent. It is returned to
// the client as-is so the checkout widget can be opened.
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity,omitempty"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error)
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// Signature is hex(HMAC-SHA256(secret, orderRef|paymentRef)).
func Signature(secret, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time.
func VerifySignature(secret, orderRef, paymentRef, signature string) bool {
	want := Signature(secret, orderRef, paymentRef)
	return hmac.Equal([]byte(want), []byte(signature))
}

// MinorUnits converts an amount to paise/cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
