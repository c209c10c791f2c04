package ordertest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/MikeMC777/ecom-ledger/internal/payment"
)

var ErrGatewayDown = errors.New("gateway unavailable")

// Gateway fakes the payment provider. Signatures are real HMACs over Secret.
type Gateway struct {
	Secret string
	Err    error
	Delay  time.Duration

	mu       sync.Mutex
	requests []payment.CreateOrderRequest
}

func (g *Gateway) CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (*payment.GatewayOrder, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	n := len(g.requests)
	g.mu.Unlock()

	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return &payment.GatewayOrder{
		ID:       "order_gw" + strconv.Itoa(n),
		Entity:   "order",
		Amount:   payment.MinorUnits(req.Amount),
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *Gateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return payment.VerifySignature(g.Secret, orderRef, paymentRef, signature)
}

func (g *Gateway) Requests() []payment.CreateOrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.CreateOrderRequest(nil), g.requests...)
}

var _ payment.Gateway = (*Gateway)(nil)
