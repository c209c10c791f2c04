package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Razorpay struct {
	HTTP      *http.Client
	BaseURL   string
	KeyID     string
	KeySecret string
}

func NewRazorpay(baseURL, keyID, keySecret string, timeout time.Duration) *Razorpay {
	return &Razorpay{
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL:   strings.TrimRight(baseURL, "/"),
		KeyID:     keyID,
		KeySecret: keySecret,
	}
}

type createOrderBody struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, in CreateOrderRequest) (*GatewayOrder, error) {
	body, err := json.Marshal(createOrderBody{
		Amount:         MinorUnits(in.Amount),
		Currency:       in.Currency,
		Receipt:        in.Receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.KeyID, r.KeySecret)

	res, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("razorpay create order: %s: %s", res.Status, bytes.TrimSpace(msg))
	}
	var out GatewayOrder
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("razorpay create order: decode: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("razorpay create order: empty order id")
	}
	return &out, nil
}

func (r *Razorpay) VerifySignature(orderRef, paymentRef, signature string) bool {
	return VerifySignature(r.KeySecret, orderRef, paymentRef, signature)
}
