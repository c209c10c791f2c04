package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/events"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
	"github.com/MikeMC777/ecom-ledger/internal/metrics"
	"github.com/MikeMC777/ecom-ledger/internal/payment"
)

const minCancelReason = 10

type Options struct {
	Currency         string
	GatewayTimeout   time.Duration
	CancelWindowDays int
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = "INR"
	}
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 10 * time.Second
	}
	if o.CancelWindowDays <= 0 {
		o.CancelWindowDays = 2
	}
	return o
}

type Service struct {
	store   Store
	gateway payment.Gateway
	events  events.Publisher
	log     *zap.Logger
	opts    Options
	now     func() time.Time
	tracer  trace.Tracer
}

func NewService(store Store, gw payment.Gateway, pub events.Publisher, log *zap.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.Nop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		gateway: gw,
		events:  pub,
		log:     log,
		opts:    opts.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
		tracer:  otel.Tracer("github.com/MikeMC777/ecom-ledger/internal/order"),
	}
}

// WithClock replaces the wall clock; used by tests of the cancellation window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Place(ctx context.Context, userID string, req PlaceRequest) (*PlaceResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", req.ProductID),
	))
	defer span.End()
	log := logging.FromContext(ctx, s.log)

	qty, err := validatePlace(&req)
	if err != nil {
		metrics.OrderPlaceFailures.WithLabelValues("invalid").Inc()
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.quantity", qty), attribute.String("payment.method", string(req.PaymentMethod)))

	prod, err := s.store.Product(ctx, req.ProductID)
	if err != nil {
		return nil, s.placeFailure(span, err)
	}
	if !prod.Purchasable() {
		return nil, s.placeFailure(span, ErrProductNotFound)
	}
	if prod.Stock < qty {
		return nil, s.placeFailure(span, ErrInsufficientStock)
	}

	id, err := s.store.NextID(ctx)
	if err != nil {
		return nil, s.placeFailure(span, err)
	}
	span.SetAttributes(attribute.Int64("order.id", id))

	var gw *payment.GatewayOrder
	if req.PaymentMethod == PaymentRazorpay {
		gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
		gw, err = s.gateway.CreateOrder(gctx, payment.CreateOrderRequest{
			Amount:   req.Total,
			Currency: s.opts.Currency,
			Receipt:  fmt.Sprintf("order_%d", id),
		})
		cancel()
		if err != nil {
			metrics.OrderPlaceFailures.WithLabelValues("gateway").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "gateway")
			log.Error("gateway_create_order_failed", zap.Int64("order_id", id), zap.Error(err))
			return nil, apperr.Internal("Payment gateway error", err)
		}
	}

	p := Placement{
		OrderID:        id,
		UserID:         userID,
		ProductID:      req.ProductID,
		Quantity:       qty,
		PaymentMethod:  req.PaymentMethod,
		Status:         req.PaymentMethod.InitialStatus(),
		Total:          req.Total,
		DeliveryCharge: req.DeliveryCharge,
		Address:        req.Address,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		CardDetails:    req.CardDetails,
		PurchasedAt:    s.now(),
	}
	if gw != nil {
		p.GatewayOrderID = gw.ID
	}

	o, err := s.store.Place(ctx, p)
	if err != nil {
		if gw != nil {
			// The gateway order is never paid; it expires on the provider side.
			log.Warn("gateway_order_orphaned", zap.Int64("order_id", id), zap.String("gateway_order_id", gw.ID), zap.Error(err))
		}
		return nil, s.placeFailure(span, err)
	}

	metrics.OrdersPlaced.WithLabelValues(string(o.PaymentMethod)).Inc()
	log.Info("order_placed",
		zap.Int64("order_id", o.ID),
		zap.String("product_id", req.ProductID),
		zap.Int("quantity", qty),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.String("status", string(o.Status)),
	)
	s.publish(ctx, events.Event{
		Type:    events.OrderPlaced,
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
		Data: map[string]any{
			"product_id":     req.ProductID,
			"quantity":       qty,
			"total":          o.Total.String(),
			"payment_method": string(o.PaymentMethod),
		},
	})
	return &PlaceResult{Order: o, Gateway: gw}, nil
}

func validatePlace(req *PlaceRequest) (int, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		return 0, apperr.BadRequest("product is required")
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty < 1 {
		return 0, apperr.BadRequest("quantity must be at least 1")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = PaymentCOD
	}
	if !req.PaymentMethod.Valid() {
		return 0, apperr.BadRequest("invalid payment method").With("payment_method", string(req.PaymentMethod))
	}
	if req.Total.IsNegative() || req.DeliveryCharge.IsNegative() {
		return 0, apperr.BadRequest("amounts must not be negative")
	}
	if req.PaymentMethod == PaymentRazorpay && !req.Total.IsPositive() {
		return 0, apperr.BadRequest("total must be positive for online payment")
	}
	return qty, nil
}

func (s *Service) placeFailure(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch {
	case errors.Is(err, ErrProductNotFound):
		metrics.OrderPlaceFailures.WithLabelValues("product_not_found").Inc()
		return apperr.NotFound("Product not found")
	case errors.Is(err, ErrInsufficientStock):
		metrics.OrderPlaceFailures.WithLabelValues("insufficient_stock").Inc()
		return apperr.BadRequest("Not enough stock")
	default:
		metrics.OrderPlaceFailures.WithLabelValues("internal").Inc()
		return apperr.Internal("could not place order", err)
	}
}

// VerifyPayment checks the gateway signature. A mismatch is a result, not an
// error: the order is marked FAILED and Verified is false.
func (s *Service) VerifyPayment(ctx context.Context, userID string, req VerifyRequest) (*VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.VerifyPayment")
	defer span.End()
	log := logging.FromContext(ctx, s.log)

	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		return nil, apperr.BadRequest("Missing payment verification data")
	}

	o, err := s.store.GetByGatewayRef(ctx, req.GatewayOrderID, userID)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))

	ok := s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	res := PaymentResult{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Status:           PaymentFailed,
	}
	if ok {
		res.Status = PaymentCompleted
	}

	updated, err := s.store.RecordPayment(ctx, o.ID, res)
	if err != nil {
		return nil, s.lookupErr(err)
	}

	outcome, evt := "failed", events.PaymentFailed
	if ok {
		outcome, evt = "verified", events.PaymentVerified
	}
	metrics.PaymentVerifications.WithLabelValues(outcome).Inc()
	log.Info("payment_verification",
		zap.Int64("order_id", o.ID),
		zap.String("outcome", outcome),
		zap.String("payment_status", string(updated.PaymentStatus)),
	)
	s.publish(ctx, events.Event{
		Type:    evt,
		OrderID: o.ID,
		UserID:  userID,
		Status:  string(updated.Status),
		Data:    map[string]any{"payment_id": req.GatewayPaymentID},
	})
	return &VerifyResult{Verified: ok, Order: updated}, nil
}

// Cancel is the customer cancellation. Checks run in a fixed order:
// ownership, status, time window, reason.
func (s *Service) Cancel(ctx context.Context, userID string, id int64, reason string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()
	log := logging.FromContext(ctx, s.log)

	o, err := s.store.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, s.lookupErr(err)
	}

	switch o.Status {
	case StatusOrdered:
	case StatusCancelled:
		return nil, apperr.BadRequest("This order has already been cancelled")
	default:
		return nil, apperr.BadRequest(fmt.Sprintf("Cannot cancel order with status '%s'", o.Status)).
			With("status", string(o.Status))
	}

	now := s.now()
	days := CalendarDaysBetween(o.PurchasedAt, now)
	if days > s.opts.CancelWindowDays {
		return nil, apperr.Forbidden(fmt.Sprintf(
			"Cancellation period expired. Orders can only be cancelled within %d days of purchase.", s.opts.CancelWindowDays)).
			With("days_since_order", days).
			With("cancellation_deadline", fmt.Sprintf("%d days", s.opts.CancelWindowDays))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.BadRequest("Cancellation reason is required")
	}
	if len([]rune(reason)) < minCancelReason {
		return nil, apperr.BadRequest(fmt.Sprintf("Please provide a detailed reason (at least %d characters)", minCancelReason))
	}

	if err := s.store.Transition(ctx, o.ID, StatusOrdered, StatusCancelled, reason, now); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, apperr.BadRequest("This order has already been cancelled")
		}
		return nil, s.lookupErr(err)
	}
	o.Status = StatusCancelled
	o.CancellationReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now

	metrics.OrdersCancelled.WithLabelValues("user").Inc()
	log.Info("order_cancelled", zap.Int64("order_id", o.ID), zap.Int("days_since_order", days))
	s.applyRestocks(ctx, o.ID)
	s.publish(ctx, events.Event{
		Type:    events.OrderCancelled,
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(o.Status),
		Data:    map[string]any{"reason": reason, "origin": "user"},
	})
	return o, nil
}

// UpdateStatus is the admin status change, validated against the
// transition table.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req StatusRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()
	log := logging.FromContext(ctx, s.log)

	to, err := ParseStatus(req.Status)
	if err != nil {
		return nil, apperr.BadRequest("invalid status").With("status", req.Status)
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	if err := CheckTransition(o.Status, to); err != nil {
		return nil, apperr.BadRequest(fmt.Sprintf("Cannot change status from '%s' to '%s'", o.Status, to)).
			With("from", string(o.Status)).
			With("to", string(to))
	}

	now := s.now()
	reason := strings.TrimSpace(req.Reason)
	if err := s.store.Transition(ctx, o.ID, o.Status, to, reason, now); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, apperr.BadRequest("Order status changed, reload and retry")
		}
		return nil, s.lookupErr(err)
	}
	from := o.Status
	o.Status = to
	o.UpdatedAt = now

	log.Info("order_status_changed", zap.Int64("order_id", o.ID), zap.String("from", string(from)), zap.String("to", string(to)))
	evt := events.Event{
		Type:    events.OrderStatus,
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  string(to),
		Data:    map[string]any{"from": string(from)},
	}
	if to == StatusCancelled {
		o.CancelledAt = &now
		if reason != "" {
			o.CancellationReason = reason
		}
		metrics.OrdersCancelled.WithLabelValues("admin").Inc()
		s.applyRestocks(ctx, o.ID)
		evt.Type = events.OrderCancelled
		evt.Data["origin"] = "admin"
	}
	s.publish(ctx, evt)
	return o, nil
}

// Delete hard-deletes an order. Stock held by a non-cancelled order is
// returned; a cancelled order already gave its stock back.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "order.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()
	log := logging.FromContext(ctx, s.log)

	o, err := s.store.Delete(ctx, id)
	if err != nil {
		return s.lookupErr(err)
	}
	log.Info("order_deleted", zap.Int64("order_id", o.ID), zap.String("status", string(o.Status)))
	s.applyRestocks(ctx, o.ID)
	s.publish(ctx, events.Event{Type: events.OrderDeleted, OrderID: o.ID, UserID: o.UserID, Status: string(o.Status)})
	return nil
}

func (s *Service) Get(ctx context.Context, userID string, id int64) (*Order, error) {
	o, err := s.store.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	out, err := s.store.List(ctx, ListFilter{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperr.Internal("could not list orders", err)
	}
	return out, nil
}

func (s *Service) AdminGet(ctx context.Context, id int64) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return o, nil
}

func (s *Service) AdminList(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.BadRequest("invalid status").With("status", string(f.Status))
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("could not list orders", err)
	}
	return out, nil
}

func (s *Service) lookupErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Order not found")
	}
	return apperr.Internal("order store error", err)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx, s.log).Warn("event_publish_failed",
			zap.String("type", e.Type), zap.Int64("order_id", e.OrderID), zap.Error(err))
	}
}

// CalendarDaysBetween counts UTC date boundaries crossed from a to b.
func CalendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
