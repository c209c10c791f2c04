// Package ordertest provides in-memory fakes of the ledger's collaborators.
package ordertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-ledger/internal/order"
)

// Store is an order.Store backed by maps. One mutex plays the role of the
// product row lock.
type Store struct {
	mu       sync.Mutex
	products map[string]*order.Product
	orders   map[int64]*order.Order
	jobs     []*order.RestockJob
	nextID   int64
	nextItem int64
	nextJob  int64

	// FailRestock makes ApplyRestock return this error.
	FailRestock error
	// BeforePlace runs at the start of Place, before the lock is taken.
	BeforePlace func()
}

func NewStore() *Store {
	return &Store{
		products: map[string]*order.Product{},
		orders:   map[int64]*order.Order{},
	}
}

func (s *Store) AddProduct(id, price string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &order.Product{
		ID:       id,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
}

func (s *Store) SoftDeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.IsDeleted = true
	}
}

func (s *Store) RemoveProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

func (s *Store) Stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return p.Stock
	}
	return -1
}

// PutOrder inserts a fully formed order, e.g. one placed days ago.
func (s *Store) PutOrder(o order.Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextID++
		o.ID = s.nextID
	} else if o.ID > s.nextID {
		s.nextID = o.ID
	}
	for i := range o.Items {
		s.nextItem++
		o.Items[i].ID = s.nextItem
		o.Items[i].OrderID = o.ID
	}
	cp := cloneOrder(&o)
	s.orders[o.ID] = cp
	return o.ID
}

func (s *Store) Jobs() []order.RestockJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.RestockJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) Product(_ context.Context, id string) (*order.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, order.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) NextID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func (s *Store) Place(_ context.Context, p order.Placement) (*order.Order, error) {
	if hook := s.BeforePlace; hook != nil {
		s.BeforePlace = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prod, ok := s.products[p.ProductID]
	if !ok || !prod.Purchasable() {
		return nil, order.ErrProductNotFound
	}
	if prod.Stock < p.Quantity {
		return nil, order.ErrInsufficientStock
	}
	prod.Stock -= p.Quantity

	s.nextItem++
	o := &order.Order{
		ID:             p.OrderID,
		UserID:         p.UserID,
		Total:          p.Total,
		DeliveryCharge: p.DeliveryCharge,
		PaymentMethod:  p.PaymentMethod,
		PaymentStatus:  order.PaymentPending,
		Status:         p.Status,
		Address:        p.Address,
		CustomerName:   p.CustomerName,
		CustomerPhone:  p.CustomerPhone,
		CustomerEmail:  p.CustomerEmail,
		CardDetails:    p.CardDetails,
		GatewayOrderID: p.GatewayOrderID,
		PurchasedAt:    p.PurchasedAt,
		UpdatedAt:      p.PurchasedAt,
		Items: []order.Item{{
			ID:        s.nextItem,
			OrderID:   p.OrderID,
			ProductID: prod.ID,
			Quantity:  p.Quantity,
			Price:     prod.Price,
		}},
	}
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *Store) Get(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) GetForUser(_ context.Context, id int64, userID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.UserID != userID {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) GetByGatewayRef(_ context.Context, ref, userID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.GatewayOrderID == ref && o.UserID == userID {
			return cloneOrder(o), nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *Store) List(_ context.Context, f order.ListFilter) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []order.Order{}
	for _, o := range s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].PurchasedAt.After(out[j].PurchasedAt)
	})
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if f.Offset >= len(out) {
		return []order.Order{}, nil
	}
	out = out[f.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RecordPayment(_ context.Context, id int64, res order.PaymentResult) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if res.Status == order.PaymentCompleted {
		o.GatewayPaymentID = res.GatewayPaymentID
		o.GatewaySignature = res.Signature
		if o.Status == order.StatusPending {
			o.Status = order.StatusOrdered
		}
	}
	if o.PaymentStatus != order.PaymentCompleted {
		o.PaymentStatus = res.Status
	}
	o.UpdatedAt = time.Now().UTC()
	return cloneOrder(o), nil
}

func (s *Store) Transition(_ context.Context, id int64, from, to order.Status, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = at
	if to == order.StatusCancelled {
		if reason != "" {
			o.CancellationReason = reason
		}
		t := at
		o.CancelledAt = &t
		s.enqueueLocked(o, order.RestockCancel)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != order.StatusCancelled {
		s.enqueueLocked(o, order.RestockDelete)
	}
	delete(s.orders, id)
	return cloneOrder(o), nil
}

func (s *Store) enqueueLocked(o *order.Order, reason order.RestockReason) {
	qty := map[string]int{}
	var ids []string
	for _, it := range o.Items {
		if it.ProductID == "" {
			continue
		}
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	for _, pid := range ids {
		if s.hasJobLocked(o.ID, pid, reason) {
			continue
		}
		s.nextJob++
		s.jobs = append(s.jobs, &order.RestockJob{
			ID:        s.nextJob,
			OrderID:   o.ID,
			ProductID: pid,
			Quantity:  qty[pid],
			Reason:    reason,
			CreatedAt: time.Now().UTC(),
		})
	}
}

func (s *Store) hasJobLocked(orderID int64, productID string, reason order.RestockReason) bool {
	for _, j := range s.jobs {
		if j.OrderID == orderID && j.ProductID == productID && j.Reason == reason {
			return true
		}
	}
	return false
}

func (s *Store) PendingRestocks(_ context.Context, orderID int64, limit int) ([]order.RestockJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []order.RestockJob
	for _, j := range s.jobs {
		if j.AppliedAt != nil || (orderID > 0 && j.OrderID != orderID) {
			continue
		}
		out = append(out, *j)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ApplyRestock(_ context.Context, jobID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var job *order.RestockJob
	for _, j := range s.jobs {
		if j.ID == jobID {
			job = j
			break
		}
	}
	if job == nil || job.AppliedAt != nil {
		return false, nil
	}
	job.Attempts++
	if s.FailRestock != nil {
		job.LastError = s.FailRestock.Error()
		return false, s.FailRestock
	}
	now := time.Now().UTC()
	if p, ok := s.products[job.ProductID]; ok {
		p.Stock += job.Quantity
	} else {
		job.LastError = order.ErrProductNotFound.Error()
	}
	job.AppliedAt = &now
	return true, nil
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	return &cp
}

var _ order.Store = (*Store)(nil)
