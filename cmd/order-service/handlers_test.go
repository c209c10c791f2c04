package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/admin"
	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/httpx"
	ord "github.com/MikeMC777/ecom-ledger/internal/order"
	"github.com/MikeMC777/ecom-ledger/internal/order/ordertest"
	"github.com/MikeMC777/ecom-ledger/internal/payment"
)

//
// ---------- STUBS & FAKES ----------
//

const (
	secret   = "s3cret"
	customer = "user-1"
	stranger = "user-2"
	adminID  = "admin-1"
	blocked  = "user-blocked"
	product  = "prod-1"
)

// fakeIdentity stands in for the user service.
type fakeIdentity map[string]httpx.Principal

func (f fakeIdentity) Resolve(_ context.Context, id string) (httpx.Principal, error) {
	p, ok := f[id]
	if !ok {
		return httpx.Principal{}, apperr.NotFound("user not found")
	}
	return p, nil
}

// stubAdminRepo implements admin.Repository with fixed figures.
type stubAdminRepo struct {
	snapshots []admin.Snapshot
	since     time.Time
}

func (s *stubAdminRepo) UserStats(context.Context, time.Time) (admin.UserStats, error) {
	return admin.UserStats{Total: 2, Active: 2}, nil
}
func (s *stubAdminRepo) ProductStats(context.Context) (admin.ProductStats, error) {
	return admin.ProductStats{Total: 1, Available: 1}, nil
}
func (s *stubAdminRepo) OrderStats(_ context.Context, since time.Time) (admin.OrderStats, error) {
	s.since = since
	return admin.OrderStats{Total: 1}, nil
}
func (s *stubAdminRepo) TopProducts(context.Context, time.Time, int) ([]admin.TopProduct, error) {
	return []admin.TopProduct{}, nil
}
func (s *stubAdminRepo) TopCustomers(context.Context, time.Time, int) ([]admin.TopCustomer, error) {
	return []admin.TopCustomer{}, nil
}
func (s *stubAdminRepo) RecentOrders(context.Context, time.Time, int) ([]admin.RecentOrder, error) {
	return []admin.RecentOrder{}, nil
}
func (s *stubAdminRepo) InsertSnapshot(_ context.Context, snap *admin.Snapshot) error {
	snap.ID = int64(len(s.snapshots) + 1)
	s.snapshots = append(s.snapshots, *snap)
	return nil
}
func (s *stubAdminRepo) PruneSnapshots(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *stubAdminRepo) Snapshots(context.Context, time.Time) ([]admin.Snapshot, error) {
	return s.snapshots, nil
}

type env struct {
	router *gin.Engine
	store  *ordertest.Store
	gw     *ordertest.Gateway
	admin  *stubAdminRepo
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := ordertest.NewStore()
	store.AddProduct(product, "100.00", 5)
	gw := &ordertest.Gateway{Secret: secret}
	svc := ord.NewService(store, gw, nil, zap.NewNop(), ord.Options{CancelWindowDays: 2})
	adminRepo := &stubAdminRepo{}
	adm := admin.NewService(adminRepo, zap.NewNop(), 365)

	identity := fakeIdentity{
		customer: {ID: customer, Role: "user"},
		stranger: {ID: stranger, Role: "user"},
		adminID:  {ID: adminID, Role: "admin"},
		blocked:  {ID: blocked, Role: "user", Blocked: true},
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, svc, adm, identity)
	return &env{router: r, store: store, gw: gw, admin: adminRepo}
}

func (e *env) do(method, path, user, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(httpx.HeaderUserID, user)
	}
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid json: %v body=%s", err, w.Body.String())
	}
}

func placeBody(method string, qty int) string {
	return fmt.Sprintf(`{"product":%q,"quantity":%d,"payment_method":%q,"delivery_charge":"0","total":"%d.00",
		"address":"12 MG Road","customer_name":"Asha","customer_phone":"+91 98450 00000","customer_email":"asha@example.com"}`,
		product, qty, method, 100*qty)
}

func (e *env) placeCOD(t *testing.T, qty int) ord.Order {
	t.Helper()
	w := e.do(http.MethodPost, "/orders", customer, placeBody("COD", qty))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var o ord.Order
	decode(t, w, &o)
	return o
}

//
// ---------- TESTS ----------
//

func TestIdentityIsRequired(t *testing.T) {
	e := newEnv(t)

	if w := e.do(http.MethodGet, "/orders", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status=%d", w.Code)
	}
	if w := e.do(http.MethodGet, "/orders", "ghost", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: status=%d", w.Code)
	}
	if w := e.do(http.MethodGet, "/orders", blocked, ""); w.Code != http.StatusForbidden {
		t.Fatalf("blocked user: status=%d", w.Code)
	}
	if w := e.do(http.MethodGet, "/admin/orders", customer, ""); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin on /admin: status=%d", w.Code)
	}
}

func TestPlaceOrder_COD(t *testing.T) {
	e := newEnv(t)

	o := e.placeCOD(t, 2)
	if o.Status != ord.StatusOrdered || o.UserID != customer || len(o.Items) != 1 {
		t.Fatalf("unexpected order: %+v", o)
	}
	if got := e.store.Stock(product); got != 3 {
		t.Fatalf("stock=%d, want 3", got)
	}

	w := e.do(http.MethodGet, "/orders", customer, "")
	var mine []ord.Order
	decode(t, w, &mine)
	if len(mine) != 1 || mine[0].ID != o.ID {
		t.Fatalf("list: %+v", mine)
	}

	// another customer sees nothing of it
	if w := e.do(http.MethodGet, fmt.Sprintf("/orders/%d", o.ID), stranger, ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign order: status=%d", w.Code)
	}
	if w := e.do(http.MethodGet, "/orders/abc", customer, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", w.Code)
	}
}

func TestPlaceOrder_NotEnoughStock(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/orders", customer, placeBody("COD", 6))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body httpx.HTTPError
	decode(t, w, &body)
	if body.Error != "Not enough stock" {
		t.Fatalf("error=%q", body.Error)
	}
	if e.store.Stock(product) != 5 || e.store.OrderCount() != 0 {
		t.Fatalf("nothing should change")
	}

	if w := e.do(http.MethodPost, "/orders", customer, `{"quantity":1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing product: status=%d", w.Code)
	}
	if w := e.do(http.MethodPost, "/orders", customer, `{"product":"nope"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown product: status=%d", w.Code)
	}
}

func TestRazorpayCheckoutAndVerification(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/orders", customer, placeBody("RAZORPAY", 1))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var res struct {
		Order   ord.Order            `json:"order"`
		Gateway payment.GatewayOrder `json:"razorpay_order"`
	}
	decode(t, w, &res)
	if res.Order.Status != ord.StatusPending || res.Gateway.ID == "" || res.Gateway.Amount != 10000 {
		t.Fatalf("unexpected checkout: %+v", res)
	}
	if res.Order.GatewayOrderID != res.Gateway.ID {
		t.Fatalf("gateway ref not stored: %+v", res.Order)
	}

	bad := fmt.Sprintf(`{"razorpay_order_id":%q,"razorpay_payment_id":"pay_1","razorpay_signature":"deadbeef"}`, res.Gateway.ID)
	w = e.do(http.MethodPost, "/orders/verify-payment", customer, bad)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("forged signature: status=%d body=%s", w.Code, w.Body.String())
	}
	var failed map[string]any
	decode(t, w, &failed)
	if failed["error"] != "Payment verification failed" || failed["payment_status"] != string(ord.PaymentFailed) {
		t.Fatalf("unexpected failure body: %v", failed)
	}

	sig := payment.Signature(secret, res.Gateway.ID, "pay_1")
	good := fmt.Sprintf(`{"razorpay_order_id":%q,"razorpay_payment_id":"pay_1","razorpay_signature":%q}`, res.Gateway.ID, sig)

	if w := e.do(http.MethodPost, "/orders/verify-payment", stranger, good); w.Code != http.StatusNotFound {
		t.Fatalf("foreign verification: status=%d", w.Code)
	}

	w = e.do(http.MethodPost, "/orders/verify-payment", customer, good)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var ok map[string]any
	decode(t, w, &ok)
	if ok["message"] != "Payment verified successfully" || ok["payment_id"] != "pay_1" || ok["status"] != string(ord.StatusOrdered) {
		t.Fatalf("unexpected body: %v", ok)
	}

	if w := e.do(http.MethodPost, "/orders/verify-payment", customer, `{"razorpay_order_id":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: status=%d", w.Code)
	}
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	o := e.placeCOD(t, 2)
	path := fmt.Sprintf("/orders/%d/cancel", o.ID)

	if w := e.do(http.MethodPost, path, customer, `{"reason":"too short"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("short reason: status=%d", w.Code)
	}
	if w := e.do(http.MethodPost, path, customer, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("no body: status=%d", w.Code)
	}
	if w := e.do(http.MethodPost, path, stranger, `{"reason":"not my order at all"}`); w.Code != http.StatusNotFound {
		t.Fatalf("foreign cancel: status=%d", w.Code)
	}

	w := e.do(http.MethodPost, path, customer, `{"reason":"ordered the wrong size"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != string(ord.StatusCancelled) || body["cancelled_reason"] != "ordered the wrong size" {
		t.Fatalf("unexpected body: %v", body)
	}
	if got := e.store.Stock(product); got != 5 {
		t.Fatalf("stock=%d, want 5 after cancel", got)
	}

	w = e.do(http.MethodPost, path, customer, `{"reason":"ordered the wrong size"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second cancel: status=%d", w.Code)
	}
	if got := e.store.Stock(product); got != 5 {
		t.Fatalf("stock=%d, restock must happen once", got)
	}
}

func TestCancelOrder_WindowExpired(t *testing.T) {
	e := newEnv(t)
	id := e.store.PutOrder(ord.Order{
		UserID:        customer,
		Total:         decimal.RequireFromString("100.00"),
		PaymentMethod: ord.PaymentCOD,
		PaymentStatus: ord.PaymentPending,
		Status:        ord.StatusOrdered,
		PurchasedAt:   time.Now().UTC().AddDate(0, 0, -3),
		Items:         []ord.Item{{ProductID: product, Quantity: 1}},
	})

	w := e.do(http.MethodPost, fmt.Sprintf("/orders/%d/cancel", id), customer, `{"reason":"arrived far too late"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	decode(t, w, &body)
	if body["days_since_order"] != float64(3) {
		t.Fatalf("days_since_order=%v", body["days_since_order"])
	}
}

func TestAdminOrders(t *testing.T) {
	e := newEnv(t)
	o := e.placeCOD(t, 2)
	path := fmt.Sprintf("/admin/orders/%d", o.ID)

	if w := e.do(http.MethodGet, path, adminID, ""); w.Code != http.StatusOK {
		t.Fatalf("admin get: status=%d", w.Code)
	}
	w := e.do(http.MethodGet, "/admin/orders?status=ORDERED", adminID, "")
	var all []ord.Order
	decode(t, w, &all)
	if len(all) != 1 {
		t.Fatalf("admin list: %+v", all)
	}
	if w := e.do(http.MethodGet, "/admin/orders?status=paid", adminID, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: status=%d", w.Code)
	}

	if w := e.do(http.MethodPut, path+"/status", adminID, `{"status":"delivered"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("skipping states: status=%d", w.Code)
	}
	w = e.do(http.MethodPut, path+"/status", adminID, `{"status":"processing"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var updated ord.Order
	decode(t, w, &updated)
	if updated.Status != ord.StatusProcessing {
		t.Fatalf("status=%s", updated.Status)
	}

	w = e.do(http.MethodDelete, path, adminID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var msg map[string]string
	decode(t, w, &msg)
	if msg["message"] != "Order deleted successfully" {
		t.Fatalf("message=%q", msg["message"])
	}
	if got := e.store.Stock(product); got != 5 {
		t.Fatalf("stock=%d, want 5 after delete", got)
	}
	if w := e.do(http.MethodDelete, path, adminID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status=%d", w.Code)
	}
}

func TestDashboardAndAnalytics(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/admin/dashboard?days=abc", adminID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var d admin.Dashboard
	decode(t, w, &d)
	if d.PeriodDays != 30 || d.Summary.ConversionRate != 50 {
		t.Fatalf("unexpected dashboard: %+v", d.Summary)
	}
	if len(e.admin.snapshots) != 1 || e.admin.snapshots[0].RecordedBy != adminID {
		t.Fatalf("snapshot not recorded: %+v", e.admin.snapshots)
	}

	w = e.do(http.MethodGet, "/admin/analytics?days=7", adminID, "")
	var a struct {
		PeriodDays int              `json:"period_days"`
		Count      int              `json:"count"`
		Snapshots  []admin.Snapshot `json:"snapshots"`
	}
	decode(t, w, &a)
	if a.PeriodDays != 7 || a.Count != 1 {
		t.Fatalf("unexpected analytics: %+v", a)
	}

	if w := e.do(http.MethodGet, "/admin/dashboard", customer, ""); w.Code != http.StatusForbidden {
		t.Fatalf("customer on dashboard: status=%d", w.Code)
	}
}
