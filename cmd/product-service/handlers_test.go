package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	prod "github.com/MikeMC777/ecom-ledger/internal/product"
)

//
// ===== IN-MEMORY STUB REPO (implements product.Repository) =====
//

type stubRepo struct {
	items     map[string]*prod.Product
	lastQuery prod.Query
}

func newStubRepo() *stubRepo {
	return &stubRepo{items: make(map[string]*prod.Product)}
}

func (s *stubRepo) page(q prod.Query, keep func(*prod.Product) bool) []prod.Product {
	s.lastQuery = q
	out := make([]prod.Product, 0, len(s.items))
	for _, v := range s.items {
		if !keep(v) {
			continue
		}
		if q.Q != "" && !containsFold(v.Name, q.Q) && !containsFold(v.Description, q.Q) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	start := q.Offset
	if start > len(out) {
		return []prod.Product{}
	}
	end := start + q.Limit
	if end > len(out) || q.Limit <= 0 {
		end = len(out)
	}
	return out[start:end]
}

func (s *stubRepo) List(_ context.Context, q prod.Query) ([]prod.Product, error) {
	return s.page(q, func(p *prod.Product) bool { return p.IsActive && !p.IsDeleted }), nil
}

func (s *stubRepo) ListTrash(_ context.Context, q prod.Query) ([]prod.Product, error) {
	return s.page(q, func(p *prod.Product) bool { return p.IsDeleted }), nil
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*prod.Product, error) {
	p, ok := s.items[id]
	if !ok || p.IsDeleted {
		return nil, prod.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubRepo) Create(_ context.Context, p *prod.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.IsActive = true
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.items[p.ID] = &cp
	return nil
}

func (s *stubRepo) Update(_ context.Context, id string, patch prod.Patch) (*prod.Product, error) {
	cur, ok := s.items[id]
	if !ok || cur.IsDeleted {
		return nil, prod.ErrNotFound
	}
	if patch.Name != nil {
		cur.Name = *patch.Name
	}
	if patch.Description != nil {
		cur.Description = *patch.Description
	}
	if patch.Price != nil {
		cur.Price = *patch.Price
	}
	if patch.Stock != nil {
		cur.Stock = *patch.Stock
	}
	if patch.IsActive != nil {
		cur.IsActive = *patch.IsActive
	}
	cur.UpdatedAt = time.Now().UTC()
	cp := *cur
	return &cp, nil
}

func (s *stubRepo) SoftDelete(_ context.Context, id string) (bool, error) {
	p, ok := s.items[id]
	if !ok || p.IsDeleted {
		return false, nil
	}
	now := time.Now().UTC()
	p.IsDeleted, p.DeletedAt = true, &now
	return true, nil
}

func (s *stubRepo) Restore(_ context.Context, id string) (bool, error) {
	p, ok := s.items[id]
	if !ok || !p.IsDeleted {
		return false, nil
	}
	p.IsDeleted, p.DeletedAt = false, nil
	return true, nil
}

func (s *stubRepo) PermanentDelete(_ context.Context, id string) (bool, error) {
	p, ok := s.items[id]
	if !ok || !p.IsDeleted {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *stubRepo) seed(id, name, price string, stock int) {
	_ = s.Create(context.Background(), &prod.Product{
		ID: id, Name: name, Description: "desc", Price: decimal.RequireFromString(price), Stock: stock,
	})
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

//
// ===== TEST ROUTER (same handlers as main, without identity middleware) =====
//

func newRouter(repo prod.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/products", listOnlyHandler(repo))
	r.GET("/products/search", searchHandler(repo))
	r.GET("/products/trash", trashHandler(repo))
	r.GET("/products/:id", getProductHandler(repo))
	r.POST("/products", createProductHandler(repo))
	r.PUT("/products/:id", updateProductHandler(repo))
	r.DELETE("/products/:id", deleteProductHandler(repo))
	r.POST("/products/:id/restore", restoreHandler(repo))
	r.DELETE("/products/:id/permanent", permanentDeleteHandler(repo))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

//
// ===== TESTS =====
//

// /products paginates only; no search is sent to the repo
func TestListProducts_PaginationOnly_NoSearch(t *testing.T) {
	repo := newStubRepo()
	for _, id := range []string{"1", "2", "3"} {
		repo.seed(id, "Prod "+id, "10.00", 5)
	}
	r := newRouter(repo)

	w := do(r, http.MethodGet, "/products?limit=2&offset=1&q=ignored", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got prod.ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got.Items) != 2 || got.Limit != 2 || got.Offset != 1 {
		t.Fatalf("unexpected page: %+v", got)
	}
	if repo.lastQuery.Q != "" {
		t.Fatalf("list must not search; Q=%q", repo.lastQuery.Q)
	}
}

func TestListProducts_HidesInactiveAndTrashed(t *testing.T) {
	repo := newStubRepo()
	repo.seed("a", "Visible", "1.00", 1)
	repo.seed("b", "Hidden", "1.00", 1)
	repo.seed("c", "Trashed", "1.00", 1)
	repo.items["b"].IsActive = false
	_, _ = repo.SoftDelete(context.Background(), "c")
	r := newRouter(repo)

	w := do(r, http.MethodGet, "/products", "")
	var got prod.ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if len(got.Items) != 1 || got.Items[0].ID != "a" {
		t.Fatalf("expected only the active product, got %+v", got.Items)
	}
}

// /products/search requires q (>= 2 chars) and filters
func TestSearchProducts_RequiresQAndFilters(t *testing.T) {
	repo := newStubRepo()
	repo.seed("a", "Mouse Pro", "99.90", 5)
	repo.seed("b", "Keyboard", "149.90", 3)
	r := newRouter(repo)

	if w := do(r, http.MethodGet, "/products/search?limit=10", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing q, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/products/search?q=m", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short q, got %d", w.Code)
	}

	w := do(r, http.MethodGet, "/products/search?q=mo&limit=10&offset=0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got prod.ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Q != "mo" || len(got.Items) != 1 || got.Items[0].ID != "a" {
		t.Fatalf("unexpected result: q=%q items=%+v", got.Q, got.Items)
	}
	if repo.lastQuery.Q == "" {
		t.Fatalf("search must send Q to the repo")
	}
}

func TestGetProduct_OK_And_NotFound(t *testing.T) {
	repo := newStubRepo()
	repo.seed("x", "Headset", "149.90", 7)
	r := newRouter(repo)

	w := do(r, http.MethodGet, "/products/x", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var p prod.Product
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if !p.Price.Equal(decimal.RequireFromString("149.90")) || p.Stock != 7 {
		t.Fatalf("unexpected product: %+v", p)
	}

	if w := do(r, http.MethodGet, "/products/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestCreateProduct_Valid_And_Invalid(t *testing.T) {
	repo := newStubRepo()
	r := newRouter(repo)

	w := do(r, http.MethodPost, "/products", `{"name":"Starter Kit","description":"Basic","price":"49.90","stock":10}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(repo.items) != 1 {
		t.Fatalf("expected product stored, got %d", len(repo.items))
	}

	cases := map[string]string{
		"missing name and price": `{"description":"x","stock":1}`,
		"negative stock":         `{"name":"Bad","price":"1.00","stock":-1}`,
		"bad price":              `{"name":"Bad","price":"abc","stock":1}`,
		"negative price":         `{"name":"Bad","price":"-1","stock":1}`,
		"not json":               `{`,
	}
	for name, body := range cases {
		if w := do(r, http.MethodPost, "/products", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body=%s", name, w.Code, w.Body.String())
		}
	}
}

// PUT is partial: omitted fields, stock included, are left alone
func TestUpdateProduct_Partial(t *testing.T) {
	repo := newStubRepo()
	repo.seed("p", "Mouse", "10.00", 5)
	r := newRouter(repo)

	if w := do(r, http.MethodPut, "/products/p", `{"name":"Mouse 2"}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got := repo.items["p"]
	if got.Name != "Mouse 2" || !got.Price.Equal(decimal.RequireFromString("10")) || got.Stock != 5 {
		t.Fatalf("partial update not respected: %+v", got)
	}

	if w := do(r, http.MethodPut, "/products/p", `{"price":"12.50","stock":0}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !got.Price.Equal(decimal.RequireFromString("12.50")) || got.Stock != 0 {
		t.Fatalf("price/stock update not applied: %+v", got)
	}

	if w := do(r, http.MethodPut, "/products/p", `{"stock":-3}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative stock, got %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/products/p", `{"name":"  "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", w.Code)
	}
	if w := do(r, http.MethodPut, "/products/nope", `{"stock":1}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTrashLifecycle(t *testing.T) {
	repo := newStubRepo()
	repo.seed("del", "X", "1.00", 1)
	r := newRouter(repo)

	// permanent delete only works from the trash
	if w := do(r, http.MethodDelete, "/products/del/permanent", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before trash, got %d", w.Code)
	}

	if w := do(r, http.MethodDelete, "/products/del", ""); w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/products/del", ""); w.Code != http.StatusNotFound {
		t.Fatalf("trashed product should be hidden, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/products/del", ""); w.Code != http.StatusNotFound {
		t.Fatalf("second soft delete should 404, got %d", w.Code)
	}

	w := do(r, http.MethodGet, "/products/trash", "")
	var trash prod.ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &trash)
	if len(trash.Items) != 1 || trash.Items[0].DeletedAt == nil {
		t.Fatalf("unexpected trash: %+v", trash.Items)
	}

	if w := do(r, http.MethodPost, "/products/del/restore", ""); w.Code != http.StatusOK {
		t.Fatalf("restore status=%d body=%s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/products/del", ""); w.Code != http.StatusOK {
		t.Fatalf("restored product should be visible, got %d", w.Code)
	}

	_ = do(r, http.MethodDelete, "/products/del", "")
	if w := do(r, http.MethodDelete, "/products/del/permanent", ""); w.Code != http.StatusNoContent {
		t.Fatalf("permanent delete status=%d", w.Code)
	}
	if _, ok := repo.items["del"]; ok {
		t.Fatalf("product should be gone")
	}
}
