package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/campus-market/internal/analytics"
	"github.com/ariefcatur/campus-market/internal/inventory"
	"github.com/ariefcatur/campus-market/internal/orders"
	"github.com/ariefcatur/campus-market/internal/orders/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmin struct {
	admins map[string]bool
	err    error
}

func (f *fakeAdmin) IsAdmin(_ context.Context, id string) (bool, error) { return f.admins[id], f.err }

func (f *fakeAdmin) SellerRatings(context.Context) ([]analytics.SellerRating, error) {
	return []analytics.SellerRating{{Seller: "S1", AvgRating: decimal.RequireFromString("4.50"), ReviewCount: 2}}, nil
}

func (f *fakeAdmin) TopItems(_ context.Context, limit int) ([]analytics.TopItem, error) {
	return []analytics.TopItem{{ItemID: 1, Title: "Desk lamp", TotalSold: limit}}, nil
}

type testAPI struct {
	router *chi.Mux
	store  *memstore.Store
	admin  *fakeAdmin
	itemID int64
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := memstore.New()
	st.AddUser(memstore.User{ID: "S1", Name: "Seller", Phone: "0911"})
	st.AddUser(memstore.User{ID: "B1", Name: "Buyer", Phone: "0922"})
	st.AddUser(memstore.User{ID: "A1", Name: "Admin"})
	id := st.PutItem(inventory.Item{
		SellerID: "S1", Title: "Desk lamp", Price: decimal.NewFromInt(250),
		Quantity: 2, Status: inventory.StatusListed,
	})

	admin := &fakeAdmin{admins: map[string]bool{"A1": true}}
	h := &Handler{
		Orders:  &orders.Service{Store: st, Now: func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }},
		Catalog: &inventory.Catalog{Store: st},
		Admin:   admin,
	}
	r := NewRouter(nil)
	h.Register(r)
	return &testAPI{router: r, store: st, admin: admin, itemID: id}
}

func (a *testAPI) post(t *testing.T, caller, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	if caller != "" {
		req.Header.Set(HeaderStudentNo, caller)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestAPIOrderFlow(t *testing.T) {
	a := newTestAPI(t)

	code, out := a.post(t, "B1", `{"action":"place_order","item_id":1,"qty":2}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, float64(1), out["order_id"])
	assert.Equal(t, "500", out["total_amount"])

	code, out = a.post(t, "B1", `{"action":"place_order","item_id":1,"qty":1}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "fail", out["status"])
	assert.Equal(t, "NotAvailable", out["kind"])

	code, out = a.post(t, "S1", `{"action":"orders_to_ship"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["orders"], 1)

	code, out = a.post(t, "B1", `{"action":"order_shipment","order_id":1}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotFound", out["kind"])

	code, out = a.post(t, "B1", `{"action":"ship_order","order_id":1}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden", out["kind"])

	code, out = a.post(t, "S1", `{"action":"ship_order","order_id":1}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "7-11", out["carrier"])
	assert.Equal(t, "PKG-000001", out["tracking_no"])

	code, out = a.post(t, "B1", `{"action":"order_shipment","order_id":1}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "7-11", out["carrier"])
	assert.Equal(t, "PKG-000001", out["tracking_no"])
	assert.NotEmpty(t, out["shipped_at"])

	code, out = a.post(t, "B1", `{"action":"order_shipment"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", out["kind"])

	code, out = a.post(t, "B1", `{"action":"create_review","order_id":1,"rating":5}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "InvalidState", out["kind"])

	code, out = a.post(t, "B1", `{"action":"my_orders"}`)
	require.Equal(t, http.StatusOK, code)
	rows := out["orders"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Shipped", rows[0].(map[string]any)["status"])
}

func TestAPIReviewRating(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()
	svc := &orders.Service{Store: a.store}
	p, err := svc.PlaceOrder(ctx, "B1", a.itemID, 1)
	require.NoError(t, err)
	_, err = svc.ShipOrder(ctx, "S1", p.OrderID, "", "")
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmDelivery(ctx, p.OrderID))

	cases := []struct {
		body string
		code int
		kind string
	}{
		{`{"action":"create_review","order_id":1,"rating":4.5}`, http.StatusBadRequest, "InvalidRating"},
		{`{"action":"create_review","order_id":1,"rating":9}`, http.StatusBadRequest, "InvalidRating"},
		{`{"action":"create_review","order_id":1}`, http.StatusBadRequest, "InvalidInput"},
		{`{"action":"create_review","order_id":"one","rating":5}`, http.StatusBadRequest, "InvalidInput"},
		{`{"action":"create_review","order_id":1,"rating":5,"comment":" fine "}`, http.StatusOK, ""},
		{`{"action":"create_review","order_id":1,"rating":5}`, http.StatusConflict, "DuplicateReview"},
	}
	for _, tc := range cases {
		code, out := a.post(t, "B1", tc.body)
		assert.Equal(t, tc.code, code, tc.body)
		if tc.kind != "" {
			assert.Equal(t, tc.kind, out["kind"], tc.body)
		}
	}

	reviews := a.store.Reviews(p.OrderID)
	require.Len(t, reviews, 1)
	assert.Equal(t, "fine", reviews[0].Comment)
	assert.Equal(t, "S1", reviews[0].RateeID)
}

func TestAPIEnvelopeErrors(t *testing.T) {
	a := newTestAPI(t)
	cases := []struct {
		name   string
		caller string
		body   string
		code   int
		kind   string
	}{
		{"malformed", "B1", `{"action":`, http.StatusBadRequest, "InvalidInput"},
		{"no action", "B1", `{}`, http.StatusBadRequest, "InvalidInput"},
		{"unknown action", "B1", `{"action":"drop_tables"}`, http.StatusBadRequest, "InvalidInput"},
		{"anonymous order", "", `{"action":"place_order","item_id":1,"qty":1}`, http.StatusForbidden, "Forbidden"},
		{"bad qty", "B1", `{"action":"place_order","item_id":1,"qty":0}`, http.StatusBadRequest, "InvalidQuantity"},
		{"unknown item", "B1", `{"action":"place_order","item_id":99,"qty":1}`, http.StatusNotFound, "NotFound"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out := a.post(t, tc.caller, tc.body)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, "fail", out["status"])
			assert.Equal(t, tc.kind, out["kind"])
		})
	}
}

func TestAPICatalog(t *testing.T) {
	a := newTestAPI(t)

	code, out := a.post(t, "S1", `{"action":"add_item","title":"Calculus textbook","quantity":1,"price":"320.50","condition":"used"}`)
	require.Equal(t, http.StatusOK, code, out)
	newID := int64(out["item_id"].(float64))
	it, ok := a.store.Item(newID)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("320.5").Equal(it.Price))
	assert.Equal(t, inventory.StatusListed, it.Status)

	code, out = a.post(t, "S1", `{"action":"add_item","title":"Chair","quantity":0,"price":10}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", out["kind"])

	code, out = a.post(t, "", `{"action":"list_items"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["items"], 2)

	code, out = a.post(t, "S1", `{"action":"list_my_selling_items"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["items"], 2)
}

func TestAPIAnalyticsAdminOnly(t *testing.T) {
	a := newTestAPI(t)

	code, out := a.post(t, "B1", `{"action":"analytics_seller_rating"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden", out["kind"])

	code, out = a.post(t, "A1", `{"action":"analytics_seller_rating"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["data"], 1)

	code, out = a.post(t, "A1", `{"action":"analytics_top_items","limit":3}`)
	require.Equal(t, http.StatusOK, code)
	row := out["data"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(3), row["total_sold"])

	a.admin.err = errors.New("connection reset")
	code, out = a.post(t, "A1", `{"action":"analytics_top_items"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal", out["kind"])
	assert.Equal(t, "role lookup failed", out["message"])
	assert.NotContains(t, out["message"], "connection reset")
	assert.Contains(t, out, "diagnostic")
}

func TestGetOrderStatus(t *testing.T) {
	a := newTestAPI(t)
	_, err := (&orders.Service{Store: a.store}).PlaceOrder(context.Background(), "B1", a.itemID, 1)
	require.NoError(t, err)

	for _, tc := range []struct {
		path string
		code int
	}{
		{"/orders/1", http.StatusOK},
		{"/orders/2", http.StatusNotFound},
		{"/orders/x", http.StatusBadRequest},
	} {
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.code, rec.Code, tc.path)
		if tc.code == http.StatusOK {
			assert.Contains(t, rec.Body.String(), `"order_status":"Paid"`)
		}
	}
}
