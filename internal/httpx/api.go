package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/campus-market/internal/analytics"
	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/ariefcatur/campus-market/internal/inventory"
	"github.com/ariefcatur/campus-market/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HeaderStudentNo carries the caller's identity, set by the campus gateway
// after login.
const HeaderStudentNo = "X-Student-No"

const maxBody = 1 << 20

type Handler struct {
	Orders  *orders.Service
	Catalog *inventory.Catalog
	Admin   analytics.Source
	Log     *zap.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api", h.dispatch)
	r.Get("/orders/{id}", h.getOrder)
}

type call struct {
	caller string
	raw    []byte
}

type action struct {
	anonymous bool
	admin     bool
	run       func(h *Handler, ctx context.Context, c call) (map[string]any, error)
}

var actions = map[string]action{
	"place_order":             {run: (*Handler).placeOrder},
	"ship_order":              {run: (*Handler).shipOrder},
	"create_review":           {run: (*Handler).createReview},
	"pending_reviews":         {run: (*Handler).pendingReviews},
	"orders_to_ship":          {run: (*Handler).ordersToShip},
	"my_orders":               {run: (*Handler).myOrders},
	"order_shipment":          {run: (*Handler).orderShipment},
	"list_items":              {anonymous: true, run: (*Handler).listItems},
	"list_my_selling_items":   {run: (*Handler).listMySellingItems},
	"add_item":                {run: (*Handler).addItem},
	"analytics_seller_rating": {admin: true, run: (*Handler).sellerRatings},
	"analytics_top_items":     {admin: true, run: (*Handler).topItems},
}

type envelope struct {
	Action string `json:"action" validate:"required"`
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeFail(w, r, h.log(), invalid(&DecodeError{Reason: "unreadable body"}))
		return
	}
	var env envelope
	if err := decode(raw, &env); err != nil {
		writeFail(w, r, h.log(), err)
		return
	}
	act, ok := actions[env.Action]
	if !ok {
		writeFail(w, r, h.log(), invalid(&DecodeError{Field: "action", Reason: "is unknown"}))
		return
	}

	ctx := orders.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
	c := call{caller: strings.TrimSpace(r.Header.Get(HeaderStudentNo)), raw: raw}
	if !act.anonymous && c.caller == "" {
		writeFail(w, r, h.log(), apperr.New(apperr.KindForbidden, "login required"))
		return
	}
	if act.admin {
		if err := h.requireAdmin(ctx, c.caller); err != nil {
			writeFail(w, r, h.log(), err)
			return
		}
	}

	out, err := act.run(h, ctx, c)
	if err != nil {
		writeFail(w, r, h.log(), err)
		return
	}
	writeOK(w, out)
}

func (h *Handler) requireAdmin(ctx context.Context, caller string) error {
	if h.Admin == nil {
		return apperr.New(apperr.KindForbidden, "admin only")
	}
	ok, err := h.Admin.IsAdmin(ctx, caller)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "role lookup failed")
	}
	if !ok {
		return apperr.New(apperr.KindForbidden, "admin only")
	}
	return nil
}

// ---- orders ----

type placeOrderReq struct {
	ItemID *int64 `json:"item_id" validate:"required"`
	Qty    *int   `json:"qty" validate:"required"`
}

func (h *Handler) placeOrder(ctx context.Context, c call) (map[string]any, error) {
	var req placeOrderReq
	if err := decode(c.raw, &req); err != nil {
		return nil, err
	}
	p, err := h.Orders.PlaceOrder(ctx, c.caller, *req.ItemID, *req.Qty)
	if err != nil {
		return nil, err
	}
	return map[string]any{"order_id": p.OrderID, "total_amount": p.TotalAmount}, nil
}

type shipOrderReq struct {
	OrderID    *int64 `json:"order_id" validate:"required"`
	Carrier    string `json:"carrier"`
	TrackingNo string `json:"tracking_no"`
}

func (h *Handler) shipOrder(ctx context.Context, c call) (map[string]any, error) {
	var req shipOrderReq
	if err := decode(c.raw, &req); err != nil {
		return nil, err
	}
	shp, err := h.Orders.ShipOrder(ctx, c.caller, *req.OrderID, req.Carrier, req.TrackingNo)
	if err != nil {
		return nil, err
	}
	return map[string]any{"order_id": shp.OrderID, "carrier": shp.Carrier, "tracking_no": shp.TrackingNo}, nil
}

type createReviewReq struct {
	OrderID *int64      `json:"order_id" validate:"required"`
	Rating  json.Number `json:"rating" validate:"required"`
	Comment string      `json:"comment"`
}

func (h *Handler) createReview(ctx context.Context, c call) (map[string]any, error) {
	var req createReviewReq
	if err := decode(c.raw, &req); err != nil {
		return nil, err
	}
	rating, err := strconv.Atoi(req.Rating.String())
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidRating, "rating must be an integer between %d and %d", orders.MinRating, orders.MaxRating)
	}
	if err := h.Orders.CreateReview(ctx, c.caller, *req.OrderID, rating, strings.TrimSpace(req.Comment)); err != nil {
		return nil, err
	}
	return map[string]any{"order_id": *req.OrderID}, nil
}

func (h *Handler) pendingReviews(ctx context.Context, c call) (map[string]any, error) {
	out, err := h.Orders.ListPendingReviews(ctx, c.caller)
	if err != nil {
		return nil, err
	}
	return map[string]any{"orders": out}, nil
}

func (h *Handler) ordersToShip(ctx context.Context, c call) (map[string]any, error) {
	out, err := h.Orders.ListOrdersToShip(ctx, c.caller)
	if err != nil {
		return nil, err
	}
	return map[string]any{"orders": out}, nil
}

func (h *Handler) myOrders(ctx context.Context, c call) (map[string]any, error) {
	out, err := h.Orders.ListBuyerOrders(ctx, c.caller)
	if err != nil {
		return nil, err
	}
	return map[string]any{"orders": out}, nil
}

type orderRef struct {
	OrderID *int64 `json:"order_id" validate:"required"`
}

func (h *Handler) orderShipment(ctx context.Context, c call) (map[string]any, error) {
	var req orderRef
	if err := decode(c.raw, &req); err != nil {
		return nil, err
	}
	shp, err := h.Orders.OrderShipment(ctx, c.caller, *req.OrderID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"order_id": shp.OrderID, "carrier": shp.Carrier,
		"tracking_no": shp.TrackingNo, "shipped_at": shp.ShippedAt,
	}, nil
}

// ---- catalog ----

func (h *Handler) listItems(ctx context.Context, _ call) (map[string]any, error) {
	out, err := h.Catalog.ListAvailable(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list items failed")
	}
	return map[string]any{"items": out}, nil
}

func (h *Handler) listMySellingItems(ctx context.Context, c call) (map[string]any, error) {
	out, err := h.Catalog.ListBySeller(ctx, c.caller)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list selling items failed")
	}
	return map[string]any{"items": out}, nil
}

type addItemReq struct {
	CategoryID  *int64           `json:"category_id"`
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	Condition   string           `json:"condition"`
	Quantity    *int             `json:"quantity" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
}

func (h *Handler) addItem(ctx context.Context, c call) (map[string]any, error) {
	var req addItemReq
	if err := decode(c.raw, &req); err != nil {
		return nil, err
	}
	id, err := h.Catalog.AddItem(ctx, c.caller, inventory.NewItem{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Condition:   req.Condition,
		Quantity:    *req.Quantity,
		Price:       *req.Price,
	})
	if err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			err = apperr.Wrap(apperr.KindInternal, err, "add item failed")
		}
		return nil, err
	}
	return map[string]any{"item_id": id}, nil
}

// ---- analytics ----

func (h *Handler) sellerRatings(ctx context.Context, _ call) (map[string]any, error) {
	out, err := h.Admin.SellerRatings(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "seller ratings failed")
	}
	return map[string]any{"data": out}, nil
}

type topItemsReq struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

func (h *Handler) topItems(ctx context.Context, c call) (map[string]any, error) {
	var req topItemsReq
	if err := decode(c.raw, &req); err != nil {
		return nil, err
	}
	out, err := h.Admin.TopItems(ctx, req.Limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "top items failed")
	}
	return map[string]any{"data": out}, nil
}

// ---- status ----

// getOrder answers from the status cache and falls back to the database.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeFail(w, r, h.log(), invalid(&DecodeError{Field: "id", Reason: "must be a positive integer"}))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Orders.OrderStatus(ctx, id)
	if err != nil {
		writeFail(w, r, h.log(), err)
		return
	}
	writeOK(w, map[string]any{"order_id": id, "order_status": st})
}
