// Package memstore is an in-process orders.Store with the same locking
// contract as the Postgres store: Lock* takes a per-row mutex held until the
// transaction ends, writes are buffered and applied only on commit, and the
// (order, rater) review key is unique.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/ariefcatur/campus-market/internal/inventory"
	"github.com/ariefcatur/campus-market/internal/orders"
)

// ErrInjected is returned by the operation named in Store.FailOn.
var ErrInjected = errors.New("memstore: injected failure")

type User struct {
	ID    string
	Name  string
	Phone string
}

type reviewKey struct {
	orderID int64
	rater   string
}

type Store struct {
	mu sync.Mutex

	users      map[string]User
	categories map[int64]string
	items      map[int64]inventory.Item
	orders     map[int64]orders.Order
	lines      []orders.OrderLine
	payments   map[int64]orders.Payment
	shipments  map[int64]orders.Shipment
	reviews    map[reviewKey]orders.Review

	nextItem  int64
	nextOrder int64

	itemLocks  map[int64]*sync.Mutex
	orderLocks map[int64]*sync.Mutex

	// FailOn names a Tx method ("InsertPayment", ...) that returns ErrInjected.
	FailOn string
}

func New() *Store {
	return &Store{
		users:      map[string]User{},
		categories: map[int64]string{},
		items:      map[int64]inventory.Item{},
		orders:     map[int64]orders.Order{},
		payments:   map[int64]orders.Payment{},
		shipments:  map[int64]orders.Shipment{},
		reviews:    map[reviewKey]orders.Review{},
		itemLocks:  map[int64]*sync.Mutex{},
		orderLocks: map[int64]*sync.Mutex{},
	}
}

// ---- seeding ----

func (s *Store) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) AddCategory(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[id] = name
}

// PutItem stores it as committed state and returns its id (assigned when zero).
func (s *Store) PutItem(it inventory.Item) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == 0 {
		s.nextItem++
		it.ID = s.nextItem
	} else if it.ID > s.nextItem {
		s.nextItem = it.ID
	}
	s.items[it.ID] = it
	return it.ID
}

// ---- inspection ----

func (s *Store) Item(id int64) (inventory.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

func (s *Store) Lines(orderID int64) []orders.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.OrderLine
	for _, l := range s.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out
}

func (s *Store) Payment(orderID int64) (orders.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	return p, ok
}

func (s *Store) Reviews(orderID int64) []orders.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Review
	for k, r := range s.reviews {
		if k.orderID == orderID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) ShipmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shipments)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// ---- orders.Store ----

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	t := &tx{
		s:         s,
		held:      map[string]*sync.Mutex{},
		itemView:  map[int64]inventory.Item{},
		orderView: map[int64]orders.Order{},
		reviewNew: map[reviewKey]bool{},
	}
	defer t.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) GetOrder(_ context.Context, orderID int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return orders.Order{}, apperr.New(apperr.KindNotFound, "order %d not found", orderID)
	}
	return o, nil
}

func (s *Store) GetShipment(_ context.Context, orderID int64) (orders.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shp, ok := s.shipments[orderID]
	if !ok {
		return orders.Shipment{}, apperr.New(apperr.KindNotFound, "no shipment for order %d", orderID)
	}
	return shp, nil
}

func (s *Store) ListOrdersToShip(_ context.Context, sellerID string) ([]orders.OrderToShip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var picked []orders.Order
	for _, o := range s.orders {
		if o.SellerID == sellerID && o.Status == orders.StatusPaid {
			picked = append(picked, o)
		}
	}
	slices.SortFunc(picked, func(a, b orders.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	out := make([]orders.OrderToShip, 0, len(picked))
	for _, o := range picked {
		out = append(out, orders.OrderToShip{
			OrderID:     o.ID,
			BuyerName:   s.users[o.BuyerID].Name,
			TotalAmount: o.TotalAmount,
			CreatedAt:   o.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) ListPendingReviews(_ context.Context, buyerID string) ([]orders.PendingReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var picked []orders.Order
	for _, o := range s.orders {
		if o.BuyerID != buyerID || o.Status != orders.StatusCompleted {
			continue
		}
		if _, done := s.reviews[reviewKey{o.ID, buyerID}]; done {
			continue
		}
		picked = append(picked, o)
	}
	slices.SortFunc(picked, func(a, b orders.Order) int {
		if c := completedAt(b).Compare(completedAt(a)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	out := make([]orders.PendingReview, 0, len(picked))
	for _, o := range picked {
		out = append(out, orders.PendingReview{
			OrderID:     o.ID,
			SellerName:  s.users[o.SellerID].Name,
			CompletedAt: completedAt(o),
		})
	}
	return out, nil
}

func (s *Store) ListBuyerOrders(_ context.Context, buyerID string) ([]orders.BuyerOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var picked []orders.Order
	for _, o := range s.orders {
		if o.BuyerID == buyerID {
			picked = append(picked, o)
		}
	}
	slices.SortFunc(picked, func(a, b orders.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	out := make([]orders.BuyerOrder, 0, len(picked))
	for _, o := range picked {
		out = append(out, orders.BuyerOrder{
			OrderID:     o.ID,
			Status:      o.Status,
			TotalAmount: o.TotalAmount,
			SellerName:  s.users[o.SellerID].Name,
			CreatedAt:   o.CreatedAt,
			PaidAt:      o.PaidAt,
			ShippedAt:   o.ShippedAt,
			CompletedAt: o.CompletedAt,
		})
	}
	return out, nil
}

func completedAt(o orders.Order) time.Time {
	if o.CompletedAt == nil {
		return time.Time{}
	}
	return *o.CompletedAt
}

// ---- inventory.CatalogStore ----

func (s *Store) InsertItem(_ context.Context, it inventory.Item) (int64, error) {
	now := time.Now()
	it.ID = 0
	it.CreatedAt, it.UpdatedAt = now, now
	return s.PutItem(it), nil
}

func (s *Store) ListAvailable(context.Context) ([]inventory.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.Listing{}
	for _, it := range s.items {
		if it.Status != inventory.StatusListed || it.Quantity <= 0 {
			continue
		}
		l := inventory.Listing{
			ItemID:     it.ID,
			Title:      it.Title,
			Price:      it.Price,
			Condition:  it.Condition,
			Quantity:   it.Quantity,
			SellerName: s.users[it.SellerID].Name,
		}
		if it.CategoryID != nil {
			l.CategoryName = s.categories[*it.CategoryID]
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b inventory.Listing) int { return cmp.Compare(a.ItemID, b.ItemID) })
	return out, nil
}

func (s *Store) ListBySeller(_ context.Context, sellerID string) ([]inventory.SellerItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.SellerItem{}
	for _, it := range s.items {
		if it.SellerID == sellerID {
			out = append(out, inventory.SellerItem{
				ItemID: it.ID, Title: it.Title, Price: it.Price, Quantity: it.Quantity, Status: it.Status,
			})
		}
	}
	slices.SortFunc(out, func(a, b inventory.SellerItem) int { return cmp.Compare(a.ItemID, b.ItemID) })
	return out, nil
}
