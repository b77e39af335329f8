package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/ariefcatur/campus-market/internal/inventory"
	"github.com/ariefcatur/campus-market/internal/orders"
)

type tx struct {
	s    *Store
	held map[string]*sync.Mutex

	// uncommitted writes, applied under s.mu by commit
	ops []func()

	itemView  map[int64]inventory.Item
	orderView map[int64]orders.Order
	reviewNew map[reviewKey]bool
	payNew    map[int64]bool
}

func (t *tx) lockRow(kind string, id int64) {
	key := fmt.Sprintf("%s:%d", kind, id)
	if _, ok := t.held[key]; ok {
		return
	}
	t.s.mu.Lock()
	table := t.s.itemLocks
	if kind == "order" {
		table = t.s.orderLocks
	}
	m, ok := table[id]
	if !ok {
		m = &sync.Mutex{}
		table[id] = m
	}
	t.s.mu.Unlock()

	m.Lock()
	t.held[key] = m
}

func (t *tx) release() {
	for k, m := range t.held {
		m.Unlock()
		delete(t.held, k)
	}
}

func (t *tx) injected(op string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.FailOn == op {
		return ErrInjected
	}
	return nil
}

func (t *tx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for k := range t.reviewNew {
		if _, dup := t.s.reviews[k]; dup {
			return apperr.New(apperr.KindDuplicateReview, "order %d already reviewed", k.orderID)
		}
	}
	for id := range t.payNew {
		if _, dup := t.s.payments[id]; dup {
			return fmt.Errorf("memstore: duplicate payment for order %d", id)
		}
	}
	for _, op := range t.ops {
		op()
	}
	return nil
}

// ---- inventory.LedgerTx ----

func (t *tx) LockItem(_ context.Context, itemID int64) (inventory.Item, error) {
	if err := t.injected("LockItem"); err != nil {
		return inventory.Item{}, err
	}
	t.lockRow("item", itemID)
	if it, ok := t.itemView[itemID]; ok {
		return it, nil
	}
	t.s.mu.Lock()
	it, ok := t.s.items[itemID]
	t.s.mu.Unlock()
	if !ok {
		return inventory.Item{}, apperr.New(apperr.KindNotFound, "item %d not found", itemID)
	}
	t.itemView[itemID] = it
	return it, nil
}

func (t *tx) SetStock(_ context.Context, itemID int64, quantity int, status inventory.ItemStatus) error {
	if err := t.injected("SetStock"); err != nil {
		return err
	}
	if quantity < 0 {
		return fmt.Errorf("memstore: items_quantity_check violated for item %d", itemID)
	}
	it, ok := t.itemView[itemID]
	if !ok {
		return fmt.Errorf("memstore: item %d not locked in this tx", itemID)
	}
	it.Quantity, it.Status, it.UpdatedAt = quantity, status, time.Now()
	t.itemView[itemID] = it
	t.ops = append(t.ops, func() { t.s.items[itemID] = it })
	return nil
}

// ---- orders.Tx ----

func (t *tx) Consignee(_ context.Context, buyerID string) (orders.Consignee, error) {
	t.s.mu.Lock()
	u, ok := t.s.users[buyerID]
	t.s.mu.Unlock()
	if !ok {
		return orders.Consignee{}, apperr.New(apperr.KindNotFound, "buyer %s not found", buyerID)
	}
	return orders.Consignee{Name: u.Name, Phone: u.Phone}, nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) (int64, error) {
	if err := t.injected("InsertOrder"); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	t.s.nextOrder++
	o.ID = t.s.nextOrder
	t.s.mu.Unlock()

	t.orderView[o.ID] = o
	t.ops = append(t.ops, func() { t.s.orders[o.ID] = o })
	return o.ID, nil
}

func (t *tx) InsertOrderLine(_ context.Context, l orders.OrderLine) error {
	if err := t.injected("InsertOrderLine"); err != nil {
		return err
	}
	t.ops = append(t.ops, func() { t.s.lines = append(t.s.lines, l) })
	return nil
}

func (t *tx) InsertPayment(_ context.Context, p orders.Payment) error {
	if err := t.injected("InsertPayment"); err != nil {
		return err
	}
	if t.payNew == nil {
		t.payNew = map[int64]bool{}
	}
	if t.payNew[p.OrderID] {
		return fmt.Errorf("memstore: duplicate payment for order %d", p.OrderID)
	}
	t.payNew[p.OrderID] = true
	t.ops = append(t.ops, func() { t.s.payments[p.OrderID] = p })
	return nil
}

func (t *tx) LockOrder(_ context.Context, orderID int64) (orders.Order, error) {
	if err := t.injected("LockOrder"); err != nil {
		return orders.Order{}, err
	}
	t.lockRow("order", orderID)
	if o, ok := t.orderView[orderID]; ok {
		return o, nil
	}
	t.s.mu.Lock()
	o, ok := t.s.orders[orderID]
	t.s.mu.Unlock()
	if !ok {
		return orders.Order{}, apperr.New(apperr.KindNotFound, "order %d not found", orderID)
	}
	t.orderView[orderID] = o
	return o, nil
}

func (t *tx) MarkShipped(_ context.Context, orderID int64, at time.Time) error {
	if err := t.injected("MarkShipped"); err != nil {
		return err
	}
	return t.setOrder(orderID, func(o *orders.Order) {
		o.Status = orders.StatusShipped
		o.ShippedAt = &at
	})
}

func (t *tx) MarkCompleted(_ context.Context, orderID int64, at time.Time) error {
	if err := t.injected("MarkCompleted"); err != nil {
		return err
	}
	return t.setOrder(orderID, func(o *orders.Order) {
		o.Status = orders.StatusCompleted
		o.CompletedAt = &at
	})
}

func (t *tx) setOrder(orderID int64, mut func(*orders.Order)) error {
	o, ok := t.orderView[orderID]
	if !ok {
		return fmt.Errorf("memstore: order %d not locked in this tx", orderID)
	}
	mut(&o)
	t.orderView[orderID] = o
	t.ops = append(t.ops, func() { t.s.orders[orderID] = o })
	return nil
}

func (t *tx) UpsertShipment(_ context.Context, shp orders.Shipment) error {
	if err := t.injected("UpsertShipment"); err != nil {
		return err
	}
	t.ops = append(t.ops, func() { t.s.shipments[shp.OrderID] = shp })
	return nil
}

func (t *tx) ReviewExists(_ context.Context, orderID int64, raterID string) (bool, error) {
	k := reviewKey{orderID, raterID}
	if t.reviewNew[k] {
		return true, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	_, ok := t.s.reviews[k]
	return ok, nil
}

func (t *tx) InsertReview(_ context.Context, r orders.Review) error {
	if err := t.injected("InsertReview"); err != nil {
		return err
	}
	k := reviewKey{r.OrderID, r.RaterID}
	if t.reviewNew[k] {
		return apperr.New(apperr.KindDuplicateReview, "order %d already reviewed", r.OrderID)
	}
	t.reviewNew[k] = true
	t.ops = append(t.ops, func() { t.s.reviews[k] = r })
	return nil
}
