package orders_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/campus-market/internal/inventory"
	"github.com/ariefcatur/campus-market/internal/orders"
	"github.com/ariefcatur/campus-market/internal/orders/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	seller      = "S1001"
	otherSeller = "S1002"
	buyer       = "B2001"
	buyer2      = "B2002"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type published struct {
	Topic    string
	Type     string
	Key      string
	Envelope orders.Envelope
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) PublishEvent(topic, eventType string, key, value []byte) {
	var env orders.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Topic: topic, Type: eventType, Key: string(key), Envelope: env})
}

func (r *recorder) ofType(t string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type memCache struct {
	mu sync.Mutex
	m  map[int64]orders.Status
}

func (c *memCache) AdvanceStatus(_ context.Context, id int64, s orders.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[int64]orders.Status{}
	}
	if cur, ok := c.m[id]; ok && !s.Supersedes(cur) {
		return nil
	}
	c.m[id] = s
	return nil
}

func (c *memCache) GetStatus(_ context.Context, id int64) (orders.Status, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[id]
	return s, ok, nil
}

type fixture struct {
	store  *memstore.Store
	svc    *orders.Service
	events *recorder
	cache  *memCache
	itemID int64
}

// newFixture seeds one seller item with the given stock at price 100.
func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	st := memstore.New()
	st.AddUser(memstore.User{ID: seller, Name: "Seller One", Phone: "0911000001"})
	st.AddUser(memstore.User{ID: otherSeller, Name: "Seller Two", Phone: "0911000002"})
	st.AddUser(memstore.User{ID: buyer, Name: "Buyer One", Phone: "0922000001"})
	st.AddUser(memstore.User{ID: buyer2, Name: "Buyer Two", Phone: "0922000002"})

	status := inventory.StatusListed
	if stock == 0 {
		status = inventory.StatusSoldOut
	}
	id := st.PutItem(inventory.Item{
		SellerID: seller,
		Title:    "Used bicycle",
		Price:    decimal.NewFromInt(100),
		Quantity: stock,
		Status:   status,
	})

	rec := &recorder{}
	cache := &memCache{}
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return &fixture{
		store:  st,
		events: rec,
		cache:  cache,
		itemID: id,
		svc: &orders.Service{
			Store:       st,
			Events:      rec,
			Cache:       cache,
			ServiceName: "market-api-test",
			Now:         c.Now,
		},
	}
}

func (f *fixture) item(t *testing.T) inventory.Item {
	t.Helper()
	it, ok := f.store.Item(f.itemID)
	require.True(t, ok)
	return it
}

func (f *fixture) order(t *testing.T, id int64) orders.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

// completedOrder drives a fresh order through Paid -> Shipped -> Completed.
func (f *fixture) completedOrder(t *testing.T, buyerID string) int64 {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.PlaceOrder(ctx, buyerID, f.itemID, 1)
	require.NoError(t, err)
	_, err = f.svc.ShipOrder(ctx, seller, p.OrderID, "", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmDelivery(ctx, p.OrderID))
	return p.OrderID
}
