package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/campus-market/internal/apperr"
	kafkax "github.com/ariefcatur/campus-market/internal/kafka"
	"github.com/ariefcatur/campus-market/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mu    sync.Mutex
	calls []int64
	errs  []error // consumed per call; nil once exhausted
}

func (f *fakeCompleter) ConfirmDelivery(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type fakeDedup struct {
	mu       sync.Mutex
	state    map[string]string
	claimErr error
}

func newDedup() *fakeDedup { return &fakeDedup{state: map[string]string{}} }

func (d *fakeDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimErr != nil {
		return false, d.claimErr
	}
	if _, held := d.state[id]; held {
		return false, nil
	}
	d.state[id] = "claimed"
	return true, nil
}

func (d *fakeDedup) Done(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[id] = "done"
	return nil
}

func (d *fakeDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.state, id)
	return nil
}

type fakeCache struct {
	mu sync.Mutex
	m  map[int64]orders.Status
}

func (c *fakeCache) AdvanceStatus(_ context.Context, id int64, s orders.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[id]; ok && !s.Supersedes(cur) {
		return nil
	}
	c.m[id] = s
	return nil
}

func (c *fakeCache) GetStatus(_ context.Context, id int64) (orders.Status, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[id]
	return s, ok, nil
}

func eventID(t *testing.T, m kafkago.Message) string {
	t.Helper()
	env, err := kafkax.UnwrapPayload[orders.Envelope](m.Value)
	require.NoError(t, err)
	return env.EventID
}

func message(t *testing.T, eventType string, orderID int64, payload any) kafkago.Message {
	t.Helper()
	env, err := orders.NewEnvelope(context.Background(), "delivery-svc", eventType, orderID, payload, time.Now())
	require.NoError(t, err)
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleDeliveryConfirmed(t *testing.T) {
	c := &fakeCompleter{}
	d := newDedup()
	s := &Service{Orders: c, Dedup: d}

	m := message(t, orders.EventDeliveryConfirmed, 7, orders.DeliveryConfirmedPayload{OrderID: 7, ConfirmedAt: time.Now()})
	require.NoError(t, s.Handle(context.Background(), m))
	require.NoError(t, s.Handle(context.Background(), m), "redelivery")

	assert.Equal(t, []int64{7}, c.calls)
	assert.Equal(t, "done", d.state[eventID(t, m)])
}

func TestHandleSkipsEventClaimedElsewhere(t *testing.T) {
	c := &fakeCompleter{}
	d := newDedup()
	s := &Service{Orders: c, Dedup: d}

	m := message(t, orders.EventDeliveryConfirmed, 7, orders.DeliveryConfirmedPayload{OrderID: 7})
	d.state[eventID(t, m)] = "claimed"

	require.NoError(t, s.Handle(context.Background(), m))
	assert.Empty(t, c.calls)
}

func TestHandleProceedsWhenDedupIsDown(t *testing.T) {
	c := &fakeCompleter{}
	d := newDedup()
	d.claimErr = errors.New("redis: connection refused")
	s := &Service{Orders: c, Dedup: d}

	m := message(t, orders.EventDeliveryConfirmed, 7, orders.DeliveryConfirmedPayload{OrderID: 7})
	require.NoError(t, s.Handle(context.Background(), m))
	assert.Equal(t, []int64{7}, c.calls)
}

func TestHandleDeliveryRejectedIsCommitted(t *testing.T) {
	c := &fakeCompleter{errs: []error{apperr.New(apperr.KindInvalidState, "order 7 is Paid, not Shipped")}}
	d := newDedup()
	s := &Service{Orders: c, Dedup: d}

	m := message(t, orders.EventDeliveryConfirmed, 7, orders.DeliveryConfirmedPayload{OrderID: 7})
	assert.NoError(t, s.Handle(context.Background(), m))
	assert.Equal(t, "done", d.state[eventID(t, m)])
}

func TestHandleStorageFailureReleasesClaimForRetry(t *testing.T) {
	boom := errors.New("connection refused")
	c := &fakeCompleter{errs: []error{apperr.Wrap(apperr.KindInternal, boom, "confirm delivery failed")}}
	d := newDedup()
	s := &Service{Orders: c, Dedup: d}

	m := message(t, orders.EventDeliveryConfirmed, 7, orders.DeliveryConfirmedPayload{OrderID: 7})
	id := eventID(t, m)

	err := s.Handle(context.Background(), m)
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, d.state, id, "failed event must stay claimable")

	require.NoError(t, s.Handle(context.Background(), m), "retry")
	assert.Equal(t, []int64{7, 7}, c.calls)
	assert.Equal(t, "done", d.state[id])
}

func TestHandleReleasesClaimAfterCancel(t *testing.T) {
	c := &fakeCompleter{errs: []error{context.Canceled}}
	d := newDedup()
	s := &Service{Orders: c, Dedup: d}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := message(t, orders.EventDeliveryConfirmed, 7, orders.DeliveryConfirmedPayload{OrderID: 7})
	require.Error(t, s.Handle(ctx, m))
	assert.Empty(t, d.state)
}

func TestHandleDropsGarbage(t *testing.T) {
	c := &fakeCompleter{}
	s := &Service{Orders: c}

	assert.NoError(t, s.Handle(context.Background(), kafkago.Message{Value: []byte("{not json")}))
	assert.NoError(t, s.Handle(context.Background(), message(t, orders.EventDeliveryConfirmed, 0, map[string]string{"order_id": "x"})))
	assert.NoError(t, s.Handle(context.Background(), message(t, "SomethingElse", 1, struct{}{})))
	assert.Empty(t, c.calls)
}

func TestProjectionNeverMovesBackwards(t *testing.T) {
	cache := &fakeCache{m: map[int64]orders.Status{}}
	s := &Service{Orders: &fakeCompleter{}, Cache: cache}
	ctx := context.Background()

	require.NoError(t, s.Handle(ctx, message(t, orders.EventOrderShipped, 3, orders.OrderShippedPayload{OrderID: 3})))
	require.NoError(t, s.Handle(ctx, message(t, orders.EventOrderPlaced, 3, orders.OrderPlacedPayload{OrderID: 3})))

	st, _, _ := cache.GetStatus(ctx, 3)
	assert.Equal(t, orders.StatusShipped, st)

	require.NoError(t, s.Handle(ctx, message(t, orders.EventOrderCompleted, 3, orders.OrderCompletedPayload{OrderID: 3})))
	st, _, _ = cache.GetStatus(ctx, 3)
	assert.Equal(t, orders.StatusCompleted, st)
}

func TestTopics(t *testing.T) {
	assert.Contains(t, Topics(), orders.TopicDeliveryConfirmed)
	assert.Len(t, Topics(), 4)
}
