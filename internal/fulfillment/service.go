// Package fulfillment consumes order-side events: delivery confirmations that
// complete orders, and lifecycle events that keep the status cache fresh.
package fulfillment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ariefcatur/campus-market/internal/apperr"
	kafkax "github.com/ariefcatur/campus-market/internal/kafka"
	"github.com/ariefcatur/campus-market/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Completer interface {
	ConfirmDelivery(ctx context.Context, orderID int64) error
}

// Deduper hands out exclusive processing rights per event id. Claim is
// atomic; Done keeps the id, Release gives it back after a failure.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Done(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type Service struct {
	Orders Completer
	Dedup  Deduper
	Cache  orders.StatusCache
	Log    *zap.Logger
}

var projected = map[string]orders.Status{
	orders.EventOrderPlaced:    orders.StatusPaid,
	orders.EventOrderShipped:   orders.StatusShipped,
	orders.EventOrderCompleted: orders.StatusCompleted,
}

// Topics lists everything Handle understands.
func Topics() []string {
	return []string{
		orders.TopicDeliveryConfirmed,
		orders.TopicOrderPlaced,
		orders.TopicOrderShipped,
		orders.TopicOrderCompleted,
	}
}

// Handle is installed as the consumer handler. A nil return commits the offset,
// so only storage failures are returned; undecodable or rejected events are
// logged and dropped.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.log().Warn("dropping undecodable message", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}

	if env.EventType != orders.EventDeliveryConfirmed && projected[env.EventType] == "" {
		return nil
	}

	claimed := false
	if s.Dedup != nil && env.EventID != "" {
		ok, err := s.Dedup.Claim(ctx, env.EventID)
		switch {
		case err != nil:
			// both handlers are safe to repeat, so a dedup outage only costs work
			s.log().Warn("dedup claim failed", zap.String("event_id", env.EventID), zap.Error(err))
		case !ok:
			return nil
		default:
			claimed = true
		}
	}

	var err error
	if env.EventType == orders.EventDeliveryConfirmed {
		err = s.confirm(ctx, env)
	} else {
		err = s.project(ctx, env)
	}
	if !claimed {
		return err
	}

	// ctx may already be cancelled; the claim must still be settled
	settle, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err != nil {
		if rerr := s.Dedup.Release(settle, env.EventID); rerr != nil {
			s.log().Warn("dedup release failed", zap.String("event_id", env.EventID), zap.Error(rerr))
		}
		return err
	}
	if derr := s.Dedup.Done(settle, env.EventID); derr != nil {
		s.log().Warn("dedup done failed", zap.String("event_id", env.EventID), zap.Error(derr))
	}
	return nil
}

func (s *Service) confirm(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.DeliveryConfirmedPayload](env.Payload)
	if err != nil || p.OrderID <= 0 {
		s.log().Warn("bad delivery payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	err = s.Orders.ConfirmDelivery(ctx, p.OrderID)
	switch kind := apperr.KindOf(err); {
	case err == nil:
		return nil
	case apperr.Retryable(kind):
		return err
	default:
		s.log().Info("delivery confirmation rejected",
			zap.Int64("order_id", p.OrderID),
			zap.String("kind", string(kind)),
			zap.String("reason", apperr.MessageOf(err)))
		return nil
	}
}

func (s *Service) project(ctx context.Context, env orders.Envelope) error {
	if s.Cache == nil {
		return nil
	}
	p, err := kafkax.UnwrapPayload[struct {
		OrderID int64 `json:"order_id"`
	}](env.Payload)
	if err != nil || p.OrderID <= 0 {
		s.log().Warn("bad order payload", zap.String("event_type", env.EventType), zap.Error(err))
		return nil
	}
	// topics are not ordered against each other; AdvanceStatus never rewinds
	return s.Cache.AdvanceStatus(ctx, p.OrderID, projected[env.EventType])
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
