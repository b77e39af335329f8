package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventOrderShipped      = "OrderShipped"
	EventOrderCompleted    = "OrderCompleted"
	EventReviewCreated     = "ReviewCreated"
	EventDeliveryConfirmed = "DeliveryConfirmed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type OrderPlacedPayload struct {
	OrderID     int64           `json:"order_id"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	ItemID      int64           `json:"item_id"`
	Qty         int             `json:"qty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderShippedPayload struct {
	OrderID    int64  `json:"order_id"`
	SellerID   string `json:"seller_id"`
	Carrier    string `json:"carrier"`
	TrackingNo string `json:"tracking_no"`
	Correction bool   `json:"correction,omitempty"`
}

type OrderCompletedPayload struct {
	OrderID     int64     `json:"order_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type ReviewCreatedPayload struct {
	OrderID int64  `json:"order_id"`
	RaterID string `json:"rater_id"`
	RateeID string `json:"ratee_id"`
	Rating  int    `json:"rating"`
}

// DeliveryConfirmedPayload arrives from the delivery side and drives
// Shipped -> Completed.
type DeliveryConfirmedPayload struct {
	OrderID     int64     `json:"order_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Publisher sends one encoded event. Implementations must not block the caller
// on broker I/O.
type Publisher interface {
	PublishEvent(topic, eventType string, key, value []byte)
}

type traceKey struct{}

// WithTraceID carries the request id into emitted envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

func NewEnvelope(ctx context.Context, producer, eventType string, orderID int64, payload any, at time.Time) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		TraceID:       traceID(ctx),
		CorrelationID: string(PartitionKey(orderID)),
		Payload:       b,
	}, nil
}
