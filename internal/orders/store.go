package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/campus-market/internal/inventory"
)

// Store is the durable side of the order core. WithTx runs fn in one
// transaction: commit when fn returns nil, rollback on any other exit.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID int64) (Order, error)
	GetShipment(ctx context.Context, orderID int64) (Shipment, error)
	ListOrdersToShip(ctx context.Context, sellerID string) ([]OrderToShip, error)
	ListPendingReviews(ctx context.Context, buyerID string) ([]PendingReview, error)
	ListBuyerOrders(ctx context.Context, buyerID string) ([]BuyerOrder, error)
}

// Tx is everything a mutating operation may do inside its transaction.
// Lock* methods take a row lock held until the transaction ends and return a
// KindNotFound error when the row does not exist.
type Tx interface {
	inventory.LedgerTx
	ShipmentTx

	Consignee(ctx context.Context, buyerID string) (Consignee, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertOrderLine(ctx context.Context, l OrderLine) error
	InsertPayment(ctx context.Context, p Payment) error

	LockOrder(ctx context.Context, orderID int64) (Order, error)
	MarkShipped(ctx context.Context, orderID int64, at time.Time) error
	MarkCompleted(ctx context.Context, orderID int64, at time.Time) error

	ReviewExists(ctx context.Context, orderID int64, raterID string) (bool, error)
	// InsertReview reports a KindDuplicateReview error on a (order, rater) clash.
	InsertReview(ctx context.Context, r Review) error
}

// StatusCache is an advisory read-through cache of order status.
// AdvanceStatus must be atomic and must leave a higher-ranked entry in place:
// writes land after commit, in no particular order.
type StatusCache interface {
	AdvanceStatus(ctx context.Context, orderID int64, s Status) error
	GetStatus(ctx context.Context, orderID int64) (Status, bool, error)
}
