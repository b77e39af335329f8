package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeDirect = "direct"

	PaymentMethodCard = "credit_card"
	PaymentSuccess    = "Success"

	// MeetupAddress is the shipping address on every order: hand-over on campus.
	MeetupAddress = "校內面交"

	DefaultCarrier = "7-11"
)

type Consignee struct {
	Name    string
	Phone   string
	Address string
}

type Order struct {
	ID          int64
	BuyerID     string
	SellerID    string
	Type        string
	Status      Status
	TotalAmount decimal.Decimal
	Consignee   Consignee
	CreatedAt   time.Time
	PaidAt      *time.Time
	ShippedAt   *time.Time
	CompletedAt *time.Time
}

func (o Order) Completed() bool { return IsCompleted(o.Status) }

// OrderLine keeps the price and title as they were when the order was placed.
type OrderLine struct {
	OrderID   int64
	ItemID    int64
	Qty       int
	PriceEach decimal.Decimal
	Title     string
}

type Payment struct {
	OrderID int64
	Method  string
	Amount  decimal.Decimal
	Status  string
	TxnRef  string
	PaidAt  time.Time
}

type Shipment struct {
	OrderID    int64     `json:"order_id"`
	Carrier    string    `json:"carrier"`
	TrackingNo string    `json:"tracking_no"`
	ShippedAt  time.Time `json:"shipped_at"`
}

type Review struct {
	OrderID   int64
	RaterID   string
	RateeID   string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

type Placed struct {
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderToShip struct {
	OrderID     int64           `json:"order_id"`
	BuyerName   string          `json:"buyer_name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PendingReview struct {
	OrderID     int64     `json:"order_id"`
	SellerName  string    `json:"seller_name"`
	CompletedAt time.Time `json:"completed_at"`
}

type BuyerOrder struct {
	OrderID     int64           `json:"order_id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	SellerName  string          `json:"seller_name"`
	CreatedAt   time.Time       `json:"created_at"`
	PaidAt      *time.Time      `json:"paid_at"`
	ShippedAt   *time.Time      `json:"shipped_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

// TxnRef is the payment reference for an order, unique because order ids are.
func TxnRef(orderID int64) string { return fmt.Sprintf("TXN-%06d", orderID) }

// TrackingNo is the tracking code used when the seller does not supply one.
func TrackingNo(orderID int64) string { return fmt.Sprintf("PKG-%06d", orderID) }
