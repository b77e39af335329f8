package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	StatusListed   ItemStatus = "Listed"
	StatusSoldOut  ItemStatus = "SoldOut"
	StatusDelisted ItemStatus = "Delisted"
)

type Item struct {
	ID          int64
	SellerID    string
	CategoryID  *int64
	Title       string
	Description string
	Condition   string
	Price       decimal.Decimal
	Quantity    int
	Status      ItemStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Listing is the public catalog row (list_items).
type Listing struct {
	ItemID       int64           `json:"item_id"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	Condition    string          `json:"condition"`
	Quantity     int             `json:"quantity"`
	CategoryName string          `json:"category_name"`
	SellerName   string          `json:"seller_name"`
}

// SellerItem is a row of list_my_selling_items.
type SellerItem struct {
	ItemID   int64           `json:"item_id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Status   ItemStatus      `json:"status"`
}
