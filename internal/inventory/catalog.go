package inventory

import (
	"context"
	"strings"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/shopspring/decimal"
)

type CatalogStore interface {
	InsertItem(ctx context.Context, it Item) (int64, error)
	ListAvailable(ctx context.Context) ([]Listing, error)
	ListBySeller(ctx context.Context, sellerID string) ([]SellerItem, error)
}

type NewItem struct {
	CategoryID  *int64
	Title       string
	Description string
	Condition   string
	Quantity    int
	Price       decimal.Decimal
}

type Catalog struct {
	Store CatalogStore
}

// AddItem lists a new item for seller. Items always start Listed.
func (c *Catalog) AddItem(ctx context.Context, sellerID string, in NewItem) (int64, error) {
	if strings.TrimSpace(in.Title) == "" {
		return 0, apperr.New(apperr.KindInvalidInput, "title is required")
	}
	if in.Quantity <= 0 || in.Price.IsNegative() {
		return 0, apperr.New(apperr.KindInvalidInput, "quantity must be positive and price not negative")
	}
	return c.Store.InsertItem(ctx, Item{
		SellerID:    sellerID,
		CategoryID:  in.CategoryID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Condition:   in.Condition,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Status:      StatusListed,
	})
}

func (c *Catalog) ListAvailable(ctx context.Context) ([]Listing, error) {
	return c.Store.ListAvailable(ctx)
}

func (c *Catalog) ListBySeller(ctx context.Context, sellerID string) ([]SellerItem, error) {
	return c.Store.ListBySeller(ctx, sellerID)
}
