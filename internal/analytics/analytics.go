// Package analytics holds the admin-only read models over reviews and sales.
package analytics

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultTopItems is used when a caller asks for no particular limit.
const DefaultTopItems = 10

type SellerRating struct {
	Seller      string          `json:"seller"`
	AvgRating   decimal.Decimal `json:"avg_rating"`
	ReviewCount int             `json:"review_count"`
}

type TopItem struct {
	ItemID    int64  `json:"item_id"`
	Title     string `json:"title"`
	TotalSold int    `json:"total_sold"`
}

// Source is the role lookup and the queries it guards.
type Source interface {
	IsAdmin(ctx context.Context, studentNo string) (bool, error)
	SellerRatings(ctx context.Context) ([]SellerRating, error)
	TopItems(ctx context.Context, limit int) ([]TopItem, error)
}
