package inventory

import (
	"context"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/shopspring/decimal"
)

// LedgerTx is the slice of a storage transaction the ledger needs.
// LockItem must hold an exclusive lock on the item row until the enclosing
// transaction ends, and return a KindNotFound error when the row is absent.
type LedgerTx interface {
	LockItem(ctx context.Context, itemID int64) (Item, error)
	SetStock(ctx context.Context, itemID int64, quantity int, status ItemStatus) error
}

type Reservation struct {
	ItemID    int64
	SellerID  string
	UnitPrice decimal.Decimal
	Title     string
	Remaining int
	Status    ItemStatus
}

// Reserve checks and decrements stock for one item inside tx.
// Nothing is written unless every check passes; the caller's rollback undoes
// the decrement if a later step of the same transaction fails.
func Reserve(ctx context.Context, tx LedgerTx, itemID int64, qty int) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, apperr.New(apperr.KindInvalidQuantity, "qty must be greater than 0")
	}

	it, err := tx.LockItem(ctx, itemID)
	if err != nil {
		return Reservation{}, err
	}
	if it.Status != StatusListed || it.Quantity <= 0 {
		return Reservation{}, apperr.New(apperr.KindNotAvailable, "item %d is delisted or out of stock", itemID)
	}
	if it.Quantity < qty {
		return Reservation{}, apperr.New(apperr.KindInsufficientStock,
			"item %d has %d left, %d requested", itemID, it.Quantity, qty)
	}

	remaining := it.Quantity - qty
	status := StatusListed
	if remaining == 0 {
		status = StatusSoldOut
	}
	if err := tx.SetStock(ctx, itemID, remaining, status); err != nil {
		return Reservation{}, err
	}

	return Reservation{
		ItemID:    itemID,
		SellerID:  it.SellerID,
		UnitPrice: it.Price,
		Title:     it.Title,
		Remaining: remaining,
		Status:    status,
	}, nil
}
