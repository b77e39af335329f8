package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/ariefcatur/campus-market/internal/inventory"
	"github.com/ariefcatur/campus-market/internal/orders"
	"github.com/jackc/pgx/v5"
)

type pgTx struct{ tx pgx.Tx }

// LockItem: SELECT ... FOR UPDATE. Concurrent reservations on the same item
// queue here until the holder commits or rolls back.
func (t *pgTx) LockItem(ctx context.Context, itemID int64) (inventory.Item, error) {
	var (
		it     inventory.Item
		status string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT item_id, seller_student_no, category_id, title, description, condition,
		       price, quantity, status, created_at, updated_at
		FROM items WHERE item_id=$1 FOR UPDATE`, itemID).
		Scan(&it.ID, &it.SellerID, &it.CategoryID, &it.Title, &it.Description, &it.Condition,
			&it.Price, &it.Quantity, &status, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Item{}, apperr.New(apperr.KindNotFound, "item %d not found", itemID)
	}
	if err != nil {
		return inventory.Item{}, err
	}
	it.Status = inventory.ItemStatus(status)
	return it, nil
}

func (t *pgTx) SetStock(ctx context.Context, itemID int64, quantity int, status inventory.ItemStatus) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE items SET quantity=$2, status=$3, updated_at=NOW()
		WHERE item_id=$1`, itemID, quantity, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.New(apperr.KindNotFound, "item %d not found", itemID)
	}
	return nil
}

func (t *pgTx) Consignee(ctx context.Context, buyerID string) (orders.Consignee, error) {
	var c orders.Consignee
	err := t.tx.QueryRow(ctx, `SELECT full_name, COALESCE(phone, '') FROM users WHERE student_no=$1`, buyerID).
		Scan(&c.Name, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Consignee{}, apperr.New(apperr.KindNotFound, "buyer %s not found", buyerID)
	}
	return c, err
}

func (t *pgTx) InsertOrder(ctx context.Context, o orders.Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (
			buyer_student_no, seller_student_no, order_type, status, total_amount,
			consignee_name, consignee_phone, shipping_address, created_at, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING order_id`,
		o.BuyerID, o.SellerID, o.Type, string(o.Status), o.TotalAmount,
		o.Consignee.Name, o.Consignee.Phone, o.Consignee.Address, o.CreatedAt, o.PaidAt,
	).Scan(&id)
	return id, err
}

func (t *pgTx) InsertOrderLine(ctx context.Context, l orders.OrderLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items (order_id, item_id, qty, price_each, title_snapshot)
		VALUES ($1,$2,$3,$4,$5)`,
		l.OrderID, l.ItemID, l.Qty, l.PriceEach, l.Title)
	return err
}

func (t *pgTx) InsertPayment(ctx context.Context, p orders.Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (order_id, method, amount, status, txn_ref, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.OrderID, p.Method, p.Amount, p.Status, p.TxnRef, p.PaidAt)
	return err
}

func (t *pgTx) LockOrder(ctx context.Context, orderID int64) (orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, apperr.New(apperr.KindNotFound, "order %d not found", orderID)
	}
	return o, err
}

func (t *pgTx) MarkShipped(ctx context.Context, orderID int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status='Shipped', shipped_at=$2 WHERE order_id=$1`, orderID, at)
	return err
}

func (t *pgTx) MarkCompleted(ctx context.Context, orderID int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status='Completed', completed_at=$2 WHERE order_id=$1`, orderID, at)
	return err
}

func (t *pgTx) UpsertShipment(ctx context.Context, s orders.Shipment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO shipments (order_id, carrier, tracking_no, shipped_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id)
		DO UPDATE SET carrier=EXCLUDED.carrier,
		              tracking_no=EXCLUDED.tracking_no,
		              shipped_at=EXCLUDED.shipped_at`,
		s.OrderID, s.Carrier, s.TrackingNo, s.ShippedAt)
	return err
}

func (t *pgTx) ReviewExists(ctx context.Context, orderID int64, raterID string) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE order_id=$1 AND rater_student_no=$2)`,
		orderID, raterID).Scan(&ok)
	return ok, err
}

func (t *pgTx) InsertReview(ctx context.Context, r orders.Review) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reviews (order_id, rater_student_no, ratee_student_no, rating, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.OrderID, r.RaterID, r.RateeID, r.Rating, r.Comment, r.CreatedAt)
	if isUniqueViolation(err, "reviews_order_rater_key") {
		return apperr.Wrap(apperr.KindDuplicateReview, err, "order already reviewed")
	}
	return err
}
