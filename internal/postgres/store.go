package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/ariefcatur/campus-market/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store implements orders.Store, inventory.CatalogStore and the admin lookups
// on one pool.
type Store struct{ DB *pgxpool.Pool }

// WithTx: BEGIN -> fn -> COMMIT. The deferred rollback covers error returns
// and panics; after a commit it is a no-op.
func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const orderColumns = `order_id, buyer_student_no, seller_student_no, order_type, status, total_amount,
	consignee_name, consignee_phone, shipping_address, created_at, paid_at, shipped_at, completed_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.Type, &status, &o.TotalAmount,
		&o.Consignee.Name, &o.Consignee.Phone, &o.Consignee.Address,
		&o.CreatedAt, &o.PaidAt, &o.ShippedAt, &o.CompletedAt)
	o.Status = orders.Status(status)
	return o, err
}

func (s *Store) GetOrder(ctx context.Context, orderID int64) (orders.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, apperr.New(apperr.KindNotFound, "order %d not found", orderID)
	}
	return o, err
}

func (s *Store) GetShipment(ctx context.Context, orderID int64) (orders.Shipment, error) {
	var shp orders.Shipment
	err := s.DB.QueryRow(ctx, `
		SELECT order_id, carrier, tracking_no, shipped_at
		FROM shipments WHERE order_id=$1`, orderID).
		Scan(&shp.OrderID, &shp.Carrier, &shp.TrackingNo, &shp.ShippedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Shipment{}, apperr.New(apperr.KindNotFound, "no shipment for order %d", orderID)
	}
	return shp, err
}

func (s *Store) ListOrdersToShip(ctx context.Context, sellerID string) ([]orders.OrderToShip, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT o.order_id, u.full_name, o.total_amount, o.created_at
		FROM orders o
		JOIN users u ON u.student_no = o.buyer_student_no
		WHERE o.seller_student_no = $1 AND o.status = 'Paid'
		ORDER BY o.created_at, o.order_id`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.OrderToShip{}
	for rows.Next() {
		var r orders.OrderToShip
		if err := rows.Scan(&r.OrderID, &r.BuyerName, &r.TotalAmount, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListPendingReviews(ctx context.Context, buyerID string) ([]orders.PendingReview, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT o.order_id, u.full_name, o.completed_at
		FROM orders o
		JOIN users u ON u.student_no = o.seller_student_no
		WHERE o.buyer_student_no = $1
		  AND o.status = 'Completed'
		  AND NOT EXISTS (
		        SELECT 1 FROM reviews r
		        WHERE r.order_id = o.order_id AND r.rater_student_no = o.buyer_student_no)
		ORDER BY o.completed_at DESC, o.order_id DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.PendingReview{}
	for rows.Next() {
		var r orders.PendingReview
		if err := rows.Scan(&r.OrderID, &r.SellerName, &r.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListBuyerOrders(ctx context.Context, buyerID string) ([]orders.BuyerOrder, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT o.order_id, o.status, o.total_amount, u.full_name,
		       o.created_at, o.paid_at, o.shipped_at, o.completed_at
		FROM orders o
		JOIN users u ON u.student_no = o.seller_student_no
		WHERE o.buyer_student_no = $1
		ORDER BY o.created_at DESC, o.order_id DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.BuyerOrder{}
	for rows.Next() {
		var (
			r      orders.BuyerOrder
			status string
		)
		if err := rows.Scan(&r.OrderID, &status, &r.TotalAmount, &r.SellerName,
			&r.CreatedAt, &r.PaidAt, &r.ShippedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		r.Status = orders.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}
