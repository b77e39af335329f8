package postgres

import (
	"context"

	"github.com/ariefcatur/campus-market/internal/inventory"
)

func (s *Store) InsertItem(ctx context.Context, it inventory.Item) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
		INSERT INTO items (
			seller_student_no, category_id, title, description,
			condition, quantity, price, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NOW(), NOW())
		RETURNING item_id`,
		it.SellerID, it.CategoryID, it.Title, it.Description,
		it.Condition, it.Quantity, it.Price, string(it.Status),
	).Scan(&id)
	return id, err
}

func (s *Store) ListAvailable(ctx context.Context) ([]inventory.Listing, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT i.item_id, i.title, i.price, i.condition, i.quantity,
		       COALESCE(c.name, ''), u.full_name
		FROM items i
		LEFT JOIN categories c ON i.category_id = c.category_id
		JOIN users u ON i.seller_student_no = u.student_no
		WHERE i.status = 'Listed' AND i.quantity > 0
		ORDER BY i.item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []inventory.Listing{}
	for rows.Next() {
		var l inventory.Listing
		if err := rows.Scan(&l.ItemID, &l.Title, &l.Price, &l.Condition, &l.Quantity, &l.CategoryName, &l.SellerName); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListBySeller(ctx context.Context, sellerID string) ([]inventory.SellerItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT item_id, title, price, quantity, status
		FROM items
		WHERE seller_student_no = $1
		ORDER BY item_id`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []inventory.SellerItem{}
	for rows.Next() {
		var (
			it     inventory.SellerItem
			status string
		)
		if err := rows.Scan(&it.ItemID, &it.Title, &it.Price, &it.Quantity, &status); err != nil {
			return nil, err
		}
		it.Status = inventory.ItemStatus(status)
		out = append(out, it)
	}
	return out, rows.Err()
}
