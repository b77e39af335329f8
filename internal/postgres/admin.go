package postgres

import (
	"context"

	"github.com/ariefcatur/campus-market/internal/analytics"
)

var _ analytics.Source = (*Store)(nil)

// IsAdmin is the role lookup behind the analytics actions.
func (s *Store) IsAdmin(ctx context.Context, studentNo string) (bool, error) {
	if studentNo == "" {
		return false, nil
	}
	var ok bool
	err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_roles WHERE student_no=$1 AND role='admin')`,
		studentNo).Scan(&ok)
	return ok, err
}

func (s *Store) SellerRatings(ctx context.Context) ([]analytics.SellerRating, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT ratee_student_no, ROUND(AVG(rating), 2), COUNT(*)
		FROM reviews
		GROUP BY ratee_student_no
		ORDER BY 2 DESC, 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []analytics.SellerRating{}
	for rows.Next() {
		var r analytics.SellerRating
		if err := rows.Scan(&r.Seller, &r.AvgRating, &r.ReviewCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) TopItems(ctx context.Context, limit int) ([]analytics.TopItem, error) {
	if limit <= 0 {
		limit = analytics.DefaultTopItems
	}
	rows, err := s.DB.Query(ctx, `
		SELECT oi.item_id, i.title, SUM(oi.qty)
		FROM order_items oi
		JOIN items i ON i.item_id = oi.item_id
		GROUP BY oi.item_id, i.title
		ORDER BY 3 DESC, 1
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []analytics.TopItem{}
	for rows.Next() {
		var t analytics.TopItem
		if err := rows.Scan(&t.ItemID, &t.Title, &t.TotalSold); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
