package orders

import (
	"context"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"go.uber.org/zap"
)

const (
	MinRating = 1
	MaxRating = 5
)

// CreateReview lets the buyer of a Completed order rate its seller once.
// The order row stays locked between the duplicate check and the insert, so
// two concurrent submissions cannot both pass.
func (s *Service) CreateReview(ctx context.Context, buyerID string, orderID int64, rating int, comment string) error {
	if rating < MinRating || rating > MaxRating {
		return apperr.New(apperr.KindInvalidRating, "rating must be between %d and %d", MinRating, MaxRating)
	}

	var (
		review Review
		now    = s.now()
	)
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.BuyerID != buyerID {
			return apperr.New(apperr.KindForbidden, "order %d does not belong to buyer %s", orderID, buyerID)
		}
		if !o.Completed() {
			return apperr.New(apperr.KindInvalidState, "order %d is %s, not %s", orderID, o.Status, StatusCompleted)
		}
		exists, err := tx.ReviewExists(ctx, orderID, buyerID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.KindDuplicateReview, "order %d already reviewed", orderID)
		}

		review = Review{
			OrderID:   orderID,
			RaterID:   buyerID,
			RateeID:   o.SellerID,
			Rating:    rating,
			Comment:   comment,
			CreatedAt: now,
		}
		return tx.InsertReview(ctx, review)
	})
	if err != nil {
		return s.fail("create review", err, zap.String("buyer", buyerID), zap.Int64("order_id", orderID))
	}

	s.log().Info("review created", zap.Int64("order_id", orderID), zap.String("ratee", review.RateeID), zap.Int("rating", rating))
	s.emit(ctx, TopicReviewCreated, EventReviewCreated, orderID, ReviewCreatedPayload{
		OrderID: orderID,
		RaterID: buyerID,
		RateeID: review.RateeID,
		Rating:  rating,
	})
	return nil
}

// ListPendingReviews returns the buyer's Completed orders still waiting for
// the buyer's review, most recently completed first.
func (s *Service) ListPendingReviews(ctx context.Context, buyerID string) ([]PendingReview, error) {
	out, err := s.Store.ListPendingReviews(ctx, buyerID)
	if err != nil {
		return nil, s.fail("list pending reviews", err, zap.String("buyer", buyerID))
	}
	return out, nil
}
