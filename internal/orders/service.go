package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/ariefcatur/campus-market/internal/inventory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service runs the order core: placement, shipping, completion and reviews.
// Events and Cache are optional.
type Service struct {
	Store       Store
	Events      Publisher
	Cache       StatusCache
	Log         *zap.Logger
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) fulfillment() *Fulfillment { return &Fulfillment{Store: s.Store} }

// PlaceOrder reserves qty of itemID for buyerID and records the paid order,
// its line and its payment in one transaction.
func (s *Service) PlaceOrder(ctx context.Context, buyerID string, itemID int64, qty int) (Placed, error) {
	if qty <= 0 {
		return Placed{}, apperr.New(apperr.KindInvalidQuantity, "qty must be greater than 0")
	}

	var (
		order Order
		now   = s.now()
	)
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		res, err := inventory.Reserve(ctx, tx, itemID, qty)
		if err != nil {
			return err
		}
		cons, err := tx.Consignee(ctx, buyerID)
		if err != nil {
			return err
		}
		cons.Address = MeetupAddress

		order = Order{
			BuyerID:     buyerID,
			SellerID:    res.SellerID,
			Type:        OrderTypeDirect,
			Status:      StatusPaid,
			TotalAmount: res.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
			Consignee:   cons,
			CreatedAt:   now,
			PaidAt:      &now,
		}
		if order.ID, err = tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertOrderLine(ctx, OrderLine{
			OrderID:   order.ID,
			ItemID:    itemID,
			Qty:       qty,
			PriceEach: res.UnitPrice,
			Title:     res.Title,
		}); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, Payment{
			OrderID: order.ID,
			Method:  PaymentMethodCard,
			Amount:  order.TotalAmount,
			Status:  PaymentSuccess,
			TxnRef:  TxnRef(order.ID),
			PaidAt:  now,
		})
	})
	if err != nil {
		return Placed{}, s.fail("place order", err, zap.String("buyer", buyerID), zap.Int64("item_id", itemID), zap.Int("qty", qty))
	}

	s.log().Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.String("buyer", buyerID),
		zap.Int64("item_id", itemID),
		zap.String("total_amount", order.TotalAmount.String()))

	s.cacheStatus(ctx, order.ID, StatusPaid)
	s.emit(ctx, TopicOrderPlaced, EventOrderPlaced, order.ID, OrderPlacedPayload{
		OrderID:     order.ID,
		BuyerID:     buyerID,
		SellerID:    order.SellerID,
		ItemID:      itemID,
		Qty:         qty,
		TotalAmount: order.TotalAmount,
	})
	return Placed{OrderID: order.ID, TotalAmount: order.TotalAmount}, nil
}

// ShipOrder moves a Paid order of sellerID to Shipped and records the
// shipment. Calling it again on a Shipped order only corrects carrier and
// tracking number.
func (s *Service) ShipOrder(ctx context.Context, sellerID string, orderID int64, carrier, trackingNo string) (Shipment, error) {
	var (
		shp        Shipment
		correction bool
		now        = s.now()
	)
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.SellerID != sellerID {
			return apperr.New(apperr.KindForbidden, "order %d does not belong to seller %s", orderID, sellerID)
		}
		if !CanTransition(o.Status, StatusShipped) {
			return apperr.New(apperr.KindInvalidState, "order %d is %s, not %s", orderID, o.Status, StatusPaid)
		}

		correction = o.Status == StatusShipped
		if !correction {
			if err := tx.MarkShipped(ctx, orderID, now); err != nil {
				return err
			}
		}
		shp, err = s.fulfillment().Record(ctx, tx, ShipRequest{
			OrderID:    orderID,
			Carrier:    carrier,
			TrackingNo: trackingNo,
		}, now)
		return err
	})
	if err != nil {
		return Shipment{}, s.fail("ship order", err, zap.String("seller", sellerID), zap.Int64("order_id", orderID))
	}

	s.log().Info("order shipped",
		zap.Int64("order_id", orderID),
		zap.String("carrier", shp.Carrier),
		zap.String("tracking_no", shp.TrackingNo),
		zap.Bool("correction", correction))

	s.cacheStatus(ctx, orderID, StatusShipped)
	s.emit(ctx, TopicOrderShipped, EventOrderShipped, orderID, OrderShippedPayload{
		OrderID:    orderID,
		SellerID:   sellerID,
		Carrier:    shp.Carrier,
		TrackingNo: shp.TrackingNo,
		Correction: correction,
	})
	return shp, nil
}

// ConfirmDelivery is the external completion driver: Shipped -> Completed.
func (s *Service) ConfirmDelivery(ctx context.Context, orderID int64) error {
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusShipped || !CanTransition(o.Status, StatusCompleted) {
			return apperr.New(apperr.KindInvalidState, "order %d is %s, not %s", orderID, o.Status, StatusShipped)
		}
		return tx.MarkCompleted(ctx, orderID, now)
	})
	if err != nil {
		return s.fail("confirm delivery", err, zap.Int64("order_id", orderID))
	}

	s.log().Info("order completed", zap.Int64("order_id", orderID))
	s.cacheStatus(ctx, orderID, StatusCompleted)
	s.emit(ctx, TopicOrderCompleted, EventOrderCompleted, orderID, OrderCompletedPayload{
		OrderID:     orderID,
		CompletedAt: now,
	})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, s.fail("get order", err, zap.Int64("order_id", orderID))
	}
	return o, nil
}

// OrderShipment shows the shipment of an order to its buyer or seller.
// NotFound until the order has shipped.
func (s *Service) OrderShipment(ctx context.Context, callerID string, orderID int64) (Shipment, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Shipment{}, s.fail("get shipment", err, zap.Int64("order_id", orderID))
	}
	if o.BuyerID != callerID && o.SellerID != callerID {
		return Shipment{}, apperr.New(apperr.KindForbidden, "order %d is not yours", orderID)
	}
	shp, err := s.fulfillment().Shipment(ctx, orderID)
	if err != nil {
		return Shipment{}, s.fail("get shipment", err, zap.Int64("order_id", orderID))
	}
	return shp, nil
}

// OrderStatus reads through the status cache.
func (s *Service) OrderStatus(ctx context.Context, orderID int64) (Status, error) {
	if s.Cache != nil {
		st, ok, err := s.Cache.GetStatus(ctx, orderID)
		if err != nil {
			s.log().Warn("status cache read failed", zap.Int64("order_id", orderID), zap.Error(err))
		} else if ok {
			return st, nil
		}
	}
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	s.cacheStatus(ctx, orderID, o.Status)
	return o.Status, nil
}

func (s *Service) ListOrdersToShip(ctx context.Context, sellerID string) ([]OrderToShip, error) {
	out, err := s.Store.ListOrdersToShip(ctx, sellerID)
	if err != nil {
		return nil, s.fail("list orders to ship", err, zap.String("seller", sellerID))
	}
	return out, nil
}

func (s *Service) ListBuyerOrders(ctx context.Context, buyerID string) ([]BuyerOrder, error) {
	out, err := s.Store.ListBuyerOrders(ctx, buyerID)
	if err != nil {
		return nil, s.fail("list buyer orders", err, zap.String("buyer", buyerID))
	}
	return out, nil
}

// fail classifies err. Business errors pass through untouched; anything else
// is logged in full and surfaced as a generic Internal error.
func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
		s.log().Debug(op+" rejected", append(fields, zap.String("kind", string(ae.Kind)), zap.String("reason", ae.Message))...)
		return err
	}
	s.log().Error(op+" failed", append(fields, zap.Error(err))...)
	if ae != nil {
		return err
	}
	return apperr.Wrap(apperr.KindInternal, err, op+" failed")
}

func (s *Service) cacheStatus(ctx context.Context, orderID int64, st Status) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.AdvanceStatus(ctx, orderID, st); err != nil {
		s.log().Warn("status cache write failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

// emit publishes after commit. A lost event never fails the operation.
func (s *Service) emit(ctx context.Context, topic, eventType string, orderID int64, payload any) {
	if s.Events == nil {
		return
	}
	env, err := NewEnvelope(ctx, s.ServiceName, eventType, orderID, payload, s.now())
	if err != nil {
		s.log().Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		s.log().Error("encode envelope", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.Events.PublishEvent(topic, eventType, PartitionKey(orderID), b)
}
