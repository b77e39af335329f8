package orders

import (
	"context"
	"strings"
	"time"
)

// ShipmentTx is the write side of the shipment table.
// UpsertShipment inserts or overwrites the single row of an order.
type ShipmentTx interface {
	UpsertShipment(ctx context.Context, s Shipment) error
}

type ShipRequest struct {
	OrderID    int64
	Carrier    string
	TrackingNo string
}

// Fulfillment owns shipment records. Record is safe to repeat: a second call
// for the same order replaces carrier, tracking number and time.
type Fulfillment struct {
	Store Store
}

func (f *Fulfillment) Record(ctx context.Context, tx ShipmentTx, req ShipRequest, at time.Time) (Shipment, error) {
	shp := Shipment{
		OrderID:    req.OrderID,
		Carrier:    strings.TrimSpace(req.Carrier),
		TrackingNo: strings.TrimSpace(req.TrackingNo),
		ShippedAt:  at,
	}
	if shp.Carrier == "" {
		shp.Carrier = DefaultCarrier
	}
	if shp.TrackingNo == "" {
		shp.TrackingNo = TrackingNo(req.OrderID)
	}
	if err := tx.UpsertShipment(ctx, shp); err != nil {
		return Shipment{}, err
	}
	return shp, nil
}

func (f *Fulfillment) Shipment(ctx context.Context, orderID int64) (Shipment, error) {
	return f.Store.GetShipment(ctx, orderID)
}
