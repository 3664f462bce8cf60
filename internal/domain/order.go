package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineKind distinguishes what an order line item is. The workflow
// requires an explicit kind; records without one are rejected rather than
// guessed at.
type OrderLineKind string

const (
	OrderLineString OrderLineKind = "string"
	OrderLineRacket OrderLineKind = "racket"
	OrderLineOther  OrderLineKind = "other"
)

// OrderLine is one purchased item on an order, as read from the order
// service. MountingFee is the per-unit stringing fee attached at purchase
// time and is the second pricing priority after customer-supplied strings.
type OrderLine struct {
	ItemID      uuid.UUID     `json:"item_id"`
	Kind        OrderLineKind `json:"kind"`
	Quantity    int           `json:"quantity"`
	MountingFee int64         `json:"mounting_fee"`
}

// OrderSummary is the read-side view of an order consumed by the
// entitlement resolver and pricing engine. Not owned by this workflow.
type OrderSummary struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
}

// StringLine returns the order line for the given string item, if present.
func (o *OrderSummary) StringLine(itemID uuid.UUID) (OrderLine, bool) {
	for _, l := range o.Lines {
		if l.Kind == OrderLineString && l.ItemID == itemID {
			return l, true
		}
	}
	return OrderLine{}, false
}

// TotalSlots is the entitlement ceiling for the order: the summed quantity
// of its string lines.
func (o *OrderSummary) TotalSlots() int {
	total := 0
	for _, l := range o.Lines {
		if l.Kind == OrderLineString {
			total += l.Quantity
		}
	}
	return total
}

// RentalSummary is the read-side view of a racket rental. Rentals are
// prepaid at checkout, so pricing prefers the stored snapshot values over
// any live recomputation. StringingFee is nullable for rows written before
// the snapshot column existed; pricing falls back to live computation then.
type RentalSummary struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Deposit      int64     `json:"deposit"`
	RentalFee    int64     `json:"rental_fee"`
	StringPrice  int64     `json:"string_price"`
	StringingFee *int64    `json:"stringing_fee,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
