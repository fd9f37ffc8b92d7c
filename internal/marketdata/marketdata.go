// Package marketdata gives every domain.Event a json:"type" tagged
// encoding, the way VictorVVedtion-perp-dex's api/types package shapes
// its websocket hub payloads (api/websocket/hub.go, api/types/types.go)
// — money fields travel as decimal strings, never JSON numbers, so a
// browser's float64 can't round a price or quantity.
package marketdata

import (
	"encoding/json"
	"fmt"
	"strconv"

	"matchbook/internal/domain"
	"matchbook/internal/engine"
)

const (
	TypeOrderPlaced   = "order_placed"
	TypeOrderCanceled = "order_canceled"
	TypeTrade         = "trade"
	TypeOrderFilled   = "order_filled"
	TypeOrderRejected = "order_rejected"
)

// wireEvent is the flat, self-describing form every event crosses the
// JSON boundary as. Exactly the fields Type selects are populated.
type wireEvent struct {
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence"`

	OrderID string `json:"order_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Side    string `json:"side,omitempty"`
	Price   string `json:"price,omitempty"`
	Qty     string `json:"qty,omitempty"`

	Reason string `json:"reason,omitempty"`

	RemainingQty string `json:"remaining_qty,omitempty"`

	MakerOrderID string `json:"maker_order_id,omitempty"`
	TakerOrderID string `json:"taker_order_id,omitempty"`
	TakerSide    string `json:"taker_side,omitempty"`
}

// MarshalEvent renders a domain.Event as a single tagged-union JSON
// object, per spec.md §6.
func MarshalEvent(e domain.Event) ([]byte, error) {
	w := wireEvent{Sequence: uint64(e.Sequence)}

	switch e.Kind {
	case domain.EventOrderPlaced:
		w.Type = TypeOrderPlaced
		w.OrderID = orderIDString(e.PlacedID)
		w.Side = e.PlacedSide.String()
		w.Price = quantityString(domain.Quantity(e.PlacedPrice))
		w.Qty = quantityString(e.PlacedQty)
	case domain.EventOrderCanceled:
		w.Type = TypeOrderCanceled
		w.OrderID = orderIDString(e.CanceledID)
		w.Qty = quantityString(e.CanceledQty)
		w.Reason = e.CanceledReason.String()
	case domain.EventTrade:
		w.Type = TypeTrade
		w.MakerOrderID = orderIDString(e.Trade.MakerID)
		w.TakerOrderID = orderIDString(e.Trade.TakerID)
		w.Price = quantityString(domain.Quantity(e.Trade.Price))
		w.Qty = quantityString(e.Trade.Qty)
		w.TakerSide = e.Trade.TakerSide.String()
	case domain.EventOrderFilled:
		w.Type = TypeOrderFilled
		w.OrderID = orderIDString(e.FilledID)
		w.Qty = quantityString(e.FilledQty)
		w.RemainingQty = quantityString(e.FilledRemaining)
	case domain.EventOrderRejected:
		w.Type = TypeOrderRejected
		w.OrderID = orderIDString(e.RejectedID)
		w.Reason = e.RejectedReason.String()
	default:
		return nil, fmt.Errorf("marketdata: unknown event kind %d", e.Kind)
	}

	return json.Marshal(w)
}

func orderIDString(id domain.OrderID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func quantityString(q domain.Quantity) string {
	return strconv.FormatUint(uint64(q), 10)
}

// levelWire is one side of a depth snapshot, best-to-worst.
type levelWire struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

// snapshotWire is the point-in-time book state consumers request
// alongside the live event stream to build their own book copy,
// per spec.md §6.
type snapshotWire struct {
	Type     string      `json:"type"`
	Sequence uint64      `json:"sequence"`
	Bids     []levelWire `json:"bids"`
	Asks     []levelWire `json:"asks"`
}

// MarshalSnapshot renders the top maxLevels of each side of book, as
// of asOf, in the same tagged form the live stream uses — a consumer
// can treat a snapshot and a stream of events identically.
func MarshalSnapshot(book *engine.OrderBook, asOf domain.Sequence, maxLevels int) ([]byte, error) {
	s := snapshotWire{
		Type:     "depth_snapshot",
		Sequence: uint64(asOf),
		Bids:     toLevelWire(book.Depth(domain.Bid, maxLevels)),
		Asks:     toLevelWire(book.Depth(domain.Ask, maxLevels)),
	}
	return json.Marshal(s)
}

func toLevelWire(levels []engine.LevelView) []levelWire {
	out := make([]levelWire, len(levels))
	for i, l := range levels {
		out[i] = levelWire{Price: quantityString(domain.Quantity(l.Price)), Qty: quantityString(l.Qty)}
	}
	return out
}
