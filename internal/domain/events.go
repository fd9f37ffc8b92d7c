package domain

// Trade records one match. Price is always the maker's resting price,
// never the taker's limit.
type Trade struct {
	Sequence  Sequence
	MakerID   OrderID
	TakerID   OrderID
	Price     Price
	Qty       Quantity
	TakerSide Side
}

// EventKind discriminates the market-data event stream.
type EventKind uint8

const (
	EventOrderPlaced EventKind = iota
	EventOrderCanceled
	EventTrade
	EventOrderFilled
	EventOrderRejected
)

// Event is the tagged union pushed to the broadcaster. Exactly one of
// the typed payload fields is meaningful, selected by Kind — this
// mirrors the self-describing tagged form §6 asks the wire encoding to
// present, kept untagged-union in memory and tagged only at the JSON
// boundary (see internal/marketdata).
type Event struct {
	Kind     EventKind
	Sequence Sequence

	// EventOrderPlaced
	PlacedID    OrderID
	PlacedSide  Side
	PlacedPrice Price
	PlacedQty   Quantity

	// EventOrderCanceled
	CanceledID     OrderID
	CanceledReason CancelReason
	CanceledQty    Quantity

	// EventTrade
	Trade Trade

	// EventOrderFilled
	FilledID        OrderID
	FilledQty       Quantity
	FilledRemaining Quantity

	// EventOrderRejected
	RejectedID     OrderID
	RejectedReason RejectReason
}
