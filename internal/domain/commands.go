package domain

// Command is the sum type of operations the processor linearizes and
// the WAL persists. Only PlaceLimit, PlaceMarket, and Cancel exist —
// order types beyond limit/market are out of scope.
type Command interface {
	isCommand()
}

// PlaceLimit rests at price if it is not fully matched immediately.
type PlaceLimit struct {
	OrderID OrderID
	UserID  UserID
	Side    Side
	Price   Price
	Qty     Quantity
}

func (PlaceLimit) isCommand() {}

// PlaceMarket matches until Qty is exhausted or the book empties;
// any unfilled remainder is discarded, never rested.
type PlaceMarket struct {
	OrderID OrderID
	UserID  UserID
	Side    Side
	Qty     Quantity
}

func (PlaceMarket) isCommand() {}

// Cancel removes a live resting order. UserID must match the owner.
type Cancel struct {
	OrderID OrderID
	UserID  UserID
}

func (Cancel) isCommand() {}

// Reply is what a submitter gets back for a Command, one-shot.
type Reply struct {
	Accepted   bool
	Sequence   Sequence
	Trades     []Trade
	RestingQty Quantity
	Reason     RejectReason
	QueueFull  bool
}
