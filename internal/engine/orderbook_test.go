package engine

import (
	"testing"

	"matchbook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func place(t *testing.T, book *OrderBook, seq domain.Sequence, cmd domain.Command) []domain.Event {
	t.Helper()
	reason, rejected := book.Validate(cmd)
	require.Falsef(t, rejected, "unexpected rejection: %v", reason)
	return book.Apply(seq, cmd)
}

func eventsOfKind(events []domain.Event, kind domain.EventKind) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Scenario 1: simple cross.
func TestSimpleCross(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1001, UserID: 1, Side: domain.Ask, Price: 100, Qty: 50})
	events := place(t, book, 2, domain.PlaceLimit{OrderID: 2001, UserID: 2, Side: domain.Bid, Price: 100, Qty: 10})

	trades := eventsOfKind(events, domain.EventTrade)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.OrderID(1001), trades[0].Trade.MakerID)
	assert.Equal(t, domain.OrderID(2001), trades[0].Trade.TakerID)
	assert.Equal(t, domain.Price(100), trades[0].Trade.Price)
	assert.Equal(t, domain.Quantity(10), trades[0].Trade.Qty)

	maker, ok := book.Order(1001)
	require.True(t, ok)
	assert.Equal(t, domain.Quantity(40), maker.Remaining)

	assert.False(t, book.Contains(2001))
}

// Scenario 2: full sweep with residual rest.
func TestFullSweepWithResidualRest(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1001, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})
	place(t, book, 2, domain.PlaceLimit{OrderID: 1002, UserID: 1, Side: domain.Ask, Price: 101, Qty: 5})

	events := place(t, book, 3, domain.PlaceLimit{OrderID: 2001, UserID: 2, Side: domain.Bid, Price: 102, Qty: 12})
	trades := eventsOfKind(events, domain.EventTrade)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Price(100), trades[0].Trade.Price)
	assert.Equal(t, domain.Quantity(5), trades[0].Trade.Qty)
	assert.Equal(t, domain.Price(101), trades[1].Trade.Price)
	assert.Equal(t, domain.Quantity(5), trades[1].Trade.Qty)

	resting, ok := book.Order(2001)
	require.True(t, ok)
	assert.Equal(t, domain.Bid, resting.Side)
	assert.Equal(t, domain.Price(102), resting.Price)
	assert.Equal(t, domain.Quantity(2), resting.Remaining)
}

// Scenario 3: self-trade prevention.
func TestSelfTradePrevention(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1001, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})
	place(t, book, 2, domain.PlaceLimit{OrderID: 1002, UserID: 2, Side: domain.Ask, Price: 100, Qty: 5})

	events := place(t, book, 3, domain.PlaceLimit{OrderID: 2001, UserID: 1, Side: domain.Bid, Price: 100, Qty: 7})

	canceled := eventsOfKind(events, domain.EventOrderCanceled)
	require.Len(t, canceled, 1)
	assert.Equal(t, domain.OrderID(1001), canceled[0].CanceledID)
	assert.Equal(t, domain.CancelSelfTrade, canceled[0].CanceledReason)

	trades := eventsOfKind(events, domain.EventTrade)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.OrderID(1002), trades[0].Trade.MakerID)
	assert.Equal(t, domain.Quantity(5), trades[0].Trade.Qty)

	assert.False(t, book.Contains(1001))

	resting, ok := book.Order(2001)
	require.True(t, ok)
	assert.Equal(t, domain.Quantity(2), resting.Remaining)
}

// Scenario 4: cancel.
func TestCancel(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1001, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})

	events := place(t, book, 2, domain.Cancel{OrderID: 1001, UserID: 1})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCanceled, events[0].Kind)
	assert.Equal(t, domain.CancelRequested, events[0].CanceledReason)

	assert.False(t, book.Contains(1001))
	_, atBest := book.BestAsk()
	assert.False(t, atBest)
}

// Scenario 5: cancel wrong owner.
func TestCancelWrongOwner(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1001, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})

	reason, rejected := book.Validate(domain.Cancel{OrderID: 1001, UserID: 2})
	require.True(t, rejected)
	assert.Equal(t, domain.NotOwner, reason)

	assert.True(t, book.Contains(1001))
}

func TestCancelNotFound(t *testing.T) {
	book := NewOrderBook()
	reason, rejected := book.Validate(domain.Cancel{OrderID: 999, UserID: 1})
	require.True(t, rejected)
	assert.Equal(t, domain.NotFound, reason)
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1001, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})

	reason, rejected := book.Validate(domain.PlaceLimit{OrderID: 1001, UserID: 2, Side: domain.Bid, Price: 99, Qty: 1})
	require.True(t, rejected)
	assert.Equal(t, domain.DuplicateOrderID, reason)
}

func TestZeroQuantityRejected(t *testing.T) {
	book := NewOrderBook()
	reason, rejected := book.Validate(domain.PlaceLimit{OrderID: 1, UserID: 1, Side: domain.Bid, Price: 1, Qty: 0})
	require.True(t, rejected)
	assert.Equal(t, domain.ZeroQuantity, reason)

	reason, rejected = book.Validate(domain.PlaceMarket{OrderID: 2, UserID: 1, Side: domain.Bid, Qty: 0})
	require.True(t, rejected)
	assert.Equal(t, domain.ZeroQuantity, reason)
}

// Market order against an empty opposite side.
func TestMarketOrderNoLiquidity(t *testing.T) {
	book := NewOrderBook()
	events := place(t, book, 1, domain.PlaceMarket{OrderID: 1, UserID: 1, Side: domain.Bid, Qty: 10})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderRejected, events[0].Kind)
	assert.Equal(t, domain.NoLiquidity, events[0].RejectedReason)
}

func TestMarketOrderSweepsMultipleLevels(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})
	place(t, book, 2, domain.PlaceLimit{OrderID: 2, UserID: 1, Side: domain.Ask, Price: 101, Qty: 5})

	events := place(t, book, 3, domain.PlaceMarket{OrderID: 3, UserID: 2, Side: domain.Bid, Qty: 8})
	trades := eventsOfKind(events, domain.EventTrade)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Quantity(5), trades[0].Trade.Qty)
	assert.Equal(t, domain.Quantity(3), trades[1].Trade.Qty)
	assert.False(t, book.Contains(3), "market orders are never indexed")
}

// Self-trade against multiple own makers at the top, in turn.
func TestSelfTradeMultipleMakersInTurn(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})
	place(t, book, 2, domain.PlaceLimit{OrderID: 2, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})
	place(t, book, 3, domain.PlaceLimit{OrderID: 3, UserID: 2, Side: domain.Ask, Price: 100, Qty: 5})

	events := place(t, book, 4, domain.PlaceLimit{OrderID: 4, UserID: 1, Side: domain.Bid, Price: 100, Qty: 3})
	canceled := eventsOfKind(events, domain.EventOrderCanceled)
	require.Len(t, canceled, 2)
	assert.Equal(t, domain.OrderID(1), canceled[0].CanceledID)
	assert.Equal(t, domain.OrderID(2), canceled[1].CanceledID)

	trades := eventsOfKind(events, domain.EventTrade)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.OrderID(3), trades[0].Trade.MakerID)
	assert.Equal(t, domain.Quantity(3), trades[0].Trade.Qty)
}

func TestPriceTimePriority(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})
	place(t, book, 2, domain.PlaceLimit{OrderID: 2, UserID: 2, Side: domain.Ask, Price: 100, Qty: 5})

	events := place(t, book, 3, domain.PlaceLimit{OrderID: 3, UserID: 3, Side: domain.Bid, Price: 100, Qty: 5})
	trades := eventsOfKind(events, domain.EventTrade)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.OrderID(1), trades[0].Trade.MakerID, "earlier arrival must be consumed first")
}

func TestBookNeverCrossedAtRest(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1, UserID: 1, Side: domain.Bid, Price: 99, Qty: 5})
	place(t, book, 2, domain.PlaceLimit{OrderID: 2, UserID: 2, Side: domain.Ask, Price: 101, Qty: 5})

	bid, _ := book.BestBid()
	ask, _ := book.BestAsk()
	assert.Less(t, uint64(bid), uint64(ask))
}

func TestEmptyLevelRemovedFromLadder(t *testing.T) {
	book := NewOrderBook()
	place(t, book, 1, domain.PlaceLimit{OrderID: 1, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5})
	place(t, book, 2, domain.PlaceLimit{OrderID: 2, UserID: 2, Side: domain.Bid, Price: 100, Qty: 5})

	_, ok := book.BestAsk()
	assert.False(t, ok, "fully consumed level must not linger with an empty queue")
}
