// Package engine is the pure in-memory orderbook: two price-indexed
// ladders, an arena of order records, and the order-id index. It has
// no I/O and no notion of the processor, the WAL, or subscribers —
// those own it from the outside.
package engine

import (
	"matchbook/internal/domain"

	"github.com/tidwall/btree"
)

type ladder = btree.BTreeG[*priceLevel]

// OrderBook holds one instrument's bids and asks. Per spec.md's
// non-goals, one OrderBook exists per traded symbol; routing across
// symbols is a concern of the caller, not this package.
type OrderBook struct {
	bids *ladder
	asks *ladder

	index map[domain.OrderID]orderHandle
	arena *arena

	// arrival is the intra-book FIFO tie-break counter. It is distinct
	// from domain.Sequence (which numbers accepted commands/events):
	// arrival only needs to reproduce the same relative order on
	// replay, which it does because replay re-applies commands in
	// their original sequence order.
	arrival uint64
}

func NewOrderBook() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price > b.price // highest bid first
	})
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price < b.price // lowest ask first
	})
	return &OrderBook{
		bids:  bids,
		asks:  asks,
		index: make(map[domain.OrderID]orderHandle),
		arena: newArena(),
	}
}

// OrderView is a read-only snapshot of a live order, safe to hand to
// callers outside this package (it never leaks an arena handle).
type OrderView struct {
	OrderID   domain.OrderID
	UserID    domain.UserID
	Side      domain.Side
	Price     domain.Price
	Remaining domain.Quantity
	Original  domain.Quantity
	Arrival   uint64
}

// Validate reports whether cmd would be rejected against the book's
// current state, without mutating anything. The processor calls this
// before assigning a sequence number so that rejected commands never
// consume a sequence or reach the WAL (see DESIGN.md's policy on
// rejected-command logging) — the sole exception is a market order
// that finds no liquidity, which Validate does not catch because it
// is sequenced and logged regardless (spec.md §4.1).
func (b *OrderBook) Validate(cmd domain.Command) (domain.RejectReason, bool) {
	switch c := cmd.(type) {
	case domain.PlaceLimit:
		if c.Qty == 0 {
			return domain.ZeroQuantity, true
		}
		if _, exists := b.index[c.OrderID]; exists {
			return domain.DuplicateOrderID, true
		}
	case domain.PlaceMarket:
		if c.Qty == 0 {
			return domain.ZeroQuantity, true
		}
	case domain.Cancel:
		h, exists := b.index[c.OrderID]
		if !exists {
			return domain.NotFound, true
		}
		if b.arena.get(h).user != c.UserID {
			return domain.NotOwner, true
		}
	}
	return 0, false
}

// Apply performs the accepted command's full effect — match, residual
// rest, or removal — atomically with respect to any other command,
// because nothing here suspends. It assumes Validate already passed.
func (b *OrderBook) Apply(seq domain.Sequence, cmd domain.Command) []domain.Event {
	switch c := cmd.(type) {
	case domain.PlaceLimit:
		return b.applyPlaceLimit(seq, c)
	case domain.PlaceMarket:
		return b.applyPlaceMarket(seq, c)
	case domain.Cancel:
		return b.applyCancel(seq, c)
	default:
		return nil
	}
}

// Replay is recovery's entry point: it runs the same Validate gate
// Apply assumes already passed, and skips cmd instead of applying it
// when rejected. This is what keeps replay total over corruption and
// over stale records — e.g. a Cancel for an order a preceding,
// now-truncated record already removed would otherwise drive
// applyCancel with a zero handle. The caller (wal.Recover's callback)
// logs the skip; Replay only reports it.
func (b *OrderBook) Replay(seq domain.Sequence, cmd domain.Command) (domain.RejectReason, bool) {
	if reason, rejected := b.Validate(cmd); rejected {
		return reason, true
	}
	b.Apply(seq, cmd)
	return 0, false
}

func (b *OrderBook) applyPlaceLimit(seq domain.Sequence, c domain.PlaceLimit) []domain.Event {
	remaining, events := b.match(seq, c.OrderID, c.UserID, c.Side, c.Price, c.Qty, true)
	if remaining > 0 {
		b.rest(c.OrderID, c.UserID, c.Side, c.Price, remaining)
		events = append(events, domain.Event{
			Kind:        domain.EventOrderPlaced,
			Sequence:    seq,
			PlacedID:    c.OrderID,
			PlacedSide:  c.Side,
			PlacedPrice: c.Price,
			PlacedQty:   remaining,
		})
	}
	return events
}

func (b *OrderBook) applyPlaceMarket(seq domain.Sequence, c domain.PlaceMarket) []domain.Event {
	opposite := b.oppositeLadder(c.Side)
	if opposite.Len() == 0 {
		return []domain.Event{{
			Kind:           domain.EventOrderRejected,
			Sequence:       seq,
			RejectedID:     c.OrderID,
			RejectedReason: domain.NoLiquidity,
		}}
	}
	// Unfilled remainder is discarded, never rested — market orders are
	// never registered in the order-id index.
	_, events := b.match(seq, c.OrderID, c.UserID, c.Side, 0, c.Qty, false)
	return events
}

func (b *OrderBook) applyCancel(seq domain.Sequence, c domain.Cancel) []domain.Event {
	h := b.index[c.OrderID]
	rec := b.arena.get(h)
	level := rec.level
	qty := rec.remaining
	side := rec.side

	b.arena.remove(level, h)
	delete(b.index, c.OrderID)
	b.arena.release(h)
	if level.count == 0 {
		b.ladderFor(side).Delete(level)
	}

	return []domain.Event{{
		Kind:           domain.EventOrderCanceled,
		Sequence:       seq,
		CanceledID:     c.OrderID,
		CanceledReason: domain.CancelRequested,
		CanceledQty:    qty,
	}}
}

// match sweeps the opposite ladder while it crosses the aggressor,
// applying self-trade prevention and price-time priority (§4.1.1).
// hasLimit=false models a market order's infinite limit price.
func (b *OrderBook) match(
	seq domain.Sequence,
	aggrID domain.OrderID,
	aggrUser domain.UserID,
	side domain.Side,
	limitPrice domain.Price,
	qty domain.Quantity,
	hasLimit bool,
) (domain.Quantity, []domain.Event) {
	var events []domain.Event
	levels := b.oppositeLadder(side)

	for qty > 0 {
		level, ok := levels.MinMut()
		if !ok {
			break
		}
		if hasLimit {
			if side == domain.Bid && level.price > limitPrice {
				break
			}
			if side == domain.Ask && level.price < limitPrice {
				break
			}
		}

		for qty > 0 && level.head != 0 {
			h := level.head
			maker := b.arena.get(h)

			if maker.user == aggrUser {
				// Self-trade prevention: cancel the maker, do not fill,
				// do not consume aggressor quantity, keep sweeping.
				canceledID := maker.id
				canceledQty := maker.remaining
				b.arena.remove(level, h)
				delete(b.index, canceledID)
				b.arena.release(h)
				events = append(events, domain.Event{
					Kind:           domain.EventOrderCanceled,
					Sequence:       seq,
					CanceledID:     canceledID,
					CanceledReason: domain.CancelSelfTrade,
					CanceledQty:    canceledQty,
				})
				continue
			}

			tradeQty := min(qty, maker.remaining)
			maker.remaining -= tradeQty
			qty -= tradeQty

			events = append(events,
				domain.Event{
					Kind:     domain.EventTrade,
					Sequence: seq,
					Trade: domain.Trade{
						Sequence:  seq,
						MakerID:   maker.id,
						TakerID:   aggrID,
						Price:     maker.price,
						Qty:       tradeQty,
						TakerSide: side,
					},
				},
				domain.Event{
					Kind:            domain.EventOrderFilled,
					Sequence:        seq,
					FilledID:        maker.id,
					FilledQty:       tradeQty,
					FilledRemaining: maker.remaining,
				},
			)

			if maker.remaining == 0 {
				filledID := maker.id
				b.arena.remove(level, h)
				delete(b.index, filledID)
				b.arena.release(h)
			}
		}

		if level.count == 0 {
			levels.Delete(level)
		}
	}

	return qty, events
}

func (b *OrderBook) rest(id domain.OrderID, user domain.UserID, side domain.Side, price domain.Price, qty domain.Quantity) {
	b.arrival++
	h := b.arena.alloc()
	*b.arena.get(h) = orderRecord{
		id:         id,
		user:       user,
		side:       side,
		price:      price,
		remaining:  qty,
		original:   qty,
		arrivalSeq: b.arrival,
	}

	levels := b.ladderFor(side)
	level, ok := levels.GetMut(&priceLevel{price: price})
	if !ok {
		level = &priceLevel{price: price}
		levels.Set(level)
	}
	b.arena.pushTail(level, h)
	b.index[id] = h
}

func (b *OrderBook) ladderFor(side domain.Side) *ladder {
	if side == domain.Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeLadder(side domain.Side) *ladder {
	return b.ladderFor(side.Opposite())
}

// BestBid returns the highest resting bid price, if any.
func (b *OrderBook) BestBid() (domain.Price, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (b *OrderBook) BestAsk() (domain.Price, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// Contains reports whether orderID currently identifies a live order.
func (b *OrderBook) Contains(id domain.OrderID) bool {
	_, ok := b.index[id]
	return ok
}

// Order returns a snapshot of a live order by id.
func (b *OrderBook) Order(id domain.OrderID) (OrderView, bool) {
	h, ok := b.index[id]
	if !ok {
		return OrderView{}, false
	}
	rec := b.arena.get(h)
	return OrderView{
		OrderID:   rec.id,
		UserID:    rec.user,
		Side:      rec.side,
		Price:     rec.price,
		Remaining: rec.remaining,
		Original:  rec.original,
		Arrival:   rec.arrivalSeq,
	}, true
}

// DepthAt returns the live orders resting at (side, price) in strict
// arrival order, or nil if no such level exists. Intended for tests
// and snapshot/depth queries, not the hot path.
func (b *OrderBook) DepthAt(side domain.Side, price domain.Price) []OrderView {
	level, ok := b.ladderFor(side).GetMut(&priceLevel{price: price})
	if !ok {
		return nil
	}
	out := make([]OrderView, 0, level.count)
	for h := level.head; h != 0; {
		rec := b.arena.get(h)
		out = append(out, OrderView{
			OrderID:   rec.id,
			UserID:    rec.user,
			Side:      rec.side,
			Price:     rec.price,
			Remaining: rec.remaining,
			Original:  rec.original,
			Arrival:   rec.arrivalSeq,
		})
		h = rec.next
	}
	return out
}

// LiveOrderCount returns the number of live orders in the order-id
// index — used by tests asserting the reachability invariant (§8).
func (b *OrderBook) LiveOrderCount() int {
	return len(b.index)
}

// LevelView is one aggregated price level: total resting quantity
// across every order at that price, best-to-worst ordered.
type LevelView struct {
	Price domain.Price
	Qty   domain.Quantity
}

// Depth returns up to maxLevels aggregated price levels for side,
// ordered from best to worst — the tree's own iteration order,
// since bids and asks are each ordered best-first at construction.
func (b *OrderBook) Depth(side domain.Side, maxLevels int) []LevelView {
	out := make([]LevelView, 0, maxLevels)
	b.ladderFor(side).Scan(func(level *priceLevel) bool {
		var qty domain.Quantity
		for h := level.head; h != 0; {
			rec := b.arena.get(h)
			qty += rec.remaining
			h = rec.next
		}
		out = append(out, LevelView{Price: level.price, Qty: qty})
		return len(out) < maxLevels
	})
	return out
}
