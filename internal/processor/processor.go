// Package processor is the market processor: the single actor that
// linearizes every command against the orderbook, grounded on the
// teacher's gopkg.in/tomb.v2-supervised loop (internal/worker.go,
// internal/net/server.go) but collapsed to one consumer goroutine,
// never a pool — the orderbook is owned, not shared (spec.md §4.4/§5).
package processor

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbook/internal/broadcaster"
	"matchbook/internal/domain"
	"matchbook/internal/engine"
	"matchbook/internal/metrics"
	"matchbook/internal/wal"
)

// envelope is one queued item: a command plus its one-shot reply
// slot. correlationID is a uuid stamped at submission purely for log
// correlation — it is never persisted; the WAL record is exactly
// (sequence, command) per spec.md §3.
type envelope struct {
	cmd           domain.Command
	reply         chan domain.Reply
	correlationID string
}

// Processor owns the orderbook, the WAL writer, and the sequence
// counter exclusively. Nothing else may touch them (spec.md §5).
type Processor struct {
	book        *engine.OrderBook
	wal         *wal.Writer
	broadcaster *broadcaster.Broadcaster
	metrics     *metrics.Metrics

	queue   chan envelope
	nextSeq domain.Sequence

	// peakDropped is the highest broadcaster.TotalDropped() observed so
	// far; SubscriberDrops is a monotonic counter, so only the amount by
	// which a new observation exceeds this peak is ever added to it.
	peakDropped uint64

	t tomb.Tomb
}

// New starts the actor goroutine and returns immediately. startSeq is
// the sequence to assign to the first newly accepted command — after
// recovery, that's Result.NextSequence.
func New(
	book *engine.OrderBook,
	w *wal.Writer,
	b *broadcaster.Broadcaster,
	m *metrics.Metrics,
	queueCapacity int,
	startSeq domain.Sequence,
) *Processor {
	p := &Processor{
		book:        book,
		wal:         w,
		broadcaster: b,
		metrics:     m,
		queue:       make(chan envelope, queueCapacity),
		nextSeq:     startSeq,
	}
	p.t.Go(p.run)
	return p
}

// Submit enqueues cmd and blocks until the processor replies. It
// never blocks on the queue itself: a full queue returns QueueFull
// immediately, and a dead processor returns ShuttingDown without
// touching the queue at all (spec.md §7).
func (p *Processor) Submit(cmd domain.Command) domain.Reply {
	if !p.t.Alive() {
		return domain.Reply{Reason: domain.ShuttingDown}
	}

	env := envelope{
		cmd:           cmd,
		reply:         make(chan domain.Reply, 1),
		correlationID: uuid.New().String(),
	}

	select {
	case p.queue <- env:
	default:
		return domain.Reply{QueueFull: true}
	}

	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
	}
	return <-env.reply
}

// Shutdown closes the command queue. The loop drains whatever is
// already buffered, flushes the WAL, and exits (spec.md §5).
func (p *Processor) Shutdown() error {
	close(p.queue)
	return p.t.Wait()
}

func (p *Processor) run() error {
	for env := range p.queue {
		if err := p.handle(env); err != nil {
			return err
		}
	}
	return p.wal.Close()
}

// handle is the single code path for turning one queued command into
// a reply: validate, sequence, append, apply, publish. The ordering
// here — append before apply, apply before publish — is the whole of
// spec.md §9's "WAL before effect."
func (p *Processor) handle(env envelope) error {
	reason, rejected := p.book.Validate(env.cmd)
	if rejected {
		log.Debug().
			Str("correlation_id", env.correlationID).
			Str("reason", reason.String()).
			Msg("command rejected before sequencing")
		if p.metrics != nil {
			p.metrics.CommandsRejected.WithLabelValues(reason.String()).Inc()
		}
		env.reply <- domain.Reply{Reason: reason}
		return nil
	}

	seq := p.nextSeq
	p.nextSeq++

	start := time.Now()
	err := p.wal.Append(seq, env.cmd)
	if p.metrics != nil {
		p.metrics.WALAppendSeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		log.Error().
			Err(err).
			Uint64("sequence", uint64(seq)).
			Msg("wal append failed, processor is stopping")
		env.reply <- domain.Reply{Reason: domain.ShuttingDown}
		return err
	}

	events := p.book.Apply(seq, env.cmd)
	if p.metrics != nil {
		p.metrics.CommandsProcessed.WithLabelValues(commandKind(env.cmd)).Inc()
	}

	for _, e := range events {
		p.broadcaster.Publish(e)
	}
	if p.metrics != nil {
		p.metrics.Subscribers.Set(float64(p.broadcaster.SubscriberCount()))
		if total := p.broadcaster.TotalDropped(); total > p.peakDropped {
			p.metrics.SubscriberDrops.Add(float64(total - p.peakDropped))
			p.peakDropped = total
		}
	}

	log.Debug().
		Str("correlation_id", env.correlationID).
		Uint64("sequence", uint64(seq)).
		Int("events", len(events)).
		Msg("command applied")

	env.reply <- buildReply(seq, env.cmd, events)
	return nil
}

// buildReply derives the §6 reply shape from the events Apply
// produced — events are the single source of truth, the reply is a
// projection of them, never computed independently.
func buildReply(seq domain.Sequence, cmd domain.Command, events []domain.Event) domain.Reply {
	_, isCancel := cmd.(domain.Cancel)

	var trades []domain.Trade
	var restingQty domain.Quantity

	for _, e := range events {
		switch e.Kind {
		case domain.EventTrade:
			trades = append(trades, e.Trade)
		case domain.EventOrderPlaced:
			restingQty = e.PlacedQty
		case domain.EventOrderCanceled:
			if isCancel {
				restingQty = e.CanceledQty
			}
		case domain.EventOrderRejected:
			return domain.Reply{Accepted: false, Sequence: seq, Reason: e.RejectedReason}
		}
	}

	return domain.Reply{Accepted: true, Sequence: seq, Trades: trades, RestingQty: restingQty}
}

func commandKind(cmd domain.Command) string {
	switch cmd.(type) {
	case domain.PlaceLimit:
		return "place_limit"
	case domain.PlaceMarket:
		return "place_market"
	case domain.Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}
