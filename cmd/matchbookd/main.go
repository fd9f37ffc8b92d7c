// Command matchbookd boots a single matching-engine instance: load
// config, replay the WAL, start the processor, and block until a
// signal arrives — the same signal.NotifyContext shutdown idiom the
// teacher's cmd/main.go uses around its TCP server, kept here around
// the processor instead. Wiring a wire transport onto Processor.Submit
// is explicitly out of scope (spec.md §1); this binary exists to prove
// the pieces boot and recover together, not to serve a protocol.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"matchbook/internal/broadcaster"
	"matchbook/internal/config"
	"matchbook/internal/domain"
	"matchbook/internal/engine"
	"matchbook/internal/metrics"
	"matchbook/internal/processor"
	"matchbook/internal/wal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("matchbookd exited")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("MATCHBOOK_CONFIG_FILE"))
	if err != nil {
		return err
	}

	book := engine.NewOrderBook()

	result, err := wal.Recover(cfg.WALPath, func(seq domain.Sequence, cmd domain.Command) {
		if reason, skipped := book.Replay(seq, cmd); skipped {
			log.Warn().
				Uint64("sequence", uint64(seq)).
				Str("reason", reason.String()).
				Msg("wal: skipped rejected record during replay")
		}
	})
	if err != nil {
		return err
	}
	log.Info().
		Int("records_applied", result.RecordsApplied).
		Uint64("next_sequence", uint64(result.NextSequence)).
		Msg("wal recovery complete")

	writer, err := wal.OpenWriter(cfg.WALPath, cfg.Fsync(), result.TruncateTo)
	if err != nil {
		return err
	}

	b := broadcaster.New()
	m := metrics.New()
	p := processor.New(book, writer, b, m, cfg.CommandQueueCapacity, result.NextSequence)

	log.Info().
		Str("wal_path", cfg.WALPath).
		Bool("fsync", cfg.Fsync()).
		Int("command_queue_capacity", cfg.CommandQueueCapacity).
		Msg("matchbookd ready")

	<-ctx.Done()

	log.Info().Msg("shutting down")
	return p.Shutdown()
}
