package wal

import (
	"encoding/binary"
	"fmt"
	"os"

	"matchbook/internal/domain"
)

// Writer is the append-only, length-prefixed command log. append is
// the processor's sole durability gate: it must return only after the
// record is on disk (and, in fsync-always mode, fsynced), because the
// orderbook is never mutated before the command that mutates it is
// durable (spec.md §4.2, §9 "WAL before effect").
type Writer struct {
	f     *os.File
	fsync bool
}

// OpenWriter opens path for append, truncating any partial trailing
// record left behind by a prior crash (truncateTo, computed by
// Recover, is the byte offset of the last whole record). fsyncAlways
// selects the fsync_mode=always config policy (§6); fsync_mode=never
// skips the Sync call entirely, trading durability for throughput —
// still a stated, consistent policy, just not the default.
func OpenWriter(path string, fsyncAlways bool, truncateTo int64) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	if err := f.Truncate(truncateTo); err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: truncate %s to %d: %w", path, truncateTo, err)
	}
	if _, err := f.Seek(truncateTo, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: seek %s: %w", path, err)
	}
	return &Writer{f: f, fsync: fsyncAlways}, nil
}

// Append writes one record and, in fsync-always mode, flushes it to
// stable storage before returning. Any returned error is fatal to the
// processor (spec.md §7): durability cannot be partially honored.
func (w *Writer) Append(seq domain.Sequence, cmd domain.Command) error {
	payload, err := encodeRecord(seq, cmd)
	if err != nil {
		return err
	}

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(payload)))

	if _, err := w.f.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("wal: write length prefix: %w", err)
	}
	if _, err := w.f.Write(payload); err != nil {
		return fmt.Errorf("wal: write payload: %w", err)
	}
	if w.fsync {
		if err := w.f.Sync(); err != nil {
			return fmt.Errorf("wal: fsync: %w", err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	return w.f.Close()
}
