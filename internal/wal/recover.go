package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"matchbook/internal/domain"
)

// Result summarizes a replay pass over the log.
type Result struct {
	// NextSequence is the sequence the processor should assign to the
	// next accepted command.
	NextSequence domain.Sequence
	// TruncateTo is the byte offset of the last whole record. The
	// writer truncates the file to this offset before accepting new
	// appends, discarding any partial trailing record.
	TruncateTo int64
	// RecordsApplied counts records successfully decoded and replayed.
	RecordsApplied int
}

// Recover streams path end-to-end, invoking apply for every record
// that decodes cleanly, in file order. Applying is the caller's job
// (recovery has no notion of what an orderbook is) — pass a callback
// that forwards into the same Orderbook.Apply path live traffic uses,
// so replay and live application can never diverge, per spec.md §4.3.
//
// A short read or decode error is treated as end-of-log: it is logged
// as a warning and recovery stops there, per the "replay must be
// total to survive corruption" requirement — the truncation it
// implies is carried out later, by OpenWriter(TruncateTo).
func Recover(path string, apply func(seq domain.Sequence, cmd domain.Command)) (Result, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{NextSequence: 1, TruncateTo: 0}, nil
	}
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var offset int64
	var maxSeq domain.Sequence
	var applied int

	for {
		var lenPrefix [4]byte
		if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Int64("offset", offset).Msg("wal: short read of record length, truncating")
			}
			break
		}
		length := binary.LittleEndian.Uint32(lenPrefix[:])

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			log.Warn().Err(err).Int64("offset", offset).Msg("wal: short read of record payload, truncating")
			break
		}

		seq, cmd, err := decodeRecord(payload)
		if err != nil {
			log.Warn().Err(err).Int64("offset", offset).Msg("wal: decode error, truncating at last good record")
			break
		}

		offset += 4 + int64(length)
		if seq > maxSeq {
			maxSeq = seq
		}
		applied++
		apply(seq, cmd)
	}

	next := domain.Sequence(1)
	if applied > 0 {
		next = maxSeq + 1
	}
	return Result{NextSequence: next, TruncateTo: offset, RecordsApplied: applied}, nil
}
