package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"matchbook/internal/domain"
)

// Command kind tags, one byte each, persisted as the first byte of
// every record's payload.
const (
	kindPlaceLimit byte = iota
	kindPlaceMarket
	kindCancel
)

// encodeRecord serializes (sequence, command) into the record payload
// — everything that sits after the record's [u32 length] prefix. The
// framing is little-endian per spec.md §4.2; field packing is manual,
// the same hand-rolled-over-a-codec choice the teacher made for its
// own wire messages (internal/net/messages.go) — see DESIGN.md.
func encodeRecord(seq domain.Sequence, cmd domain.Command) ([]byte, error) {
	var buf bytes.Buffer
	switch c := cmd.(type) {
	case domain.PlaceLimit:
		buf.WriteByte(kindPlaceLimit)
		writeUint64(&buf, uint64(seq))
		writeUint64(&buf, uint64(c.OrderID))
		writeUint64(&buf, uint64(c.UserID))
		buf.WriteByte(byte(c.Side))
		writeUint64(&buf, uint64(c.Price))
		writeUint64(&buf, uint64(c.Qty))
	case domain.PlaceMarket:
		buf.WriteByte(kindPlaceMarket)
		writeUint64(&buf, uint64(seq))
		writeUint64(&buf, uint64(c.OrderID))
		writeUint64(&buf, uint64(c.UserID))
		buf.WriteByte(byte(c.Side))
		writeUint64(&buf, uint64(c.Qty))
	case domain.Cancel:
		buf.WriteByte(kindCancel)
		writeUint64(&buf, uint64(seq))
		writeUint64(&buf, uint64(c.OrderID))
		writeUint64(&buf, uint64(c.UserID))
	default:
		return nil, fmt.Errorf("wal: unknown command type %T", cmd)
	}
	return buf.Bytes(), nil
}

// decodeRecord is encodeRecord's inverse. It returns an error on any
// malformed or truncated payload; callers treat that as corruption at
// this record's boundary, per spec.md §4.3.
func decodeRecord(payload []byte) (domain.Sequence, domain.Command, error) {
	if len(payload) < 1 {
		return 0, nil, fmt.Errorf("wal: empty record payload")
	}
	kind := payload[0]
	rest := payload[1:]

	switch kind {
	case kindPlaceLimit:
		const want = 8 + 8 + 8 + 1 + 8 + 8
		if len(rest) != want {
			return 0, nil, fmt.Errorf("wal: PlaceLimit record has %d bytes, want %d", len(rest), want)
		}
		seq := domain.Sequence(readUint64(rest[0:8]))
		cmd := domain.PlaceLimit{
			OrderID: domain.OrderID(readUint64(rest[8:16])),
			UserID:  domain.UserID(readUint64(rest[16:24])),
			Side:    domain.Side(rest[24]),
			Price:   domain.Price(readUint64(rest[25:33])),
			Qty:     domain.Quantity(readUint64(rest[33:41])),
		}
		return seq, cmd, nil

	case kindPlaceMarket:
		const want = 8 + 8 + 8 + 1 + 8
		if len(rest) != want {
			return 0, nil, fmt.Errorf("wal: PlaceMarket record has %d bytes, want %d", len(rest), want)
		}
		seq := domain.Sequence(readUint64(rest[0:8]))
		cmd := domain.PlaceMarket{
			OrderID: domain.OrderID(readUint64(rest[8:16])),
			UserID:  domain.UserID(readUint64(rest[16:24])),
			Side:    domain.Side(rest[24]),
			Qty:     domain.Quantity(readUint64(rest[25:33])),
		}
		return seq, cmd, nil

	case kindCancel:
		const want = 8 + 8 + 8
		if len(rest) != want {
			return 0, nil, fmt.Errorf("wal: Cancel record has %d bytes, want %d", len(rest), want)
		}
		seq := domain.Sequence(readUint64(rest[0:8]))
		cmd := domain.Cancel{
			OrderID: domain.OrderID(readUint64(rest[8:16])),
			UserID:  domain.UserID(readUint64(rest[16:24])),
		}
		return seq, cmd, nil

	default:
		return 0, nil, fmt.Errorf("wal: unknown record kind %d", kind)
	}
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
