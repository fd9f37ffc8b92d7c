package wal

import (
	"os"
	"path/filepath"
	"testing"

	"matchbook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecoverRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.wal")

	result, err := Recover(path, func(domain.Sequence, domain.Command) {})
	require.NoError(t, err)
	assert.Equal(t, domain.Sequence(1), result.NextSequence)

	w, err := OpenWriter(path, true, result.TruncateTo)
	require.NoError(t, err)

	cmds := []domain.Command{
		domain.PlaceLimit{OrderID: 1, UserID: 1, Side: domain.Ask, Price: 100, Qty: 5},
		domain.PlaceMarket{OrderID: 2, UserID: 2, Side: domain.Bid, Qty: 3},
		domain.Cancel{OrderID: 1, UserID: 1},
	}
	for i, cmd := range cmds {
		require.NoError(t, w.Append(domain.Sequence(i+1), cmd))
	}
	require.NoError(t, w.Close())

	var replayed []domain.Command
	var seqs []domain.Sequence
	result, err = Recover(path, func(seq domain.Sequence, cmd domain.Command) {
		seqs = append(seqs, seq)
		replayed = append(replayed, cmd)
	})
	require.NoError(t, err)

	assert.Equal(t, cmds, replayed)
	assert.Equal(t, []domain.Sequence{1, 2, 3}, seqs)
	assert.Equal(t, domain.Sequence(4), result.NextSequence)
	assert.Equal(t, 3, result.RecordsApplied)
}

func TestRecoverAbsentFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.wal")
	result, err := Recover(path, func(domain.Sequence, domain.Command) {})
	require.NoError(t, err)
	assert.Equal(t, domain.Sequence(1), result.NextSequence)
	assert.Equal(t, int64(0), result.TruncateTo)
}

func TestRecoverTruncatesPartialTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.wal")

	w, err := OpenWriter(path, true, 0)
	require.NoError(t, err)
	require.NoError(t, w.Append(1, domain.Cancel{OrderID: 1, UserID: 1}))
	require.NoError(t, w.Close())

	goodSize, err := fileSize(path)
	require.NoError(t, err)

	// Simulate a crash mid-write: append a truncated length-prefixed
	// record (length prefix present, payload short).
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{50, 0, 0, 0, 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var replayed int
	result, err := Recover(path, func(domain.Sequence, domain.Command) { replayed++ })
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)
	assert.Equal(t, goodSize, result.TruncateTo)

	w2, err := OpenWriter(path, true, result.TruncateTo)
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	size, err := fileSize(path)
	require.NoError(t, err)
	assert.Equal(t, goodSize, size)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
