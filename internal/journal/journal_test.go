package journal

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ledger/internal/codec"
	"ledger/internal/schema"
)

func notification(seq uint64, eventType schema.EventType) schema.Notification {
	n := schema.Notification{
		Type:      eventType,
		Seq:       seq,
		Slot:      seq * 10,
		Timestamp: 1_700_000_000 + int64(seq),
		Amount:    seq * 1_000,
	}
	n.Actor[0] = byte(seq)
	return n
}

func TestRecordRoundTrip(t *testing.T) {
	header := schema.EventHeader{Type: schema.EventDeposit, Version: schema.SchemaVersion, Source: 2, Flags: 1, Seq: 77, TsEvent: 5, TsRecv: 6, TraceID: 8}
	payload := []byte("payload")

	buf := AppendRecord([]byte("xx"), header, payload)
	require.Len(t, buf, 2+RecordSize(len(payload)))

	r := NewReader(bytes.NewReader(buf[2:]), ReaderOptions{})
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, header, rec.Header)
	assert.Equal(t, payload, rec.Payload)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderRejectsCorruption(t *testing.T) {
	header := schema.EventHeader{Type: schema.EventWithdraw, Seq: 1}
	buf := AppendRecord(nil, header, []byte{1, 2, 3})

	corrupt := append([]byte(nil), buf...)
	corrupt[RecordHeaderSize] ^= 0xFF
	_, err := NewReader(bytes.NewReader(corrupt), ReaderOptions{}).Next()
	assert.Truef(t, errors.Is(err, ErrChecksumMismatch), "err = %v", err)

	_, err = NewReader(bytes.NewReader(corrupt), ReaderOptions{DisableChecksum: true}).Next()
	assert.NoError(t, err)

	badMagic := append([]byte(nil), buf...)
	badMagic[0] = 'X'
	_, err = NewReader(bytes.NewReader(badMagic), ReaderOptions{}).Next()
	assert.Truef(t, errors.Is(err, ErrInvalidMagic), "err = %v", err)

	_, err = NewReader(bytes.NewReader(buf[:len(buf)-2]), ReaderOptions{}).Next()
	assert.Truef(t, errors.Is(err, io.ErrUnexpectedEOF), "err = %v", err)

	_, err = NewReader(bytes.NewReader(buf), ReaderOptions{MaxPayloadSize: 2}).Next()
	assert.Truef(t, errors.Is(err, ErrPayloadTooLarge), "err = %v", err)
}

func TestWriterReplay(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxBytes = int64(2 * RecordSize(codec.NotificationPayloadSize))

	w, err := NewWriter(cfg, 4)
	require.NoError(t, err)
	assert.True(t, errors.Is(w.TryAppend(schema.EventHeader{}, nil), ErrNotStarted))
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, errors.Is(w.Start(context.Background()), ErrAlreadyStarted))

	ctx := context.Background()
	types := []schema.EventType{schema.EventDeposit, schema.EventStake, schema.EventTransfer, schema.EventDeposit, schema.EventRepay}
	for i, eventType := range types {
		require.NoError(t, w.AppendNotification(ctx, notification(uint64(i+1), eventType)))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, uint64(len(types)), w.Written())
	assert.True(t, errors.Is(w.AppendNotification(ctx, notification(9, schema.EventDeposit)), ErrClosed))

	replay, err := NewReplay(ReplayConfig{Dir: dir})
	require.NoError(t, err)
	segments, err := replay.Segments()
	require.NoError(t, err)
	assert.Len(t, segments, 3)

	var got []schema.Notification
	require.NoError(t, replay.Run(ctx, func(rec Record) error {
		n, err := rec.Notification()
		if err != nil {
			return err
		}
		assert.Equal(t, uint16(4), rec.Header.Source)
		assert.Equal(t, n.Seq, rec.Header.Seq)
		assert.Equal(t, n.Type, rec.Header.Type)
		got = append(got, n)
		return nil
	}))
	require.Len(t, got, len(types))
	for i, n := range got {
		assert.Equal(t, notification(uint64(i+1), types[i]), n)
	}

	filtered, err := NewReplay(ReplayConfig{
		Dir:     dir,
		FromSeq: 2,
		Types:   map[uint16]bool{uint16(schema.EventDeposit): true},
	})
	require.NoError(t, err)
	var seqs []uint64
	require.NoError(t, filtered.Run(ctx, func(rec Record) error {
		seqs = append(seqs, rec.Header.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{4}, seqs)
}

type fakeSleeper struct {
	total time.Duration
}

func (f *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	f.total += d
	return nil
}

func TestReplayPacing(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir), 1)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, w.AppendNotification(context.Background(), notification(i, schema.EventDeposit)))
	}
	require.NoError(t, w.Close())

	sleeper := &fakeSleeper{}
	replay, err := NewReplay(ReplayConfig{Dir: dir, Speed: 2})
	require.NoError(t, err)
	require.NoError(t, replay.WithSleeper(sleeper).Run(context.Background(), func(Record) error { return nil }))
	assert.Equal(t, time.Second, sleeper.total)
}

func TestReplayIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journal-x.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "journal-dir.jnl"), 0o755))

	replay, err := NewReplay(ReplayConfig{Dir: dir})
	require.NoError(t, err)
	segments, err := replay.Segments()
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig("x").Validate())
	assert.Error(t, DefaultConfig("").Validate())

	cfg := DefaultConfig("x")
	cfg.SegmentMaxBytes = 10
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("x")
	cfg.FlushInterval = -time.Second
	assert.Error(t, cfg.Validate())

	_, err := NewReplay(ReplayConfig{})
	assert.Error(t, err)
	_, err = NewReplay(ReplayConfig{Dir: "x", Speed: -1})
	assert.Error(t, err)
}
