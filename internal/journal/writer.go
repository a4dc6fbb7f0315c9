package journal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"

	"ledger/internal/codec"
	"ledger/internal/schema"
)

var (
	ErrQueueFull      = errors.New("journal queue full")
	ErrClosed         = errors.New("journal writer closed")
	ErrNotStarted     = errors.New("journal writer not started")
	ErrAlreadyStarted = errors.New("journal writer already started")
)

// Writer appends records to rotating segment files from a buffered queue.
// A single goroutine owns the open segment.
type Writer struct {
	cfg    Config
	source uint16
	ch     chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
	err    atomic.Value

	written uint64
	mu      sync.RWMutex
	closed  bool
	started uint32
}

// NewWriter creates a writer and ensures the target directory exists.
func NewWriter(cfg Config, source uint16) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir").With("dir", cfg.Dir)
	}
	return &Writer{
		cfg:    cfg,
		source: source,
		ch:     make(chan []byte, cfg.QueueSize),
		done:   make(chan struct{}),
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.done)
		w.run(ctx)
	}()
	return nil
}

// Close stops accepting records, writes out everything queued and syncs the
// open segment.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Written returns the number of records handed to a segment.
func (w *Writer) Written() uint64 {
	return atomic.LoadUint64(&w.written)
}

// AppendNotification encodes n and queues it, waiting for room until ctx is done.
func (w *Writer) AppendNotification(ctx context.Context, n schema.Notification) error {
	header := codec.HeaderFor(n, w.source, time.Now().UTC().UnixNano())
	return w.Append(ctx, header, codec.EncodeNotification(nil, n))
}

// Append queues one record, waiting for room until ctx is done.
func (w *Writer) Append(ctx context.Context, header schema.EventHeader, payload []byte) error {
	return w.enqueue(ctx, header, payload, true)
}

// TryAppend queues one record without blocking.
func (w *Writer) TryAppend(header schema.EventHeader, payload []byte) error {
	return w.enqueue(context.Background(), header, payload, false)
}

func (w *Writer) enqueue(ctx context.Context, header schema.EventHeader, payload []byte, wait bool) error {
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if uint64(len(payload)) > maxPayloadLen {
		return ErrPayloadTooLarge
	}
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}
	if header.Source == 0 {
		header.Source = w.source
	}
	rec := AppendRecord(make([]byte, 0, RecordSize(len(payload))), header, payload)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	if !wait {
		select {
		case w.ch <- rec:
			return nil
		default:
			return ErrQueueFull
		}
	}
	select {
	case w.ch <- rec:
		return nil
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg         *segment
		segID       uint64
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if err := seg.close(); err != nil {
			w.setErr(err)
		}
	}()

	write := func(rec []byte) bool {
		if err := w.write(&seg, &segID, rec); err != nil {
			w.setErr(err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec, ok := <-w.ch:
					if !ok || !write(rec) {
						return
					}
				default:
					return
				}
			}
		case rec, ok := <-w.ch:
			if !ok || !write(rec) {
				return
			}
		case <-flushC:
			if err := seg.flush(); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := seg.sync(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) write(seg **segment, segID *uint64, rec []byte) error {
	now := time.Now().UTC()
	if w.shouldRotate(*seg, now, int64(len(rec))) {
		if err := (*seg).close(); err != nil {
			return err
		}
		opened, err := w.openSegment(segID, now)
		if err != nil {
			return err
		}
		*seg = opened
	}
	if _, err := (*seg).buf.Write(rec); err != nil {
		return errors.Wrap(err, "write journal record").With("segment", (*seg).file.Name())
	}
	(*seg).size += int64(len(rec))
	atomic.AddUint64(&w.written, 1)
	return nil
}

func (w *Writer) shouldRotate(seg *segment, now time.Time, nextSize int64) bool {
	if seg == nil {
		return true
	}
	if seg.size > 0 && seg.size+nextSize > w.cfg.SegmentMaxBytes {
		return true
	}
	if w.cfg.SegmentMaxDuration > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxDuration {
		return true
	}
	return false
}

func (w *Writer) openSegment(segID *uint64, now time.Time) (*segment, error) {
	ts := now.Format("20060102-150405")
	for {
		*segID++
		name := fmt.Sprintf("%s-%s-%06d%s", w.cfg.FilePrefix, ts, *segID, segmentSuffix)
		path := filepath.Join(w.cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, errors.Wrap(err, "open journal segment").With("path", path)
		}
		return &segment{
			file:     file,
			buf:      bufio.NewWriterSize(file, w.cfg.BufferSize),
			openedAt: now,
		}, nil
	}
}

func (w *Writer) setErr(err error) {
	if err == nil || w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

func (s *segment) flush() error {
	if s == nil {
		return nil
	}
	return s.buf.Flush()
}

func (s *segment) sync() error {
	if s == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	if err := s.sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
