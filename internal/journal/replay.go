package journal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yanun0323/errors"
)

// ReplayConfig selects which segments and records a Replay visits.
type ReplayConfig struct {
	Dir             string
	FilePrefix      string
	FromSeq         uint64
	Types           map[uint16]bool
	Speed           float64
	DisableChecksum bool
	MaxPayloadSize  int
}

// Sleeper paces replay. Tests substitute a fake.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Replay reads journal segments in name order, which is write order.
type Replay struct {
	cfg     ReplayConfig
	sleeper Sleeper
}

// NewReplay validates the config and creates a replay.
func NewReplay(cfg ReplayConfig) (*Replay, error) {
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = defaultFilePrefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Replay{cfg: cfg, sleeper: timerSleeper{}}, nil
}

// WithSleeper swaps the pacing implementation.
func (r *Replay) WithSleeper(s Sleeper) *Replay {
	if s != nil {
		r.sleeper = s
	}
	return r
}

// Validate checks if the config is usable.
func (c ReplayConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid replay config: Dir is empty")
	}
	if c.Speed < 0 {
		return errors.New("invalid replay config: Speed must be >= 0")
	}
	if c.MaxPayloadSize < 0 {
		return errors.New("invalid replay config: MaxPayloadSize must be >= 0")
	}
	return nil
}

// Segments lists the segment files in replay order.
func (r *Replay) Segments() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "read journal dir").With("dir", r.cfg.Dir)
	}
	prefix := r.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		files = append(files, filepath.Join(r.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// Run calls fn for every selected record. A non-nil error from fn stops the replay.
func (r *Replay) Run(ctx context.Context, fn func(Record) error) error {
	if fn == nil {
		return errors.New("replay handler is nil")
	}
	files, err := r.Segments()
	if err != nil {
		return err
	}
	var prevTS int64
	for _, path := range files {
		if err := r.playFile(ctx, path, fn, &prevTS); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replay) playFile(ctx context.Context, path string, fn func(Record) error, prevTS *int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: r.cfg.DisableChecksum,
		MaxPayloadSize:  r.cfg.MaxPayloadSize,
	})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read journal segment").With("path", path)
		}
		if rec.Header.Seq < r.cfg.FromSeq {
			continue
		}
		if len(r.cfg.Types) > 0 && !r.cfg.Types[uint16(rec.Header.Type)] {
			continue
		}
		if err := r.pace(ctx, rec.Header.TsEvent, prevTS); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

func (r *Replay) pace(ctx context.Context, ts int64, prevTS *int64) error {
	if r.cfg.Speed <= 0 || ts <= 0 {
		return nil
	}
	if *prevTS > 0 {
		if delta := ts - *prevTS; delta > 0 {
			if err := r.sleeper.Sleep(ctx, time.Duration(float64(delta)/r.cfg.Speed)); err != nil {
				return err
			}
		}
	}
	*prevTS = ts
	return nil
}
