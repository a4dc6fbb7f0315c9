package journal

import (
	"time"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 64 << 20
	defaultQueueSize             = 1024
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "journal"
	segmentSuffix                = ".jnl"
)

var defaultSegmentMaxDuration = time.Hour

// Config controls how the writer lays out segments on disk.
type Config struct {
	Dir                string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	QueueSize          int
	BufferSize         int
	FilePrefix         string
	FlushInterval      time.Duration
	SyncInterval       time.Duration
}

// DefaultConfig returns a baseline configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
		FlushInterval:      time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid journal config: Dir is empty")
	}
	if c.SegmentMaxBytes <= 0 {
		return errors.New("invalid journal config: SegmentMaxBytes must be > 0")
	}
	if c.SegmentMaxBytes < int64(RecordSize(0)) {
		return errors.Errorf("invalid journal config: SegmentMaxBytes must be >= %d", RecordSize(0))
	}
	if c.QueueSize <= 0 {
		return errors.New("invalid journal config: QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return errors.New("invalid journal config: BufferSize must be > 0")
	}
	if c.FilePrefix == "" {
		return errors.New("invalid journal config: FilePrefix is empty")
	}
	if c.FlushInterval < 0 {
		return errors.New("invalid journal config: FlushInterval must be >= 0")
	}
	if c.SyncInterval < 0 {
		return errors.New("invalid journal config: SyncInterval must be >= 0")
	}
	return nil
}
