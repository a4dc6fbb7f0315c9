package notify

import (
	"context"
	"sync"

	"github.com/yanun0323/logs"

	"ledger/internal/bus"
	"ledger/internal/journal"
	"ledger/internal/obs"
	"ledger/internal/schema"
)

// Journal persists notifications to journal segments. Notify only enqueues,
// so a slow disk never holds an operation; a full queue is reported as an
// error and counted as a drop.
type Journal struct {
	queue  *bus.Queue
	writer *journal.Writer

	once sync.Once
	done chan struct{}
}

// NewJournal starts the writer and the goroutine feeding it.
func NewJournal(cfg journal.Config, source uint16, metrics *obs.Metrics) (*Journal, error) {
	w, err := journal.NewWriter(cfg, source)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = journal.DefaultConfig(cfg.Dir).QueueSize
	}
	j := &Journal{
		queue:  bus.NewQueue(queueSize, metrics),
		writer: w,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		j.queue.Run(ctx, func(n schema.Notification) {
			if err := w.AppendNotification(ctx, n); err != nil {
				logs.Errorf("journal append seq %d: %+v", n.Seq, err)
			}
		})
	}()
	return j, nil
}

func (j *Journal) Notify(_ context.Context, n schema.Notification) error {
	return j.queue.TryPublish(n)
}

// Written returns the number of notifications written to segments.
func (j *Journal) Written() uint64 {
	return j.writer.Written()
}

// Close drains the queue into the writer and closes it.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		j.queue.Close()
		<-j.done
		err = j.writer.Close()
	})
	return err
}
