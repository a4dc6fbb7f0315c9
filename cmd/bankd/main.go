package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"ledger/internal/ledger"
	"ledger/internal/notify"
	"ledger/internal/obs"
	"ledger/internal/ops"
	"ledger/internal/store"
	"ledger/pkg/conn"
	"ledger/pkg/uds"
)

const journalSource uint16 = 1

func main() {
	configPath := flag.String("config", "", "Path to JSON config (empty uses defaults)")
	socketPath := flag.String("socket", "", "Request socket path (overrides config)")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "Metrics log interval (0=disable)")
	flag.Parse()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *socketPath != "" {
		loaded.Server.Socket = *socketPath
	}

	if loaded.Profiling.ServerAddress != "" {
		profiler, err := startProfiler(loaded.Profiling)
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown requested")
		cancel()
	}()

	if err := run(ctx, loaded, *statsInterval); err != nil {
		log.Fatalf("bankd failed: %v", err)
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Parse([]byte(`{}`))
	}
	return ops.Load(path)
}

func run(ctx context.Context, cfg ops.Loaded, statsInterval time.Duration) error {
	metrics := obs.NewMetrics()

	st, snapshotter, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	sink, closeSinks, err := buildSinks(cfg, metrics)
	if err != nil {
		return err
	}
	defer closeSinks()

	engine := ledger.NewEngine(st, cfg.Clock.NewClock(),
		ledger.WithConfig(cfg.Ledger),
		ledger.WithSink(sink),
		ledger.WithMetrics(metrics),
		ledger.WithSequence(obs.NewSequence(0)),
	)

	srv, err := uds.NewServer(cfg.Server.Socket)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	logs.Infof("bankd listening on %s (store=%s)", srv.Path(), cfg.Store.Backend)

	if snapshotter != nil {
		go snapshotter.loop(ctx)
	}
	if statsInterval > 0 {
		go logStats(ctx, metrics, statsInterval)
	}

	handler := &connHandler{engine: engine, maxLine: cfg.Server.MaxLine}
	serveErr := srv.Serve(ctx, handler.serve)

	if snapshotter != nil {
		if err := snapshotter.save(); err != nil {
			logs.Errorf("final snapshot failed: %v", err)
		}
	}
	return serveErr
}

// openStore builds the configured backend. The memory backend restores the
// snapshot when one exists and returns a snapshotter for periodic saves.
func openStore(ctx context.Context, settings ops.StoreSettings) (store.Store, *snapshotter, error) {
	switch settings.Backend {
	case ops.BackendPostgres:
		client, err := conn.New(settings.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		pg, err := store.NewPostgres(ctx, client.DB())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return &pgStore{Postgres: pg, client: client}, nil, nil
	default:
		mem := store.NewMemory()
		if settings.SnapshotPath == "" {
			return mem, nil, nil
		}
		if err := restoreSnapshot(mem, settings.SnapshotPath); err != nil {
			return nil, nil, err
		}
		return mem, &snapshotter{mem: mem, path: settings.SnapshotPath, interval: settings.SnapshotInterval}, nil
	}
}

type pgStore struct {
	*store.Postgres
	client *conn.Client
}

func (s *pgStore) Close() error {
	return errors.Join(s.Postgres.Close(), s.client.Close())
}

func restoreSnapshot(mem *store.Memory, path string) error {
	snap, err := store.ReadSnapshot(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logs.Infof("no snapshot at %s, starting empty", path)
			return nil
		}
		return err
	}
	if err := mem.Restore(snap); err != nil {
		return err
	}
	logs.Infof("restored %d users from %s", len(snap.Users), path)
	return nil
}

type snapshotter struct {
	mem      *store.Memory
	path     string
	interval time.Duration
}

func (s *snapshotter) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.save(); err != nil {
				logs.Errorf("snapshot failed: %v", err)
			}
		}
	}
}

func (s *snapshotter) save() error {
	return store.WriteSnapshot(s.path, s.mem.Snapshot())
}

func buildSinks(cfg ops.Loaded, metrics *obs.Metrics) (notify.Sink, func(), error) {
	var (
		sinks   notify.Multi
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logs.Errorf("close sink: %v", err)
			}
		}
	}

	if cfg.Journal != nil {
		j, err := notify.NewJournal(*cfg.Journal, journalSource, metrics)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, j)
		closers = append(closers, j.Close)
	}
	if cfg.Forward != nil {
		f, err := notify.NewForward(*cfg.Forward)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, f)
		closers = append(closers, f.Close)
	}
	if cfg.Features.LogNotifications {
		sinks = append(sinks, notify.Log{})
	}

	if len(sinks) == 0 {
		return notify.Discard, closeAll, nil
	}
	return sinks, closeAll, nil
}

func logStats(ctx context.Context, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			var ok, failed uint64
			for _, v := range snap.Successes {
				ok += v
			}
			for _, v := range snap.Failures {
				failed += v
			}
			logs.Infof("stats ok=%d failed=%d sinkFailures=%d queueDrops=%d opAvg=%s opMax=%s",
				ok, failed, snap.SinkFailures, snap.QueueDrops, snap.OpLatency.Avg, snap.OpLatency.Max)
		}
	}
}

func startProfiler(cfg ops.ProfilingConfig) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Tags:            cfg.Tags,
		Logger:          profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{}) {
	logs.Infof(format, args...)
}

func (profilerLogger) Debugf(_ string, _ ...interface{}) {}

func (profilerLogger) Errorf(format string, args ...interface{}) {
	logs.Errorf(format, args...)
}
