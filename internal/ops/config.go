package ops

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"ledger/internal/calc"
	"ledger/internal/clock"
	"ledger/internal/journal"
	"ledger/internal/ledger"
	"ledger/internal/notify"
	"ledger/pkg/conn"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

const (
	defaultSocket           = "/tmp/bankd.sock"
	defaultSnapshotInterval = time.Minute
	defaultJournalDir       = "journal"
)

// Duration accepts either a Go duration string ("1.5s") or integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// FileConfig mirrors the JSON config layout. Token amounts are whole tokens
// with up to nine decimals.
type FileConfig struct {
	Ledger    LedgerConfig       `json:"ledger"`
	Clock     ClockConfig        `json:"clock"`
	Store     StoreConfig        `json:"store"`
	Journal   JournalConfig      `json:"journal"`
	Forward   ForwardConfig      `json:"forward"`
	Server    ServerConfig       `json:"server"`
	Profiling ProfilingConfig    `json:"profiling"`
	Features  FeatureFlagsConfig `json:"features"`
}

// LedgerConfig sets the ledger limits.
type LedgerConfig struct {
	InitialReserve *decimal.Decimal `json:"initialReserve"`
	MaxDeposit     *decimal.Decimal `json:"maxDeposit"`
}

// ClockConfig defines the slot clock. Genesis is RFC 3339.
type ClockConfig struct {
	Genesis      string   `json:"genesis"`
	SlotDuration Duration `json:"slotDuration"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Backend          string      `json:"backend"`
	SnapshotPath     string      `json:"snapshotPath"`
	SnapshotInterval Duration    `json:"snapshotInterval"`
	Postgres         conn.Option `json:"postgres"`
}

// JournalConfig describes the notification journal.
type JournalConfig struct {
	Enabled            *bool    `json:"enabled"`
	Dir                string   `json:"dir"`
	SegmentMaxBytes    int64    `json:"segmentMaxBytes"`
	SegmentMaxDuration Duration `json:"segmentMaxDuration"`
	QueueSize          int      `json:"queueSize"`
	FlushInterval      Duration `json:"flushInterval"`
	SyncInterval       Duration `json:"syncInterval"`
}

// ForwardConfig describes the optional socket forwarder.
type ForwardConfig struct {
	Path         string   `json:"path"`
	WriteTimeout Duration `json:"writeTimeout"`
	MaxFailures  uint32   `json:"maxFailures"`
	OpenTimeout  Duration `json:"openTimeout"`
}

// ServerConfig describes the request socket.
type ServerConfig struct {
	Socket  string `json:"socket"`
	MaxLine int    `json:"maxLine"`
}

// ProfilingConfig enables continuous profiling when ServerAddress is set.
type ProfilingConfig struct {
	ServerAddress   string            `json:"serverAddress"`
	ApplicationName string            `json:"applicationName"`
	Tags            map[string]string `json:"tags"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	LogNotifications *bool `json:"logNotifications"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	LogNotifications bool
}

// StoreSettings is the resolved store selection.
type StoreSettings struct {
	Backend          string
	SnapshotPath     string
	SnapshotInterval time.Duration
	Postgres         conn.Option
}

// ClockSettings is the resolved clock definition.
type ClockSettings struct {
	Genesis      time.Time
	SlotDuration time.Duration
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Ledger    ledger.Config
	Clock     ClockSettings
	Store     StoreSettings
	Journal   *journal.Config
	Forward   *notify.ForwardConfig
	Server    ServerConfig
	Profiling ProfilingConfig
	Features  FeatureFlags
}

// NewClock builds the system clock from these settings.
func (c ClockSettings) NewClock() *clock.System {
	return clock.NewSystem(c.Genesis, c.SlotDuration)
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config").With("path", path)
	}
	return Parse(data)
}

// Parse resolves a JSON config document.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}
	return Resolve(cfg)
}

// Resolve applies defaults and validates cfg.
func Resolve(cfg FileConfig) (Loaded, error) {
	ledgerCfg, err := resolveLedger(cfg.Ledger)
	if err != nil {
		return Loaded{}, err
	}
	clockSettings, err := resolveClock(cfg.Clock)
	if err != nil {
		return Loaded{}, err
	}
	storeSettings, err := resolveStore(cfg.Store)
	if err != nil {
		return Loaded{}, err
	}
	journalCfg, err := resolveJournal(cfg.Journal)
	if err != nil {
		return Loaded{}, err
	}

	server := cfg.Server
	if server.Socket == "" {
		server.Socket = defaultSocket
	}
	profiling := cfg.Profiling
	if profiling.ApplicationName == "" {
		profiling.ApplicationName = "ledger.bankd"
	}

	return Loaded{
		Ledger:    ledgerCfg,
		Clock:     clockSettings,
		Store:     storeSettings,
		Journal:   journalCfg,
		Forward:   resolveForward(cfg.Forward),
		Server:    server,
		Profiling: profiling,
		Features:  resolveFeatures(cfg.Features),
	}, nil
}

func resolveLedger(cfg LedgerConfig) (ledger.Config, error) {
	out := ledger.DefaultConfig()
	if cfg.InitialReserve != nil {
		v, err := calc.ParseUnits(cfg.InitialReserve.String())
		if err != nil {
			return ledger.Config{}, errors.Wrap(err, "ledger.initialReserve")
		}
		out.InitialReserve = v
	}
	if cfg.MaxDeposit != nil {
		v, err := calc.ParseUnits(cfg.MaxDeposit.String())
		if err != nil {
			return ledger.Config{}, errors.Wrap(err, "ledger.maxDeposit")
		}
		if v == 0 {
			return ledger.Config{}, errors.New("ledger.maxDeposit must be > 0")
		}
		out.MaxDeposit = v
	}
	return out, nil
}

func resolveClock(cfg ClockConfig) (ClockSettings, error) {
	out := ClockSettings{SlotDuration: time.Duration(cfg.SlotDuration)}
	if out.SlotDuration < 0 {
		return ClockSettings{}, errors.New("clock.slotDuration must be >= 0")
	}
	if out.SlotDuration == 0 {
		out.SlotDuration = clock.DefaultSlotDuration
	}
	if cfg.Genesis != "" {
		genesis, err := time.Parse(time.RFC3339, cfg.Genesis)
		if err != nil {
			return ClockSettings{}, errors.Wrap(err, "clock.genesis")
		}
		out.Genesis = genesis.UTC()
	}
	return out, nil
}

func resolveStore(cfg StoreConfig) (StoreSettings, error) {
	out := StoreSettings{
		Backend:          strings.ToLower(cfg.Backend),
		SnapshotPath:     cfg.SnapshotPath,
		SnapshotInterval: time.Duration(cfg.SnapshotInterval),
		Postgres:         cfg.Postgres,
	}
	if out.Backend == "" {
		out.Backend = BackendMemory
	}
	switch out.Backend {
	case BackendMemory:
		if out.SnapshotInterval == 0 {
			out.SnapshotInterval = defaultSnapshotInterval
		}
		if out.SnapshotInterval < 0 {
			return StoreSettings{}, errors.New("store.snapshotInterval must be >= 0")
		}
	case BackendPostgres:
		if out.SnapshotPath != "" {
			return StoreSettings{}, errors.New("store.snapshotPath only applies to the memory backend")
		}
	default:
		return StoreSettings{}, errors.Errorf("unknown store backend: %s", cfg.Backend)
	}
	return out, nil
}

func resolveJournal(cfg JournalConfig) (*journal.Config, error) {
	if cfg.Enabled != nil && !*cfg.Enabled {
		return nil, nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = defaultJournalDir
	}
	out := journal.DefaultConfig(dir)
	if cfg.SegmentMaxBytes != 0 {
		out.SegmentMaxBytes = cfg.SegmentMaxBytes
	}
	if cfg.SegmentMaxDuration != 0 {
		out.SegmentMaxDuration = time.Duration(cfg.SegmentMaxDuration)
	}
	if cfg.QueueSize != 0 {
		out.QueueSize = cfg.QueueSize
	}
	if cfg.FlushInterval != 0 {
		out.FlushInterval = time.Duration(cfg.FlushInterval)
	}
	if cfg.SyncInterval != 0 {
		out.SyncInterval = time.Duration(cfg.SyncInterval)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func resolveForward(cfg ForwardConfig) *notify.ForwardConfig {
	if cfg.Path == "" {
		return nil
	}
	return &notify.ForwardConfig{
		Path:         cfg.Path,
		WriteTimeout: time.Duration(cfg.WriteTimeout),
		MaxFailures:  cfg.MaxFailures,
		OpenTimeout:  time.Duration(cfg.OpenTimeout),
	}
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		LogNotifications: true,
	}
	if cfg.LogNotifications != nil {
		flags.LogNotifications = *cfg.LogNotifications
	}
	return flags
}
