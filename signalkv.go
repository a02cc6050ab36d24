package signalkv

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dave-morgan/signalkv/config"
	"github.com/dave-morgan/signalkv/errors"
	"github.com/dave-morgan/signalkv/kvstore"
	"github.com/dave-morgan/signalkv/kvstore/badgerkv"
	"github.com/dave-morgan/signalkv/kvstore/natskv"
	"github.com/dave-morgan/signalkv/kvstore/pebblekv"
	"github.com/dave-morgan/signalkv/logging"
	"github.com/dave-morgan/signalkv/metric"
	"github.com/dave-morgan/signalkv/signalstore"
)

// System is the assembled stack: a storage client, the reactive cell store
// over it, scoped view caching, and per-application log routing.
type System struct {
	Client *kvstore.Client
	Store  *signalstore.Store
	Scopes *signalstore.ScopeRegistry
	Logs   *logging.Registry
	// Metrics is non-nil when metrics export is enabled in the config.
	Metrics *metric.MetricsRegistry

	nc *nats.Conn
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the slog logger shared by all layers. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open validates cfg and assembles a System over the configured backend.
func Open(cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "signalkv", "Open", "validate config")
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	sys := &System{}

	opener, nc, err := buildOpener(cfg, o.logger)
	if err != nil {
		return nil, err
	}
	sys.nc = nc

	sys.Client = kvstore.NewClient(opener, kvstore.WithLogger(o.logger))

	storeOpts := []signalstore.StoreOption{signalstore.WithStoreLogger(o.logger)}
	if cfg.Metrics.Enabled {
		sys.Metrics = metric.NewMetricsRegistry()
		storeOpts = append(storeOpts, signalstore.WithMetrics(sys.Metrics))
	}
	store, err := signalstore.NewStore(sys.Client, storeOpts...)
	if err != nil {
		sys.shutdown()
		return nil, err
	}
	sys.Store = store
	sys.Scopes = signalstore.NewScopeRegistry(store)

	logOpts := []logging.RegistryOption{logging.WithRegistryLogger(o.logger)}
	if sys.Metrics != nil {
		logOpts = append(logOpts, logging.WithRegistryMetrics(sys.Metrics))
	}
	sys.Logs = logging.NewRegistry(sys.Client, logOpts...)
	if cfg.AppID != "" {
		sys.Logs.SetDefaultAppID(cfg.AppID)
	}
	if cfg.LogLevel != "" {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			sys.shutdown()
			return nil, errors.WrapInvalid(err, "signalkv", "Open", "parse log level")
		}
		if level != logging.LevelOff {
			sys.Logs.Logger("").Enable(logging.Config{Level: level})
		}
	}

	return sys, nil
}

// Close flushes pending persists and releases every layer. Safe to call once.
func (s *System) Close() error {
	if s.Store != nil {
		s.Store.Flush()
	}
	if s.Logs != nil {
		s.Logs.DestroyAll()
	}
	if s.Scopes != nil {
		s.Scopes.Destroy()
	}
	return s.shutdown()
}

func (s *System) shutdown() error {
	var closeErr error
	if s.Client != nil {
		closeErr = s.Client.Close()
	}
	if s.nc != nil {
		s.nc.Close()
	}
	return closeErr
}

func buildOpener(cfg *config.Config, logger *slog.Logger) (kvstore.Opener, *nats.Conn, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return kvstore.MemoryOpener(), nil, nil

	case config.BackendPebble:
		return pebblekv.Opener(cfg.Storage.DataDir), nil, nil

	case config.BackendBadger:
		return badgerkv.Opener(cfg.Storage.DataDir), nil, nil

	case config.BackendNATS:
		natsOpts := []nats.Option{nats.Name("signalkv")}
		if cfg.Storage.NATS.MaxReconnects != 0 {
			natsOpts = append(natsOpts, nats.MaxReconnects(cfg.Storage.NATS.MaxReconnects))
		}
		if cfg.Storage.NATS.Username != "" {
			natsOpts = append(natsOpts, nats.UserInfo(cfg.Storage.NATS.Username, cfg.Storage.NATS.Password))
		}
		if cfg.Storage.NATS.Token != "" {
			natsOpts = append(natsOpts, nats.Token(cfg.Storage.NATS.Token))
		}
		natsOpts = append(natsOpts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}))

		nc, err := nats.Connect(cfg.Storage.NATS.URL, natsOpts...)
		if err != nil {
			return nil, nil, errors.WrapTransient(err, "signalkv", "Open", "connect to nats")
		}

		engineOpts := natskv.DefaultOptions()
		if cfg.Storage.NATS.BucketPrefix != "" {
			engineOpts.BucketPrefix = cfg.Storage.NATS.BucketPrefix
		}
		if cfg.Storage.NATS.Timeout != 0 {
			engineOpts.Timeout = time.Duration(cfg.Storage.NATS.Timeout)
		}
		return natskv.Opener(nc, engineOpts), nc, nil

	default:
		return nil, nil, errors.WrapInvalid(errors.ErrInvalidConfig, "signalkv", "Open", "resolve storage backend")
	}
}
