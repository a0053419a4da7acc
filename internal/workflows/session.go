package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/configs"
	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/keycodec"
	"github.com/PolarWolf314/keysync/internal/keymanager"
	"github.com/PolarWolf314/keysync/internal/keystore"
	logger "github.com/PolarWolf314/keysync/internal/logging"
)

// Session is a key manager wired to the configured store and remote.
type Session struct {
	Config  *configs.Config
	Store   keystore.Store
	Manager *keymanager.Manager

	// Client is nil when no remote is configured.
	Client *cloud.Client
}

// SessionOptions configures Open.
type SessionOptions struct {
	Config *configs.Config
	Logger logger.Logger

	// Backend replaces the backend built from [remote]. Used by tests and
	// by callers that already hold a backend.
	Backend cloud.Backend
}

// Open builds the store, remote, codec and manager described by the config.
// The caller must Close the session.
func Open(ctx context.Context, opts SessionOptions) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = configs.DefaultConfig()
	}
	log := opts.Logger

	codec, err := keycodec.ForCurve(cfg.Key.Curve)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrInvalidConfig, err)
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend, err = OpenBackend(ctx, cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	s := &Session{Config: cfg, Store: store}

	var remote keymanager.RemoteSyncClient = cloud.Offline{}
	if backend != nil {
		replica, ok := store.(keystore.Replica)
		if !ok {
			_ = store.Close()
			_ = backend.Close()
			return nil, fmt.Errorf("%w: store driver %q cannot sync", kerrors.ErrInvalidConfig, cfg.Store.Driver)
		}
		s.Client = cloud.NewClient(backend, replica, cfg.Account(),
			cloud.WithGracePeriod(cfg.Sync.GracePeriod.Duration),
			cloud.WithPollInterval(cfg.Sync.PollInterval.Duration),
			cloud.WithLogger(log.Named("cloud")),
		)
		remote = s.Client
		log.Debugf("Syncing account %s through %s remote", cfg.Account(), cfg.Remote.Driver)
	}

	s.Manager = keymanager.New(store, remote,
		keymanager.WithCodec(codec),
		keymanager.WithLogger(log.Named("keymanager")),
		keymanager.WithRetryPolicy(cloud.RetryPolicy{
			MaxAttempts: cfg.Sync.StatusAttempts,
			Backoff:     cfg.Sync.StatusBackoff.Duration,
		}),
	)
	return s, nil
}

// Close releases the store and the remote.
func (s *Session) Close() error {
	var firstErr error
	if s.Client != nil {
		if err := s.Client.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Mirror pushes local changes and pulls the remote zone so records and
// tombstones from other devices reach a store that already holds keys. An
// empty store is left to the manager, which waits for the remote itself.
// Only local failures are returned.
func (s *Session) Mirror(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	records, err := s.Store.FetchAllSortedByCreation(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	_, err = s.Client.Mirror(ctx)
	return err
}

// Account returns the remote account, or "" when offline.
func (s *Session) Account() string {
	if s.Client == nil {
		return ""
	}
	return s.Client.Account()
}

// OpenStore opens the local store named by [store] driver.
func OpenStore(ctx context.Context, cfg *configs.Config, log logger.Logger) (keystore.Store, error) {
	storeLog := keystore.WithLogger(log.Named("keystore"))

	switch cfg.Store.Driver {
	case configs.StoreMemory:
		log.Debugf("Using in-memory key store")
		return keystore.NewMemoryStore(storeLog), nil
	case configs.StoreFile:
		path := cfg.StorePath()
		if path == "" {
			return nil, fmt.Errorf("%w: no store path and no user data directory", kerrors.ErrInvalidConfig)
		}
		log.Debugf("Using file key store at %s", path)
		return keystore.OpenFileStore(path, storeLog)
	case configs.StorePostgres:
		dsn := cfg.DatabaseURL()
		if dsn == "" {
			return nil, fmt.Errorf("%w: postgres store needs [store] dsn or %s", kerrors.ErrInvalidConfig, configs.DatabaseURLEnv)
		}
		log.Debugf("Using postgres key store")
		pool, err := keystore.NewPostgresPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		store, err := keystore.OpenPostgresStore(ctx, pool, storeLog)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: store driver %q", kerrors.ErrUnknownDriver, cfg.Store.Driver)
	}
}

// OpenBackend connects to the backend named by [remote] driver. It returns
// a nil backend for driver "none".
func OpenBackend(ctx context.Context, cfg *configs.Config) (cloud.Backend, error) {
	switch cfg.Remote.Driver {
	case configs.RemoteNone:
		return nil, nil
	case configs.RemoteRedis:
		client, err := cloud.NewRedisClient(ctx, cloud.RedisOptions{
			Addr:     cfg.Remote.Addr,
			Password: cfg.Remote.Password,
			DB:       cfg.Remote.DB,
			Timeout:  cfg.Remote.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		return cloud.NewRedisBackend(client, cloud.DefaultRedisPrefix), nil
	case configs.RemoteHTTP:
		backend, err := cloud.NewHTTPBackend(cfg.Remote.Addr, cfg.Remote.Timeout.Duration)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("%w: remote driver %q", kerrors.ErrUnknownDriver, cfg.Remote.Driver)
	}
}
