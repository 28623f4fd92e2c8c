package cli

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/factrun/domain/state"
	"github.com/felixgeelhaar/factrun/infrastructure/config"
	"github.com/felixgeelhaar/factrun/infrastructure/storage/badger"
	"github.com/felixgeelhaar/factrun/infrastructure/storage/memory"
	"github.com/felixgeelhaar/factrun/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/factrun/infrastructure/storage/redis"
	"github.com/felixgeelhaar/factrun/infrastructure/storage/sqlite"
)

// openStore builds the state store the runfile selects. The returned closer
// releases backend resources; for memory it is a no-op.
func openStore(ctx context.Context, section config.StoreSection) (state.Store, func() error, error) {
	switch section.Backend {
	case "", "memory":
		return memory.NewStore(), func() error { return nil }, nil

	case "sqlite":
		cfg := sqlite.DefaultConfig()
		if section.SQLite.DSN != "" {
			cfg.DSN = section.SQLite.DSN
		}
		store, err := sqlite.NewStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "badger":
		cfg := badger.DefaultConfig()
		cfg.Dir = section.Badger.Dir
		cfg.InMemory = section.Badger.InMemory
		store, err := badger.NewStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "redis":
		opts := []redis.ConfigOption{}
		if section.Redis.Address != "" {
			opts = append(opts, redis.WithAddress(section.Redis.Address))
		}
		if section.Redis.Password != "" {
			opts = append(opts, redis.WithPassword(section.Redis.Password))
		}
		if section.Redis.DB != 0 {
			opts = append(opts, redis.WithDB(section.Redis.DB))
		}
		if section.Redis.KeyPrefix != "" {
			opts = append(opts, redis.WithKeyPrefix(section.Redis.KeyPrefix))
		}
		store, err := redis.NewStore(ctx, redis.DefaultConfig(), opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "postgres":
		opts := []postgres.ConfigOption{}
		if section.Postgres.Host != "" {
			opts = append(opts, postgres.WithHost(section.Postgres.Host))
		}
		if section.Postgres.Port != 0 {
			opts = append(opts, postgres.WithPort(section.Postgres.Port))
		}
		if section.Postgres.Database != "" {
			opts = append(opts, postgres.WithDatabase(section.Postgres.Database))
		}
		if section.Postgres.User != "" {
			opts = append(opts, postgres.WithCredentials(section.Postgres.User, section.Postgres.Password))
		}
		if section.Postgres.SSLMode != "" {
			opts = append(opts, postgres.WithSSLMode(section.Postgres.SSLMode))
		}
		if section.Postgres.Schema != "" {
			opts = append(opts, postgres.WithSchema(section.Postgres.Schema))
		}
		store, err := postgres.ConnectStore(ctx, postgres.DefaultConfig(), opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { store.Close(); return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", section.Backend)
	}
}
