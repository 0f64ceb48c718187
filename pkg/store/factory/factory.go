// Package factory opens the storage adapter named by the configuration.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kass/go-geo-cellindex/pkg/config"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/store"
	"github.com/kass/go-geo-cellindex/pkg/store/gormstore"
	"github.com/kass/go-geo-cellindex/pkg/store/memory"
	"github.com/kass/go-geo-cellindex/pkg/store/postgres"
	"github.com/kass/go-geo-cellindex/pkg/store/redisstore"
)

// Open returns the index configured in cfg.Storage. Closing the returned
// index releases connections, and for the memory driver with a snapshot
// file, writes the snapshot.
func Open(ctx context.Context, cfg config.Config) (store.RangeIndex, error) {
	log := logging.GetLoggerFromContext(ctx)
	log.Debug().Str("driver", cfg.Storage.Driver).Msg("opening storage")

	switch cfg.Storage.Driver {
	case config.DriverMemory, "":
		return openMemory(ctx, cfg.Storage.Snapshot)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.Storage.DSN, cfg.Schema())
	case config.DriverGormSQLite:
		return gormstore.New(ctx, gormstore.NewSQLiteConnector(ctx, cfg.Storage.DSN), cfg.Schema())
	case config.DriverGormPostgres:
		return gormstore.New(ctx, gormstore.NewPostgreSQLConnector(ctx, cfg.Storage.DSN), cfg.Schema())
	case config.DriverRedis:
		r := cfg.Storage.Redis
		return redisstore.New(ctx, redisstore.OpenRedis(r.Addr, r.Password, r.DB), r.Prefix)
	}
	return nil, errs.InvalidArgument("storage.driver", "unknown driver %q", cfg.Storage.Driver)
}

// snapshotIndex is a memory index that is restored from and saved to a file.
type snapshotIndex struct {
	*memory.Index
	filename string
}

func (s *snapshotIndex) Close() error {
	if err := s.SaveToFile(s.filename); err != nil {
		return err
	}
	return s.Index.Close()
}

func openMemory(ctx context.Context, filename string) (store.RangeIndex, error) {
	idx := memory.New()
	if filename == "" {
		return idx, nil
	}

	log := logging.GetLoggerFromContext(ctx)

	if _, err := os.Stat(filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("snapshot", filename).Msg("snapshot not found, starting empty")
			return &snapshotIndex{Index: idx, filename: filename}, nil
		}
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	if err := idx.LoadFromFile(filename); err != nil {
		return nil, err
	}
	n, _ := idx.Count(ctx)
	log.Info().Str("snapshot", filename).Int64("locations", n).Msg("snapshot restored")
	return &snapshotIndex{Index: idx, filename: filename}, nil
}
