// Package gormstore implements store.RangeIndex with GORM, on SQLite or on
// PostgreSQL.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store"
)

const createBatchSize = 1000

var _ store.RangeIndex = (*Index)(nil)

type locationRecord struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	Latitude  float64 `gorm:"not null"`
	Longitude float64 `gorm:"not null"`
	CellKey   int64   `gorm:"not null"`
}

func (r locationRecord) toModel() models.StoredLocation {
	return models.StoredLocation{
		ID:       r.ID,
		Location: models.Location{Lat: r.Latitude, Lon: r.Longitude},
		CellID:   store.FromSortableKey(r.CellKey),
	}
}

type ConnectorFunc func() (*gorm.DB, error)

// NewSQLiteConnector opens the SQLite database at path. Use "file::memory:"
// for a private in-memory database.
func NewSQLiteConnector(ctx context.Context, path string) ConnectorFunc {
	log := logging.GetLoggerFromContext(ctx)

	return func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger:          newLogger(log),
			CreateBatchSize: createBatchSize,
		})

		if err == nil {
			sqldb, _ := db.DB()
			sqldb.SetMaxOpenConns(1)
		}

		return db, err
	}
}

func NewPostgreSQLConnector(ctx context.Context, dsn string) ConnectorFunc {
	log := logging.GetLoggerFromContext(ctx)

	return func() (*gorm.DB, error) {
		log.Info().Msg("connecting to database host")
		return gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:          newLogger(log),
			CreateBatchSize: createBatchSize,
		})
	}
}

type Index struct {
	db     *gorm.DB
	schema store.Schema
}

// New connects and migrates the table and indexes of schema.
func New(ctx context.Context, connect ConnectorFunc, schema store.Schema) (*Index, error) {
	db, err := connect()
	if err != nil {
		return nil, errs.Storage("open database", err)
	}

	g := &Index{db: db, schema: schema}
	if err := g.migrate(ctx); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (g *Index) migrate(ctx context.Context) error {
	db := g.db.WithContext(ctx)

	if err := db.Table(g.schema.Table).AutoMigrate(&locationRecord{}); err != nil {
		return errs.Storage("migrate table", err)
	}
	for _, stmt := range g.schema.CreateIndexStatements() {
		if err := db.Exec(stmt).Error; err != nil {
			return errs.Storage(fmt.Sprintf("execute %q", stmt), err)
		}
	}
	return nil
}

func (g *Index) table(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx).Table(g.schema.Table)
}

func (g *Index) Insert(ctx context.Context, loc models.Location) (models.StoredLocation, error) {
	stored, err := g.InsertBatch(ctx, []models.Location{loc})
	if err != nil {
		return models.StoredLocation{}, err
	}
	return stored[0], nil
}

func (g *Index) InsertBatch(ctx context.Context, locs []models.Location) ([]models.StoredLocation, error) {
	keys, err := store.Encode(locs)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return []models.StoredLocation{}, nil
	}

	records := make([]locationRecord, len(locs))
	for i, loc := range locs {
		records[i] = locationRecord{Latitude: loc.Lat, Longitude: loc.Lon, CellKey: store.SortableKey(keys[i])}
	}

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(g.schema.Table).CreateInBatches(&records, createBatchSize).Error
	})
	if err != nil {
		return nil, errs.Storage("insert batch", err)
	}

	stored := make([]models.StoredLocation, len(records))
	for i, r := range records {
		stored[i] = r.toModel()
	}
	return stored, nil
}

func (g *Index) ScanRange(ctx context.Context, r cell.Range, page models.Page) ([]models.StoredLocation, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	q := g.table(ctx).
		Where("cell_key BETWEEN ? AND ?", store.SortableKey(r.Min), store.SortableKey(r.Max)).
		Order("cell_key, id")

	return g.find(paginate(q, page), "scan range")
}

func (g *Index) ScanBoundingBox(ctx context.Context, box models.BoundingBox, page models.Page) ([]models.StoredLocation, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	q := g.table(ctx).Where("latitude BETWEEN ? AND ?", box.BottomLeft.Lat, box.TopRight.Lat)
	if box.WrapsAntimeridian() {
		q = q.Where("(longitude >= ? OR longitude <= ?)", box.BottomLeft.Lon, box.TopRight.Lon)
	} else {
		q = q.Where("longitude BETWEEN ? AND ?", box.BottomLeft.Lon, box.TopRight.Lon)
	}

	return g.find(paginate(q.Order("id"), page), "scan bounding box")
}

func paginate(q *gorm.DB, page models.Page) *gorm.DB {
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}
	return q
}

func (g *Index) find(q *gorm.DB, op string) ([]models.StoredLocation, error) {
	var records []locationRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, errs.Storage(op, err)
	}

	results := make([]models.StoredLocation, len(records))
	for i, r := range records {
		results[i] = r.toModel()
	}
	return results, nil
}

func (g *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := g.table(ctx).Count(&count).Error; err != nil {
		return 0, errs.Storage("count", err)
	}
	return count, nil
}

func (g *Index) Close() error {
	sqldb, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

// logadapter provides a Printf interface to the gorm logger
// so that we can forward the log data to zerolog
type logadapter struct {
	logger zerolog.Logger
}

func (adapter *logadapter) Printf(format string, args ...interface{}) {
	adapter.logger.Debug().Msgf(format, args...)
}

func newLogger(log zerolog.Logger) logger.Interface {
	return logger.New(
		&logadapter{logger: log},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
