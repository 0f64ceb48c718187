// Package postgres implements store.RangeIndex on PostgreSQL through
// database/sql and lib/pq. Cell keys live in a BIGINT column as
// store.SortableKey values.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store"
)

var _ store.RangeIndex = (*Index)(nil)

type Index struct {
	db     *sql.DB
	schema store.Schema
}

// New connects to dsn and creates the table and indexes of schema when they
// are missing.
func New(ctx context.Context, dsn string, schema store.Schema) (*Index, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Storage("open database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Storage("ping database", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	p := &Index{db: db, schema: schema}
	if err := p.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// InitSchema creates the necessary tables and indexes
func (p *Index) InitSchema(ctx context.Context) error {
	log := logging.GetLoggerFromContext(ctx)
	start := time.Now()

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			cell_key BIGINT NOT NULL
		)`, p.schema.Table),
	}
	queries = append(queries, p.schema.CreateIndexStatements()...)

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return errs.Storage(fmt.Sprintf("execute %q", query), err)
		}
	}

	log.Debug().Str("table", p.schema.Table).Dur("elapsed", time.Since(start)).Msg("schema ready")
	return nil
}

func (p *Index) Insert(ctx context.Context, loc models.Location) (models.StoredLocation, error) {
	stored, err := p.InsertBatch(ctx, []models.Location{loc})
	if err != nil {
		return models.StoredLocation{}, err
	}
	return stored[0], nil
}

// InsertBatch writes every location in one transaction
func (p *Index) InsertBatch(ctx context.Context, locs []models.Location) ([]models.StoredLocation, error) {
	keys, err := store.Encode(locs)
	if err != nil {
		return nil, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Storage("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (latitude, longitude, cell_key) VALUES ($1, $2, $3) RETURNING id`, p.schema.Table))
	if err != nil {
		return nil, errs.Storage("prepare insert", err)
	}
	defer stmt.Close()

	stored := make([]models.StoredLocation, len(locs))
	for i, loc := range locs {
		var id int64
		if err := stmt.QueryRowContext(ctx, loc.Lat, loc.Lon, store.SortableKey(keys[i])).Scan(&id); err != nil {
			return nil, errs.Storage("insert location", err)
		}
		stored[i] = models.StoredLocation{ID: id, Location: loc, CellID: keys[i]}
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Storage("commit batch", err)
	}
	return stored, nil
}

func (p *Index) ScanRange(ctx context.Context, r cell.Range, page models.Page) ([]models.StoredLocation, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, latitude, longitude, cell_key
		FROM %s
		WHERE cell_key BETWEEN $1 AND $2
		ORDER BY cell_key, id
		LIMIT $3 OFFSET $4
	`, p.schema.Table)

	return p.query(ctx, "scan range", query,
		store.SortableKey(r.Min), store.SortableKey(r.Max), limit(page), page.Offset)
}

func (p *Index) ScanBoundingBox(ctx context.Context, box models.BoundingBox, page models.Page) ([]models.StoredLocation, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	lonClause := "longitude BETWEEN $3 AND $4"
	if box.WrapsAntimeridian() {
		lonClause = "(longitude >= $3 OR longitude <= $4)"
	}

	query := fmt.Sprintf(`
		SELECT id, latitude, longitude, cell_key
		FROM %s
		WHERE latitude BETWEEN $1 AND $2 AND %s
		ORDER BY id
		LIMIT $5 OFFSET $6
	`, p.schema.Table, lonClause)

	return p.query(ctx, "scan bounding box", query,
		box.BottomLeft.Lat, box.TopRight.Lat,
		box.BottomLeft.Lon, box.TopRight.Lon,
		limit(page), page.Offset)
}

func (p *Index) query(ctx context.Context, op, query string, args ...any) ([]models.StoredLocation, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage(op, err)
	}
	defer rows.Close()

	results := []models.StoredLocation{}
	for rows.Next() {
		var (
			loc models.StoredLocation
			key int64
		)
		if err := rows.Scan(&loc.ID, &loc.Location.Lat, &loc.Location.Lon, &key); err != nil {
			return nil, errs.Storage(op, err)
		}
		loc.CellID = store.FromSortableKey(key)
		results = append(results, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage(op, err)
	}
	return results, nil
}

// limit maps an unlimited page onto LIMIT NULL
func limit(page models.Page) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(page.Limit), Valid: page.Limit > 0}
}

// Count returns the number of stored locations
func (p *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", p.schema.Table)).Scan(&count)
	if err != nil {
		return 0, errs.Storage("count", err)
	}
	return count, nil
}

// Stats returns table and index sizes together with the row count
func (p *Index) Stats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var tableSize, indexSize string
	err := p.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size($1::regclass)),
			pg_size_pretty(pg_indexes_size($1::regclass))
	`, p.schema.Table).Scan(&tableSize, &indexSize)
	if err != nil {
		return nil, errs.Storage("table stats", err)
	}
	stats["table_size"] = tableSize
	stats["index_size"] = indexSize

	count, err := p.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats["row_count"] = count

	return stats, nil
}

// Close closes the database connection
func (p *Index) Close() error {
	return p.db.Close()
}
