// Package redisstore implements store.RangeIndex on Redis sorted sets.
//
// Every location is a member of two sorted sets. In the cells set all scores
// are zero and members start with the fixed-width hex cell key, so a key
// range is a ZRANGEBYLEX. In the ids set the score is the location id, which
// gives bounding-box scans their id order.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/geo"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store"
)

var _ store.RangeIndex = (*Index)(nil)

// OpenRedis returns a client for addr, or nil when addr is empty
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

type Index struct {
	rdb    *redis.Client
	seqKey string
	cells  string
	ids    string
}

// New checks the connection and returns an index whose keys start with
// prefix.
func New(ctx context.Context, rdb *redis.Client, prefix string) (*Index, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.Storage("ping redis", err)
	}
	return &Index{
		rdb:    rdb,
		seqKey: prefix + ":seq",
		cells:  prefix + ":cells",
		ids:    prefix + ":ids",
	}, nil
}

func member(loc models.StoredLocation) string {
	return fmt.Sprintf("%016x:%016x:%s:%s", uint64(loc.CellID), loc.ID,
		strconv.FormatFloat(loc.Location.Lat, 'g', -1, 64),
		strconv.FormatFloat(loc.Location.Lon, 'g', -1, 64))
}

func parseMember(m string) (models.StoredLocation, error) {
	parts := strings.Split(m, ":")
	if len(parts) != 4 {
		return models.StoredLocation{}, fmt.Errorf("malformed member %q", m)
	}

	key, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return models.StoredLocation{}, fmt.Errorf("malformed key in %q: %w", m, err)
	}
	id, err := strconv.ParseInt(parts[1], 16, 64)
	if err != nil {
		return models.StoredLocation{}, fmt.Errorf("malformed id in %q: %w", m, err)
	}
	lat, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return models.StoredLocation{}, fmt.Errorf("malformed latitude in %q: %w", m, err)
	}
	lon, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return models.StoredLocation{}, fmt.Errorf("malformed longitude in %q: %w", m, err)
	}

	return models.StoredLocation{
		ID:       id,
		Location: models.Location{Lat: lat, Lon: lon},
		CellID:   cell.ID(key),
	}, nil
}

// lexBounds returns the ZRANGEBYLEX bounds selecting every member whose key
// lies in r. ';' sorts right after ':'.
func lexBounds(r cell.Range) (string, string) {
	return fmt.Sprintf("[%016x:", uint64(r.Min)), fmt.Sprintf("(%016x;", uint64(r.Max))
}

func (x *Index) Insert(ctx context.Context, loc models.Location) (models.StoredLocation, error) {
	stored, err := x.InsertBatch(ctx, []models.Location{loc})
	if err != nil {
		return models.StoredLocation{}, err
	}
	return stored[0], nil
}

// InsertBatch reserves a block of ids and adds every location in a single
// MULTI/EXEC transaction.
func (x *Index) InsertBatch(ctx context.Context, locs []models.Location) ([]models.StoredLocation, error) {
	keys, err := store.Encode(locs)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return []models.StoredLocation{}, nil
	}

	last, err := x.rdb.IncrBy(ctx, x.seqKey, int64(len(locs))).Result()
	if err != nil {
		return nil, errs.Storage("reserve ids", err)
	}
	first := last - int64(len(locs)) + 1

	stored := make([]models.StoredLocation, len(locs))
	byCell := make([]redis.Z, len(locs))
	byID := make([]redis.Z, len(locs))
	for i, loc := range locs {
		stored[i] = models.StoredLocation{ID: first + int64(i), Location: loc, CellID: keys[i]}
		m := member(stored[i])
		byCell[i] = redis.Z{Score: 0, Member: m}
		byID[i] = redis.Z{Score: float64(stored[i].ID), Member: m}
	}

	_, err = x.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, x.cells, byCell...)
		pipe.ZAdd(ctx, x.ids, byID...)
		return nil
	})
	if err != nil {
		return nil, errs.Storage("insert batch", err)
	}
	return stored, nil
}

func (x *Index) ScanRange(ctx context.Context, r cell.Range, page models.Page) ([]models.StoredLocation, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	lo, hi := lexBounds(r)
	by := &redis.ZRangeBy{Min: lo, Max: hi}
	if page.Limit > 0 || page.Offset > 0 {
		by.Offset = int64(page.Offset)
		by.Count = -1
		if page.Limit > 0 {
			by.Count = int64(page.Limit)
		}
	}

	members, err := x.rdb.ZRangeByLex(ctx, x.cells, by).Result()
	if err != nil {
		return nil, errs.Storage("scan range", err)
	}
	return parseAll(members, "scan range")
}

// ScanBoundingBox walks the whole ids set and keeps the matching locations.
func (x *Index) ScanBoundingBox(ctx context.Context, box models.BoundingBox, page models.Page) ([]models.StoredLocation, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	members, err := x.rdb.ZRange(ctx, x.ids, 0, -1).Result()
	if err != nil {
		return nil, errs.Storage("scan bounding box", err)
	}

	all, err := parseAll(members, "scan bounding box")
	if err != nil {
		return nil, err
	}
	return models.Paginate(geo.Filter(all, box), page), nil
}

func parseAll(members []string, op string) ([]models.StoredLocation, error) {
	results := make([]models.StoredLocation, 0, len(members))
	for _, m := range members {
		loc, err := parseMember(m)
		if err != nil {
			return nil, errs.Storage(op, err)
		}
		results = append(results, loc)
	}
	return results, nil
}

func (x *Index) Count(ctx context.Context) (int64, error) {
	n, err := x.rdb.ZCard(ctx, x.cells).Result()
	if err != nil {
		return 0, errs.Storage("count", err)
	}
	return n, nil
}

// Drop deletes every key owned by the index.
func (x *Index) Drop(ctx context.Context) error {
	if err := x.rdb.Del(ctx, x.seqKey, x.cells, x.ids).Err(); err != nil {
		return errs.Storage("drop", err)
	}
	return nil
}

func (x *Index) Close() error {
	return x.rdb.Close()
}
