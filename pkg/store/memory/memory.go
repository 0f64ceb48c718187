// Package memory implements store.RangeIndex in process: a B-tree ordered by
// (cell key, id) serves range scans and a partitioned R-tree serves
// bounding-box scans.
package memory

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store"
)

const btreeDegree = 32

// ErrClosed is returned, wrapped in errs.ErrStorageUnavailable, by every
// operation on a closed index.
var ErrClosed = errors.New("memory index is closed")

var _ store.RangeIndex = (*Index)(nil)

func lessByKey(a, b models.StoredLocation) bool {
	if a.CellID != b.CellID {
		return a.CellID < b.CellID
	}
	return a.ID < b.ID
}

// Index is a thread-safe in-memory location index.
type Index struct {
	mu     sync.RWMutex
	byKey  *btree.BTreeG[models.StoredLocation]
	area   *areaIndex
	lastID int64
	closed bool
}

// New creates an index whose R-tree is split into one partition per CPU.
func New() *Index {
	return NewWithPartitions(runtime.NumCPU())
}

// NewWithPartitions creates an index with the given number of R-tree
// partitions.
func NewWithPartitions(numPartitions int) *Index {
	return &Index{
		byKey: btree.NewG(btreeDegree, lessByKey),
		area:  newAreaIndex(numPartitions),
	}
}

func (m *Index) Insert(ctx context.Context, loc models.Location) (models.StoredLocation, error) {
	stored, err := m.InsertBatch(ctx, []models.Location{loc})
	if err != nil {
		return models.StoredLocation{}, err
	}
	return stored[0], nil
}

func (m *Index) InsertBatch(ctx context.Context, locs []models.Location) ([]models.StoredLocation, error) {
	keys, err := store.Encode(locs)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errs.Storage("insert", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Storage("insert", err)
	}

	stored := make([]models.StoredLocation, len(locs))
	for i, loc := range locs {
		m.lastID++
		stored[i] = models.StoredLocation{ID: m.lastID, Location: loc, CellID: keys[i]}
		m.put(stored[i])
	}
	return stored, nil
}

func (m *Index) put(loc models.StoredLocation) {
	m.byKey.ReplaceOrInsert(loc)
	m.area.insert(loc)
	m.lastID = max(m.lastID, loc.ID)
}

func (m *Index) ScanRange(ctx context.Context, r cell.Range, page models.Page) ([]models.StoredLocation, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errs.Storage("scan range", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Storage("scan range", err)
	}

	results := []models.StoredLocation{}
	skipped := 0
	m.byKey.AscendGreaterOrEqual(models.StoredLocation{CellID: r.Min}, func(item models.StoredLocation) bool {
		if item.CellID > r.Max {
			return false
		}
		if skipped < page.Offset {
			skipped++
			return true
		}
		results = append(results, item)
		return page.Limit <= 0 || len(results) < page.Limit
	})
	return results, nil
}

func (m *Index) ScanBoundingBox(ctx context.Context, box models.BoundingBox, page models.Page) ([]models.StoredLocation, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errs.Storage("scan bounding box", ErrClosed)
	}

	results, err := m.area.search(ctx, box)
	if err != nil {
		return nil, errs.Storage("scan bounding box", err)
	}

	slices.SortFunc(results, func(a, b models.StoredLocation) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if results == nil {
		results = []models.StoredLocation{}
	}
	return models.Paginate(results, page), nil
}

func (m *Index) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, errs.Storage("count", ErrClosed)
	}
	return int64(m.byKey.Len()), nil
}

// Clear removes every location. Identifiers keep increasing.
func (m *Index) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byKey.Clear(false)
	m.area.clear()
}

func (m *Index) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
