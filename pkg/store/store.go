// Package store defines the contract between the location service and the
// storage engines that keep points indexed by cell key.
package store

import (
	"context"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

// RangeIndex stores locations together with their cell key and answers
// key-range and bounding-box scans.
//
// Implementations must be safe for concurrent use. Failures of the
// underlying engine are reported wrapped in errs.ErrStorageUnavailable;
// an empty result is not an error.
type RangeIndex interface {
	// Insert encodes and stores a single location.
	Insert(ctx context.Context, loc models.Location) (models.StoredLocation, error)
	// InsertBatch validates every location before writing any of them and
	// commits the batch atomically. Results are in input order.
	InsertBatch(ctx context.Context, locs []models.Location) ([]models.StoredLocation, error)
	// ScanRange returns the locations whose key lies in r, ordered by
	// (key, id).
	ScanRange(ctx context.Context, r cell.Range, page models.Page) ([]models.StoredLocation, error)
	// ScanBoundingBox returns the locations inside box, ordered by id.
	ScanBoundingBox(ctx context.Context, box models.BoundingBox, page models.Page) ([]models.StoredLocation, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Encode validates locs and computes their keys. It fails on the first
// invalid location, so callers can reject a batch before touching storage.
func Encode(locs []models.Location) ([]cell.ID, error) {
	keys := make([]cell.ID, len(locs))
	for i, loc := range locs {
		id, err := loc.CellID()
		if err != nil {
			return nil, err
		}
		keys[i] = id
	}
	return keys, nil
}

// SortableKey maps a cell key onto a signed 64-bit column value. Flipping the
// sign bit keeps the order of keys intact under signed comparison.
func SortableKey(id cell.ID) int64 {
	return int64(uint64(id) ^ 1<<63)
}

// FromSortableKey reverses SortableKey.
func FromSortableKey(v int64) cell.ID {
	return cell.ID(uint64(v) ^ 1<<63)
}
