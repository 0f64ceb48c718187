package memory

import (
	"fmt"

	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/snapshot"
)

// indexData is the serializable form of the index
type indexData struct {
	Locations []models.StoredLocation
	LastID    int64
}

// SaveToFile writes every stored location, identifiers included, to a
// compressed snapshot.
func (m *Index) SaveToFile(filename string) error {
	m.mu.RLock()
	data := indexData{
		Locations: make([]models.StoredLocation, 0, m.byKey.Len()),
		LastID:    m.lastID,
	}
	m.byKey.Ascend(func(item models.StoredLocation) bool {
		data.Locations = append(data.Locations, item)
		return true
	})
	m.mu.RUnlock()

	if err := snapshot.SaveToFile(filename, data); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

// LoadFromFile replaces the content of the index with a snapshot written by
// SaveToFile.
func (m *Index) LoadFromFile(filename string) error {
	var data indexData
	if err := snapshot.LoadFromFile(filename, &data); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byKey.Clear(false)
	m.area.clear()
	for _, loc := range data.Locations {
		m.put(loc)
	}
	m.lastID = max(m.lastID, data.LastID)
	return nil
}
