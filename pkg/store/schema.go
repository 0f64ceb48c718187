package store

import (
	"fmt"
	"strings"
)

// IndexDefinition names a secondary index and the columns it covers.
type IndexDefinition struct {
	Name    string
	Columns []string
}

// Schema describes the persisted layout of locations. SQL engines create the
// table and every listed index when they are opened.
type Schema struct {
	Table   string
	Indexes []IndexDefinition
}

// DefaultSchema is the t_location layout: one index on the cell key for range
// scans and one composite index on latitude and longitude for box scans.
var DefaultSchema = Schema{
	Table: "t_location",
	Indexes: []IndexDefinition{
		{Name: "idx_location_cell_key", Columns: []string{"cell_key"}},
		{Name: "idx_location_lat_lng", Columns: []string{"latitude", "longitude"}},
	},
}

// CreateIndexStatements renders one CREATE INDEX statement per definition.
func (s Schema) CreateIndexStatements() []string {
	stmts := make([]string, 0, len(s.Indexes))
	for _, idx := range s.Indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			idx.Name, s.Table, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}
