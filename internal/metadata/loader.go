package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
)

// Querier is the subset of database/sql the loader needs; both *sql.DB and
// *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadAll reads all table definitions from the database and populates the
// registry.
func LoadAll(ctx context.Context, db Querier, reg *Registry) error {
	tables, err := loadTables(ctx, db)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	reg.Load(tables)
	log.Printf("Loaded %d tables into registry", len(tables))
	return nil
}

// Reload is an alias for LoadAll, called after schema mutations.
func Reload(ctx context.Context, db Querier, reg *Registry) error {
	return LoadAll(ctx, db, reg)
}

func loadTables(ctx context.Context, db Querier) ([]*Table, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name, definition FROM _tables ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []*Table
	for rows.Next() {
		var id, name string
		var defJSON []byte
		if err := rows.Scan(&id, &name, &defJSON); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}

		var table Table
		if err := json.Unmarshal(defJSON, &table); err != nil {
			log.Printf("WARN: skipping table %s (invalid JSON): %v", name, err)
			continue
		}
		table.ID = id
		table.Name = name
		tables = append(tables, &table)
	}
	return tables, rows.Err()
}
