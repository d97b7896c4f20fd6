package store

import (
	"context"
	"fmt"
	"strings"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/metadata"
)

type Migrator struct {
	store *Store
}

func NewMigrator(store *Store) *Migrator {
	return &Migrator{store: store}
}

// Migrate ensures the physical data table matches the table metadata.
// Creates the table if it doesn't exist, or adds missing columns. Columns
// are never dropped here; RebuildColumn handles formula type changes.
func (m *Migrator) Migrate(ctx context.Context, table *metadata.Table) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, table.DBTable)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}

	if !exists {
		return m.createTable(ctx, table)
	}
	return m.alterTable(ctx, table)
}

func (m *Migrator) createTable(ctx context.Context, table *metadata.Table) error {
	d := m.store.Dialect

	idType := "TEXT"
	if d.Name() == "postgres" {
		idType = "UUID"
	}
	idCol := fmt.Sprintf("id %s PRIMARY KEY", idType)
	if dflt := d.UUIDDefault(); dflt != "" {
		idCol += " " + dflt
	}

	cols := []string{
		idCol,
		fmt.Sprintf("created_at %s DEFAULT (%s)", m.timestampType(), d.NowExpr()),
		fmt.Sprintf("updated_at %s DEFAULT (%s)", m.timestampType(), d.NowExpr()),
	}
	for _, f := range table.Fields {
		cols = append(cols, QuoteIdent(f.Column)+" "+m.ColumnDDLType(&f))
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", QuoteIdent(table.DBTable), strings.Join(cols, ",\n  "))
	if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table.DBTable, err)
	}
	return nil
}

func (m *Migrator) alterTable(ctx context.Context, table *metadata.Table) error {
	existing, err := m.store.Dialect.GetColumns(ctx, m.store.DB, table.DBTable)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", table.DBTable, err)
	}

	for _, f := range table.Fields {
		if _, ok := existing[f.Column]; ok {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			QuoteIdent(table.DBTable), QuoteIdent(f.Column), m.ColumnDDLType(&f))
		if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table.DBTable, f.Column, err)
		}
	}
	return nil
}

// RebuildColumn drops and re-adds a column. Used when a formula's resolved
// type changes, since neither backend alters column types portably.
func (m *Migrator) RebuildColumn(ctx context.Context, table *metadata.Table, f *metadata.Field) error {
	existing, err := m.store.Dialect.GetColumns(ctx, m.store.DB, table.DBTable)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", table.DBTable, err)
	}
	if _, ok := existing[f.Column]; ok {
		drop := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", QuoteIdent(table.DBTable), QuoteIdent(f.Column))
		if _, err := m.store.DB.ExecContext(ctx, drop); err != nil {
			return fmt.Errorf("drop column %s.%s: %w", table.DBTable, f.Column, err)
		}
	}
	add := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		QuoteIdent(table.DBTable), QuoteIdent(f.Column), m.ColumnDDLType(f))
	if _, err := m.store.DB.ExecContext(ctx, add); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table.DBTable, f.Column, err)
	}
	return nil
}

// DropColumn removes a field's column when the field is deleted.
func (m *Migrator) DropColumn(ctx context.Context, table *metadata.Table, column string) error {
	ddl := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", QuoteIdent(table.DBTable), QuoteIdent(column))
	if _, err := m.store.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("drop column %s.%s: %w", table.DBTable, column, err)
	}
	return nil
}

// ColumnDDLType returns the DDL type for a field's column. Formula columns
// store their resolved semantic type; a broken formula keeps a TEXT column
// so the row data survives until the formula is fixed.
func (m *Migrator) ColumnDDLType(f *metadata.Field) string {
	d := m.store.Dialect
	if f.Type != metadata.FieldTypeFormula {
		return d.ColumnType(f.Type, f.Precision, f.Scale, f.IncludeTime)
	}
	if f.Formula == nil {
		return d.ColumnType("text", 0, 0, false)
	}
	return m.semanticDDLType(f.Formula.Result)
}

func (m *Migrator) semanticDDLType(t formula.Type) string {
	d := m.store.Dialect
	switch t.Kind {
	case formula.KindNumber:
		return d.ColumnType("number", t.Precision, t.Scale, false)
	case formula.KindBoolean:
		return d.ColumnType("boolean", 0, 0, false)
	case formula.KindDate:
		return d.ColumnType("date", 0, 0, t.IncludeTime)
	case formula.KindArray:
		return d.ColumnType("multiple_select", 0, 0, false)
	default:
		return d.ColumnType("text", 0, 0, false)
	}
}

func (m *Migrator) timestampType() string {
	if m.store.Dialect.Name() == "postgres" {
		return "TIMESTAMPTZ"
	}
	return "TEXT"
}

// QuoteIdent quotes a table or column identifier. Both backends accept
// double-quoted identifiers.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
