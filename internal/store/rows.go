package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gridbase-backend/internal/metadata"
)

// InsertRow inserts one row of data-field values keyed by field name and
// returns the new row id. Formula columns are not written here; the caller
// refreshes them afterwards.
func (s *Store) InsertRow(ctx context.Context, q Querier, table *metadata.Table, values map[string]any) (string, error) {
	id := uuid.NewString()
	pb := s.Dialect.NewParamBuilder()

	cols := []string{"id"}
	phs := []string{pb.Add(id)}
	for _, f := range table.DataFields() {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, QuoteIdent(f.Column))
		phs = append(phs, pb.Add(s.encodeFieldValue(&f, v)))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table.DBTable), strings.Join(cols, ", "), strings.Join(phs, ", "))
	if _, err := q.ExecContext(ctx, stmt, pb.Params()...); err != nil {
		return "", MapError(s.Dialect, fmt.Errorf("insert row: %w", err))
	}
	return id, nil
}

// UpdateRow updates the given data-field values of one row.
func (s *Store) UpdateRow(ctx context.Context, q Querier, table *metadata.Table, id string, values map[string]any) error {
	pb := s.Dialect.NewParamBuilder()

	var sets []string
	for _, f := range table.DataFields() {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", QuoteIdent(f.Column), pb.Add(s.encodeFieldValue(&f, v))))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = "+s.Dialect.NowExpr())

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		QuoteIdent(table.DBTable), strings.Join(sets, ", "), pb.Add(id))
	n, err := Exec(ctx, q, stmt, pb.Params()...)
	if err != nil {
		return MapError(s.Dialect, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRow removes one row.
func (s *Store) DeleteRow(ctx context.Context, q Querier, table *metadata.Table, id string) error {
	pb := s.Dialect.NewParamBuilder()
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = %s", QuoteIdent(table.DBTable), pb.Add(id))
	n, err := Exec(ctx, q, stmt, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRow reads one row with every field column aliased to its field name.
func (s *Store) GetRow(ctx context.Context, q Querier, table *metadata.Table, id string) (map[string]any, error) {
	pb := s.Dialect.NewParamBuilder()
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s",
		s.selectList(table), QuoteIdent(table.DBTable), pb.Add(id))
	row, err := QueryRow(ctx, q, stmt, pb.Params()...)
	if err != nil {
		return nil, err
	}
	s.decodeRow(table, row)
	return row, nil
}

// ListRows reads all rows of a table ordered by creation time.
func (s *Store) ListRows(ctx context.Context, q Querier, table *metadata.Table, limit, offset int) ([]map[string]any, error) {
	stmt := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at, id",
		s.selectList(table), QuoteIdent(table.DBTable))
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	rows, err := QueryRows(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.decodeRow(table, row)
	}
	return rows, nil
}

// RefreshFormulaColumn recomputes a formula column for every row (or one
// row) by running the generated expression inside an UPDATE. The expression
// comes from the formula generator and contains no bound parameters.
func (s *Store) RefreshFormulaColumn(ctx context.Context, q Querier, table *metadata.Table, column, exprSQL, rowID string) (int64, error) {
	stmt := fmt.Sprintf("UPDATE %s SET %s = %s",
		QuoteIdent(table.DBTable), QuoteIdent(column), exprSQL)
	var args []any
	if rowID != "" {
		pb := s.Dialect.NewParamBuilder()
		stmt += " WHERE id = " + pb.Add(rowID)
		args = pb.Params()
	}
	n, err := Exec(ctx, q, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("refresh formula column %s.%s: %w", table.DBTable, column, err)
	}
	return n, nil
}

func (s *Store) selectList(table *metadata.Table) string {
	parts := []string{"id", "created_at", "updated_at"}
	for _, f := range table.Fields {
		parts = append(parts, fmt.Sprintf("%s AS %s", QuoteIdent(f.Column), QuoteIdent(f.Name)))
	}
	return strings.Join(parts, ", ")
}

// encodeFieldValue converts an API value into its storage form.
func (s *Store) encodeFieldValue(f *metadata.Field, v any) any {
	if v == nil {
		return nil
	}
	if f.Type == metadata.FieldTypeMultipleSelect {
		switch vv := v.(type) {
		case []string:
			return s.Dialect.ArrayParam(vv)
		case []any:
			strs := make([]string, len(vv))
			for i, e := range vv {
				strs[i] = fmt.Sprintf("%v", e)
			}
			return s.Dialect.ArrayParam(strs)
		}
	}
	return v
}

// decodeRow converts storage forms back into API values in place.
func (s *Store) decodeRow(table *metadata.Table, row map[string]any) {
	for _, f := range table.Fields {
		v, ok := row[f.Name]
		if !ok || v == nil {
			continue
		}
		switch {
		case f.Type == metadata.FieldTypeMultipleSelect:
			if arr, err := s.Dialect.ScanArray(v); err == nil {
				row[f.Name] = arr
			}
		case f.Type == metadata.FieldTypeBoolean && s.Dialect.NeedsBoolFix():
			if n, ok := v.(int64); ok {
				row[f.Name] = n != 0
			}
		}
	}
}
