package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/instrument"
	"gridbase-backend/internal/metadata"
	"gridbase-backend/internal/store"
)

// BrokenFormulaValue is what row reads return for a formula field whose
// formula does not currently resolve. The request still succeeds; the
// field-level error explains the failure.
const BrokenFormulaValue = "#ERROR!"

// Service orchestrates metadata changes against the formula pipeline: it
// computes formula artifacts, keeps physical columns in step with resolved
// types, and recomputes dependants in dependency order.
type Service struct {
	store    *store.Store
	registry *metadata.Registry
	migrator *store.Migrator
	dialect  formula.Dialect
	inst     instrument.Instrumenter
	reporter *instrument.Reporter
}

func NewService(s *store.Store, reg *metadata.Registry, inst instrument.Instrumenter, reporter *instrument.Reporter) (*Service, error) {
	d, ok := formula.DialectFor(s.Dialect.Name())
	if !ok {
		return nil, fmt.Errorf("no formula dialect for driver %q", s.Dialect.Name())
	}
	if inst == nil {
		inst = &instrument.NoopInstrumenter{}
	}
	if reporter == nil {
		reporter = &instrument.Reporter{}
	}
	return &Service{
		store:    s,
		registry: reg,
		migrator: store.NewMigrator(s),
		dialect:  d,
		inst:     inst,
		reporter: reporter,
	}, nil
}

// CreateTable persists a new table definition, creates its physical table
// and loads it into the registry.
func (svc *Service) CreateTable(ctx context.Context, name string, fields []metadata.Field) (*metadata.Table, error) {
	if svc.registry.GetTable(name) != nil {
		return nil, ConflictError(fmt.Sprintf("table %s already exists", name))
	}

	id := uuid.NewString()
	table := &metadata.Table{
		ID:      id,
		Name:    name,
		DBTable: "tbl_" + shortID(id),
	}
	for i := range fields {
		f := fields[i]
		f.ID = uuid.NewString()
		f.Column = "field_" + shortID(f.ID)
		if err := f.Validate(); err != nil {
			return nil, ValidationError([]ErrorDetail{{Field: f.Name, Message: err.Error()}})
		}
		table.Fields = append(table.Fields, f)
	}

	// Formula fields resolve against the finished field list, after cycle
	// detection over their parsed references.
	for i := range table.Fields {
		f := &table.Fields[i]
		if f.Type != metadata.FieldTypeFormula {
			continue
		}
		if err := svc.computeField(table, f); err != nil {
			return nil, err
		}
	}

	if err := svc.migrator.Migrate(ctx, table); err != nil {
		return nil, err
	}
	if err := svc.saveTableDefinition(ctx, table, true); err != nil {
		return nil, err
	}
	if err := metadata.Reload(ctx, svc.store.DB, svc.registry); err != nil {
		return nil, err
	}
	return svc.registry.GetTable(name), nil
}

// CreateField adds a field to a table, migrates the physical column, and
// fills formula columns for existing rows.
func (svc *Service) CreateField(ctx context.Context, tableName string, f metadata.Field) (*metadata.Table, error) {
	table := svc.registry.GetTable(tableName)
	if table == nil {
		return nil, UnknownTableError(tableName)
	}
	if table.HasField(f.Name) {
		return nil, ConflictError(fmt.Sprintf("field %s already exists", f.Name))
	}

	f.ID = uuid.NewString()
	f.Column = "field_" + shortID(f.ID)
	if err := f.Validate(); err != nil {
		return nil, ValidationError([]ErrorDetail{{Field: f.Name, Message: err.Error()}})
	}

	next := cloneTable(table)
	next.Fields = append(next.Fields, f)
	created := &next.Fields[len(next.Fields)-1]

	if created.Type == metadata.FieldTypeFormula {
		if err := svc.computeField(next, created); err != nil {
			return nil, err
		}
	}

	if err := svc.migrator.Migrate(ctx, next); err != nil {
		return nil, err
	}
	if err := svc.refreshField(ctx, next, created, ""); err != nil {
		return nil, err
	}

	// A formula broken by a missing field heals once that name exists.
	if err := svc.recomputeDependents(ctx, next, created.Name, created.Name); err != nil {
		return nil, err
	}
	if err := svc.saveTableDefinition(ctx, next, false); err != nil {
		return nil, err
	}
	if err := metadata.Reload(ctx, svc.store.DB, svc.registry); err != nil {
		return nil, err
	}
	return svc.registry.GetTable(tableName), nil
}

// UpdateField changes a field definition and recomputes every formula field
// that transitively depends on it.
func (svc *Service) UpdateField(ctx context.Context, tableName, fieldName string, update metadata.Field) (*metadata.Table, error) {
	table := svc.registry.GetTable(tableName)
	if table == nil {
		return nil, UnknownTableError(tableName)
	}
	existing := table.GetField(fieldName)
	if existing == nil {
		return nil, NotFoundError("field", fieldName)
	}

	next := cloneTable(table)
	f := next.GetField(fieldName)
	oldType := f.SemanticType()

	// Identity and storage column survive the update.
	update.ID = f.ID
	update.Column = f.Column
	if update.Name == "" {
		update.Name = f.Name
	}
	if err := update.Validate(); err != nil {
		return nil, ValidationError([]ErrorDetail{{Field: update.Name, Message: err.Error()}})
	}
	*f = update

	if f.Type == metadata.FieldTypeFormula {
		if err := svc.computeField(next, f); err != nil {
			return nil, err
		}
	}

	if !typesEqual(oldType, f.SemanticType()) {
		if err := svc.migrator.RebuildColumn(ctx, next, f); err != nil {
			return nil, err
		}
	}
	if err := svc.refreshField(ctx, next, f, ""); err != nil {
		return nil, err
	}

	// A rename or type change can break or retype downstream formulas.
	if err := svc.recomputeDependents(ctx, next, fieldName, update.Name); err != nil {
		return nil, err
	}

	if err := svc.saveTableDefinition(ctx, next, false); err != nil {
		return nil, err
	}
	if err := metadata.Reload(ctx, svc.store.DB, svc.registry); err != nil {
		return nil, err
	}
	return svc.registry.GetTable(tableName), nil
}

// DeleteField removes a field and its column. Formulas that referenced it
// are recomputed and end up flagged broken, never silently dropped.
func (svc *Service) DeleteField(ctx context.Context, tableName, fieldName string) (*metadata.Table, error) {
	table := svc.registry.GetTable(tableName)
	if table == nil {
		return nil, UnknownTableError(tableName)
	}
	existing := table.GetField(fieldName)
	if existing == nil {
		return nil, NotFoundError("field", fieldName)
	}

	next := cloneTable(table)
	column := existing.Column
	kept := next.Fields[:0]
	for _, f := range next.Fields {
		if f.Name != fieldName {
			kept = append(kept, f)
		}
	}
	next.Fields = kept

	if err := svc.migrator.DropColumn(ctx, next, column); err != nil {
		return nil, err
	}
	if err := svc.recomputeDependents(ctx, next, fieldName, fieldName); err != nil {
		return nil, err
	}
	if err := svc.saveTableDefinition(ctx, next, false); err != nil {
		return nil, err
	}
	if err := metadata.Reload(ctx, svc.store.DB, svc.registry); err != nil {
		return nil, err
	}
	return svc.registry.GetTable(tableName), nil
}

// ComputeType runs the pipeline over a candidate formula without saving
// anything. Used by the typing endpoint.
func (svc *Service) ComputeType(table *metadata.Table, fieldName, source string) (*formula.ComputeResult, error) {
	if err := svc.checkReferences(table, fieldName, source); err != nil {
		return nil, err
	}
	return formula.ComputeFormula(source, table.Schema(), fieldName, table.Columns(), svc.dialect)
}

// CreateRow inserts a row then fills its formula columns in dependency
// order.
func (svc *Service) CreateRow(ctx context.Context, table *metadata.Table, values map[string]any) (map[string]any, error) {
	id, err := svc.store.InsertRow(ctx, svc.store.DB, table, values)
	if err != nil {
		return nil, err
	}
	if err := svc.refreshRowFormulas(ctx, table, id); err != nil {
		return nil, err
	}
	return svc.readRow(ctx, table, id)
}

// UpdateRow updates a row then refreshes its formula columns.
func (svc *Service) UpdateRow(ctx context.Context, table *metadata.Table, id string, values map[string]any) (map[string]any, error) {
	if err := svc.store.UpdateRow(ctx, svc.store.DB, table, id, values); err != nil {
		return nil, err
	}
	if err := svc.refreshRowFormulas(ctx, table, id); err != nil {
		return nil, err
	}
	return svc.readRow(ctx, table, id)
}

func (svc *Service) DeleteRow(ctx context.Context, table *metadata.Table, id string) error {
	return svc.store.DeleteRow(ctx, svc.store.DB, table, id)
}

func (svc *Service) readRow(ctx context.Context, table *metadata.Table, id string) (map[string]any, error) {
	row, err := svc.store.GetRow(ctx, svc.store.DB, table, id)
	if err != nil {
		return nil, err
	}
	DecorateBrokenFormulas(table, row)
	return row, nil
}

// computeField runs cycle detection and the full pipeline for one formula
// field, storing the derived artifacts on the field. A formula that fails
// to type is stored broken; only hard errors abort the save.
func (svc *Service) computeField(table *metadata.Table, f *metadata.Field) error {
	if f.Formula == nil {
		return ValidationError([]ErrorDetail{{Field: f.Name, Message: "formula source is required"}})
	}
	source := f.Formula.Source
	if err := svc.checkReferences(table, f.Name, source); err != nil {
		return err
	}

	result, err := formula.ComputeFormula(source, table.Schema(), f.Name, table.Columns(), svc.dialect)
	if err != nil {
		if appErr := formulaAppError(err); appErr != nil {
			return appErr
		}
		// A typed function with no registered lowering is a bug here, not
		// bad input.
		var regErr *formula.RegistryError
		if errors.As(err, &regErr) {
			svc.reporter.Defect("function %s resolved but has no lowering", regErr.Name)
			return NewAppError("INTERNAL_ERROR", 500, "formula function registry is inconsistent")
		}
		return err
	}

	info := &metadata.FormulaInfo{
		Source:     source,
		Result:     result.Type,
		References: result.Referenced,
	}
	if result.Invalid != nil {
		info.Error = result.Invalid.Reason
	} else {
		info.SQL = result.Expression.SQL
	}
	f.Formula = info
	return nil
}

// checkReferences parses the formula's field references and rejects saves
// that would close a dependency cycle.
func (svc *Service) checkReferences(table *metadata.Table, fieldName, source string) error {
	refs, err := formula.ParseReferencedFields(source)
	if err != nil {
		if appErr := formulaAppError(err); appErr != nil {
			return appErr
		}
		return err
	}
	for _, ref := range refs {
		if strings.EqualFold(ref, fieldName) {
			selfErr := &formula.SelfReferenceError{Name: fieldName}
			return formulaAppError(selfErr)
		}
	}
	if err := checkNoCycle(table, fieldName, refs); err != nil {
		if appErr := formulaAppError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// recomputeDependents rebuilds the artifacts of every formula field that
// transitively references the changed field, in dependency order, and
// refreshes their columns.
func (svc *Service) recomputeDependents(ctx context.Context, table *metadata.Table, oldName, newName string) error {
	ctx, span := svc.inst.StartSpan(ctx, "engine", "recompute_dependents")
	defer span.End()

	for _, name := range recomputeOrder(table, oldName, newName) {
		f := table.GetField(name)
		if f == nil || f.Name == newName {
			continue
		}
		oldType := f.SemanticType()
		if err := svc.computeField(table, f); err != nil {
			return err
		}
		if !typesEqual(oldType, f.SemanticType()) {
			if err := svc.migrator.RebuildColumn(ctx, table, f); err != nil {
				return err
			}
		}
		if err := svc.refreshField(ctx, table, f, ""); err != nil {
			return err
		}
	}
	return nil
}

// refreshField recomputes a formula field's column, for one row or for the
// whole table. Broken formulas and data fields are left alone.
func (svc *Service) refreshField(ctx context.Context, table *metadata.Table, f *metadata.Field, rowID string) error {
	if f.Type != metadata.FieldTypeFormula || f.Formula == nil || f.Formula.Broken() {
		return nil
	}
	_, err := svc.store.RefreshFormulaColumn(ctx, svc.store.DB, table, f.Column, f.Formula.SQL, rowID)
	return err
}

// refreshRowFormulas fills every formula column of one row, dependency
// order first so formulas over formulas read fresh values.
func (svc *Service) refreshRowFormulas(ctx context.Context, table *metadata.Table, rowID string) error {
	for _, name := range formulaOrder(table) {
		f := table.GetField(name)
		if err := svc.refreshField(ctx, table, f, rowID); err != nil {
			return err
		}
	}
	return nil
}

// formulaOrder returns every formula field of the table in dependency
// order.
func formulaOrder(table *metadata.Table) []string {
	names := make([]string, 0, len(table.Fields))
	for _, f := range table.FormulaFields() {
		names = append(names, f.Name)
	}
	return recomputeOrder(table, names...)
}

// DecorateBrokenFormulas replaces values of broken formula fields with the
// stable error placeholder, in place.
func DecorateBrokenFormulas(table *metadata.Table, row map[string]any) {
	for _, f := range table.FormulaFields() {
		if f.Formula != nil && f.Formula.Broken() {
			row[f.Name] = BrokenFormulaValue
		}
	}
}

// saveTableDefinition upserts the table's JSON definition into the system
// catalog.
func (svc *Service) saveTableDefinition(ctx context.Context, table *metadata.Table, isNew bool) error {
	def, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal table definition: %w", err)
	}

	pb := svc.store.Dialect.NewParamBuilder()
	if isNew {
		stmt := fmt.Sprintf("INSERT INTO _tables (id, name, db_table, definition) VALUES (%s, %s, %s, %s)",
			pb.Add(table.ID), pb.Add(table.Name), pb.Add(table.DBTable), pb.Add(string(def)))
		if _, err := svc.store.DB.ExecContext(ctx, stmt, pb.Params()...); err != nil {
			return store.MapError(svc.store.Dialect, fmt.Errorf("insert table definition: %w", err))
		}
		return nil
	}

	stmt := fmt.Sprintf("UPDATE _tables SET name = %s, definition = %s, updated_at = %s WHERE id = %s",
		pb.Add(table.Name), pb.Add(string(def)), svc.store.Dialect.NowExpr(), pb.Add(table.ID))
	n, err := store.Exec(ctx, svc.store.DB, stmt, pb.Params()...)
	if err != nil {
		return fmt.Errorf("update table definition: %w", err)
	}
	if n == 0 {
		return NotFoundError("table", table.ID)
	}
	return nil
}

func cloneTable(t *metadata.Table) *metadata.Table {
	next := *t
	next.Fields = make([]metadata.Field, len(t.Fields))
	copy(next.Fields, t.Fields)
	for i := range next.Fields {
		if fi := next.Fields[i].Formula; fi != nil {
			cp := *fi
			next.Fields[i].Formula = &cp
		}
	}
	return &next
}

func typesEqual(a, b formula.Type) bool {
	return a.Kind == b.Kind && a.Precision == b.Precision && a.Scale == b.Scale &&
		a.IncludeTime == b.IncludeTime && a.TZAware == b.TZAware
}

func shortID(id string) string {
	s := strings.ReplaceAll(id, "-", "")
	if len(s) > 12 {
		s = s[:12]
	}
	return s
}
