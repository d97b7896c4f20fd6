package metadata

import "gridbase-backend/internal/formula"

type Table struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	DBTable string  `json:"db_table"`
	Fields  []Field `json:"fields"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (t *Table) GetField(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// GetFieldByID returns a pointer to the field with the given id, or nil.
func (t *Table) GetFieldByID(id string) *Field {
	for i := range t.Fields {
		if t.Fields[i].ID == id {
			return &t.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the table has a field with the given name.
func (t *Table) HasField(name string) bool {
	return t.GetField(name) != nil
}

// FieldNames returns all field names.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// DataFields returns fields whose values clients write directly. Formula
// fields are excluded; the engine owns their columns.
func (t *Table) DataFields() []Field {
	var fields []Field
	for _, f := range t.Fields {
		if f.Type != FieldTypeFormula {
			fields = append(fields, f)
		}
	}
	return fields
}

// FormulaFields returns the formula fields in definition order.
func (t *Table) FormulaFields() []Field {
	var fields []Field
	for _, f := range t.Fields {
		if f.Type == FieldTypeFormula {
			fields = append(fields, f)
		}
	}
	return fields
}

// Schema builds the typing snapshot for formula resolution: every field name
// mapped to its semantic type. Formula fields contribute their resolved
// type, so a broken formula shows up as invalid and poisons its dependents.
func (t *Table) Schema() formula.Schema {
	schema := make(formula.Schema, len(t.Fields))
	for _, f := range t.Fields {
		schema[f.Name] = f.SemanticType()
	}
	return schema
}

// Columns maps field names to physical column names for SQL generation.
func (t *Table) Columns() formula.ColumnMapping {
	cols := make(formula.ColumnMapping, len(t.Fields))
	for _, f := range t.Fields {
		cols[f.Name] = f.Column
	}
	return cols
}
