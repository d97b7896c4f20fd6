package metadata

import (
	"fmt"

	"gridbase-backend/internal/formula"
)

const (
	FieldTypeText           = "text"
	FieldTypeLongText       = "long_text"
	FieldTypeNumber         = "number"
	FieldTypeBoolean        = "boolean"
	FieldTypeDate           = "date"
	FieldTypeSingleSelect   = "single_select"
	FieldTypeMultipleSelect = "multiple_select"
	FieldTypeFormula        = "formula"
)

type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Column string `json:"column"`

	// number
	Precision int `json:"precision,omitempty"`
	Scale     int `json:"scale,omitempty"`

	// date
	IncludeTime bool `json:"include_time,omitempty"`
	TZAware     bool `json:"tz_aware,omitempty"`

	// single_select / multiple_select
	Options []string `json:"options,omitempty"`

	// formula
	Formula *FormulaInfo `json:"formula,omitempty"`
}

// FormulaInfo holds a formula field's source and the artifacts cached at
// save time. A field with a non-empty Error is broken: it stays saved, rows
// render the error placeholder, and dependants resolve against an invalid
// type.
type FormulaInfo struct {
	Source     string       `json:"source"`
	Result     formula.Type `json:"result"`
	SQL        string       `json:"sql,omitempty"`
	Error      string       `json:"error,omitempty"`
	References []string     `json:"references,omitempty"`
}

// Broken reports whether the formula failed to type at save time.
func (fi *FormulaInfo) Broken() bool {
	return fi.Error != ""
}

// SemanticType returns the field's formula-language type. Formula fields
// answer with their cached resolved type.
func (f *Field) SemanticType() formula.Type {
	switch f.Type {
	case FieldTypeText, FieldTypeLongText:
		return formula.Text()
	case FieldTypeNumber:
		return formula.Number(f.Precision, f.Scale)
	case FieldTypeBoolean:
		return formula.Boolean()
	case FieldTypeDate:
		return formula.Date(f.IncludeTime, f.TZAware)
	case FieldTypeSingleSelect:
		return formula.SingleSelect()
	case FieldTypeMultipleSelect:
		return formula.Array(formula.SingleSelect())
	case FieldTypeFormula:
		if f.Formula == nil {
			return formula.Invalid(formula.Span{}, "formula field %q has no definition", f.Name)
		}
		if f.Formula.Broken() {
			return formula.Invalid(formula.Span{}, "%s", f.Formula.Error)
		}
		return f.Formula.Result
	default:
		return formula.Invalid(formula.Span{}, "field %q has unknown type %q", f.Name, f.Type)
	}
}

// ValidOption reports whether a value is one of the select options.
func (f *Field) ValidOption(value string) bool {
	for _, opt := range f.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Validate checks the field definition itself, not any row value.
func (f *Field) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field name is required")
	}
	switch f.Type {
	case FieldTypeText, FieldTypeLongText, FieldTypeBoolean, FieldTypeDate:
		return nil
	case FieldTypeNumber:
		if f.Precision < 1 || f.Precision > formula.MaxPrecision {
			return fmt.Errorf("number precision must be between 1 and %d", formula.MaxPrecision)
		}
		if f.Scale < 0 || f.Scale > formula.MaxScale || f.Scale > f.Precision {
			return fmt.Errorf("number scale must be between 0 and %d and fit the precision", formula.MaxScale)
		}
		return nil
	case FieldTypeSingleSelect, FieldTypeMultipleSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("select field %q needs at least one option", f.Name)
		}
		return nil
	case FieldTypeFormula:
		if f.Formula == nil || f.Formula.Source == "" {
			return fmt.Errorf("formula field %q needs a formula", f.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown field type %q", f.Type)
	}
}
