package metadata

import (
	"testing"

	"gridbase-backend/internal/formula"
)

func testTable() *Table {
	return &Table{
		ID:      "tbl-1",
		Name:    "Orders",
		DBTable: "data_tbl_1",
		Fields: []Field{
			{ID: "f1", Name: "Name", Type: FieldTypeText, Column: "col_f1"},
			{ID: "f2", Name: "Price", Type: FieldTypeNumber, Column: "col_f2", Precision: 10, Scale: 2},
			{ID: "f3", Name: "Done", Type: FieldTypeBoolean, Column: "col_f3"},
			{ID: "f4", Name: "Status", Type: FieldTypeSingleSelect, Column: "col_f4", Options: []string{"open", "closed"}},
			{ID: "f5", Name: "Total", Type: FieldTypeFormula, Column: "col_f5", Formula: &FormulaInfo{
				Source: "field('Price') * 2",
				Result: formula.Number(11, 2),
				SQL:    `CAST(("col_f2" * CAST(2 AS NUMERIC(1,0))) AS NUMERIC(11,2))`,
			}},
			{ID: "f6", Name: "Bad", Type: FieldTypeFormula, Column: "col_f6", Formula: &FormulaInfo{
				Source: "field('Gone')",
				Error:  `references the deleted or unknown field "Gone"`,
			}},
		},
	}
}

func TestSemanticTypes(t *testing.T) {
	tbl := testTable()

	if got := tbl.GetField("Name").SemanticType(); got != formula.Text() {
		t.Errorf("text field: got %s", got)
	}
	if got := tbl.GetField("Price").SemanticType(); got != formula.Number(10, 2) {
		t.Errorf("number field: got %s", got)
	}
	if got := tbl.GetField("Status").SemanticType(); got != formula.SingleSelect() {
		t.Errorf("select field: got %s", got)
	}
	if got := tbl.GetField("Total").SemanticType(); got != formula.Number(11, 2) {
		t.Errorf("formula field answers with its resolved type: got %s", got)
	}

	// a broken formula types as invalid so dependants break too
	if got := tbl.GetField("Bad").SemanticType(); !got.IsInvalid() {
		t.Errorf("broken formula: got %s, want invalid", got)
	}
}

func TestTableSchemaAndColumns(t *testing.T) {
	tbl := testTable()
	schema := tbl.Schema()
	if len(schema) != len(tbl.Fields) {
		t.Fatalf("schema has %d entries, want %d", len(schema), len(tbl.Fields))
	}

	// a formula over the snapshot resolves against other fields, including
	// the resolved type of another formula field
	node, err := formula.Parse("field('Total') + field('Price')")
	if err != nil {
		t.Fatal(err)
	}
	typed, err := formula.Resolve(node, schema, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := typed.ResultType(); got != formula.Number(12, 2) {
		t.Errorf("got %s, want number(12,2)", got)
	}

	cols := tbl.Columns()
	if cols["Price"] != "col_f2" {
		t.Errorf("got column %q, want col_f2", cols["Price"])
	}
}

func TestFieldValidate(t *testing.T) {
	bad := []Field{
		{Name: "n", Type: FieldTypeNumber, Precision: 0},
		{Name: "n", Type: FieldTypeNumber, Precision: 50, Scale: 2},
		{Name: "n", Type: FieldTypeNumber, Precision: 5, Scale: 8},
		{Name: "s", Type: FieldTypeSingleSelect},
		{Name: "f", Type: FieldTypeFormula},
		{Name: "x", Type: "geo_point"},
		{Name: "", Type: FieldTypeText},
	}
	for _, f := range bad {
		if err := f.Validate(); err == nil {
			t.Errorf("%s %s: expected a validation error", f.Type, f.Name)
		}
	}

	good := []Field{
		{Name: "t", Type: FieldTypeText},
		{Name: "n", Type: FieldTypeNumber, Precision: 10, Scale: 2},
		{Name: "s", Type: FieldTypeSingleSelect, Options: []string{"a"}},
		{Name: "f", Type: FieldTypeFormula, Formula: &FormulaInfo{Source: "1"}},
	}
	for _, f := range good {
		if err := f.Validate(); err != nil {
			t.Errorf("%s %s: unexpected error %v", f.Type, f.Name, err)
		}
	}
}

func TestRegistryLoadReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Load([]*Table{testTable()})

	if reg.GetTable("Orders") == nil {
		t.Fatal("table not registered by name")
	}
	if reg.GetTableByID("tbl-1") == nil {
		t.Fatal("table not registered by id")
	}

	reg.Load([]*Table{})
	if reg.GetTable("Orders") != nil {
		t.Error("Load must replace, not merge")
	}
}

func TestDataAndFormulaFields(t *testing.T) {
	tbl := testTable()
	if got := len(tbl.DataFields()); got != 4 {
		t.Errorf("data fields: got %d, want 4", got)
	}
	if got := len(tbl.FormulaFields()); got != 2 {
		t.Errorf("formula fields: got %d, want 2", got)
	}
}
