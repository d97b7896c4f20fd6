package engine

import (
	"testing"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/metadata"
)

func TestDecorateBrokenFormulas(t *testing.T) {
	table := depTestTable()
	table.Fields = append(table.Fields, metadata.Field{
		ID: "f9", Name: "Bad", Type: metadata.FieldTypeFormula, Column: "field_9",
		Formula: &metadata.FormulaInfo{
			Source: "field('Gone') + 1",
			Error:  "field Gone does not exist",
		},
	})

	row := map[string]any{"Price": 10.0, "Total": 10.8, "Bad": nil}
	DecorateBrokenFormulas(table, row)

	if row["Bad"] != BrokenFormulaValue {
		t.Fatalf("broken field value = %v, want %q", row["Bad"], BrokenFormulaValue)
	}
	if row["Total"] != 10.8 {
		t.Fatalf("healthy formula value changed: %v", row["Total"])
	}
	if row["Price"] != 10.0 {
		t.Fatalf("data value changed: %v", row["Price"])
	}
}

func TestCloneTableIsolation(t *testing.T) {
	table := depTestTable()
	next := cloneTable(table)

	next.Fields[0].Name = "Renamed"
	next.GetField("Subtotal").Formula.Error = "broken"

	if table.Fields[0].Name != "Price" {
		t.Fatal("clone shares field slice with original")
	}
	if table.GetField("Subtotal").Formula.Error != "" {
		t.Fatal("clone shares formula info with original")
	}
}

func TestTypesEqual(t *testing.T) {
	if !typesEqual(formula.Number(10, 2), formula.Number(10, 2)) {
		t.Error("identical number types should be equal")
	}
	if typesEqual(formula.Number(10, 2), formula.Number(11, 2)) {
		t.Error("precision change should differ")
	}
	if typesEqual(formula.Text(), formula.Boolean()) {
		t.Error("different kinds should differ")
	}
	if typesEqual(formula.Date(false, false), formula.Date(true, false)) {
		t.Error("include_time change should differ")
	}
}

func TestShortID(t *testing.T) {
	got := shortID("123e4567-e89b-12d3-a456-426614174000")
	if got != "123e4567e89b" {
		t.Fatalf("shortID = %q", got)
	}
	if shortID("abc") != "abc" {
		t.Fatalf("short input should pass through")
	}
}

func TestFormulaAppErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{&formula.SelfReferenceError{Name: "Total"}, "FORMULA_SELF_REFERENCE"},
		{&formula.CircularReferenceError{Cycle: []string{"A", "B", "A"}}, "FORMULA_CIRCULAR_REFERENCE"},
		{&formula.MaximumFormulaSizeError{Size: 20000, Max: 10000}, "FORMULA_TOO_LONG"},
	}
	for _, tc := range tests {
		appErr := formulaAppError(tc.err)
		if appErr == nil || appErr.Code != tc.code {
			t.Errorf("formulaAppError(%T) = %v, want code %s", tc.err, appErr, tc.code)
		}
		if appErr != nil && appErr.Status != 400 {
			t.Errorf("%s status = %d, want 400", tc.code, appErr.Status)
		}
	}

	if formulaAppError(NewAppError("INTERNAL", 500, "internal")) != nil {
		t.Error("unrelated errors should not map")
	}
}
