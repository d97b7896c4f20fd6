package engine

import (
	"errors"
	"reflect"
	"testing"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/metadata"
)

func depTestTable() *metadata.Table {
	return &metadata.Table{
		ID:      "t1",
		Name:    "Orders",
		DBTable: "tbl_orders",
		Fields: []metadata.Field{
			{ID: "f1", Name: "Price", Type: metadata.FieldTypeNumber, Column: "field_1", Precision: 10, Scale: 2},
			{ID: "f2", Name: "Qty", Type: metadata.FieldTypeNumber, Column: "field_2", Precision: 5, Scale: 0},
			{ID: "f3", Name: "Subtotal", Type: metadata.FieldTypeFormula, Column: "field_3",
				Formula: &metadata.FormulaInfo{
					Source:     "field('Price') * field('Qty')",
					Result:     formula.Number(15, 2),
					References: []string{"Price", "Qty"},
				}},
			{ID: "f4", Name: "Total", Type: metadata.FieldTypeFormula, Column: "field_4",
				Formula: &metadata.FormulaInfo{
					Source:     "field('Subtotal') * 1.08",
					Result:     formula.Number(19, 4),
					References: []string{"Subtotal"},
				}},
			{ID: "f5", Name: "Label", Type: metadata.FieldTypeFormula, Column: "field_5",
				Formula: &metadata.FormulaInfo{
					Source:     "concat('total: ', field('Total'))",
					Result:     formula.Text(),
					References: []string{"Total"},
				}},
		},
	}
}

func TestRecomputeOrder(t *testing.T) {
	table := depTestTable()

	// Changing Price touches every formula downstream, dependencies first.
	got := recomputeOrder(table, "Price")
	want := []string{"Subtotal", "Total", "Label"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("recomputeOrder(Price) = %v, want %v", got, want)
	}

	// Changing Total touches Total itself and its dependant.
	got = recomputeOrder(table, "Total")
	want = []string{"Total", "Label"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("recomputeOrder(Total) = %v, want %v", got, want)
	}

	// Qty feeds Subtotal, which feeds the rest.
	got = recomputeOrder(table, "Qty")
	if !reflect.DeepEqual(got, []string{"Subtotal", "Total", "Label"}) {
		t.Fatalf("recomputeOrder(Qty) = %v", got)
	}
}

func TestRecomputeOrderNoDependants(t *testing.T) {
	table := depTestTable()
	table.Fields = table.Fields[:2] // data fields only
	if got := recomputeOrder(table, "Price"); len(got) != 0 {
		t.Fatalf("expected empty order, got %v", got)
	}
}

func TestFormulaOrder(t *testing.T) {
	got := formulaOrder(depTestTable())
	want := []string{"Subtotal", "Total", "Label"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("formulaOrder = %v, want %v", got, want)
	}
}

func TestCheckNoCycle(t *testing.T) {
	table := depTestTable()

	// Saving Subtotal so it references Total closes the loop
	// Subtotal -> Total -> Subtotal.
	err := checkNoCycle(table, "Subtotal", []string{"Price", "Total"})
	if err == nil {
		t.Fatal("expected circular reference error")
	}
	var circErr *formula.CircularReferenceError
	if !errors.As(err, &circErr) {
		t.Fatalf("expected CircularReferenceError, got %T", err)
	}
	if len(circErr.Cycle) < 3 {
		t.Fatalf("cycle too short: %v", circErr.Cycle)
	}
	if circErr.Cycle[0] != circErr.Cycle[len(circErr.Cycle)-1] {
		t.Fatalf("cycle should close on itself: %v", circErr.Cycle)
	}

	// The current acyclic references pass.
	if err := checkNoCycle(table, "Subtotal", []string{"Price", "Qty"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A new field referencing existing formulas is fine.
	if err := checkNoCycle(table, "Margin", []string{"Total", "Subtotal"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckNoCycleLongChain(t *testing.T) {
	table := depTestTable()

	// Label -> Total -> Subtotal, so Subtotal referencing Label is a
	// three-field cycle.
	err := checkNoCycle(table, "Subtotal", []string{"Label"})
	var circErr *formula.CircularReferenceError
	if !errors.As(err, &circErr) {
		t.Fatalf("expected CircularReferenceError, got %v", err)
	}
}

func TestDependsOn(t *testing.T) {
	g := buildDepGraph(depTestTable(), "", nil)
	if !g.dependsOn("Label", "Price") {
		t.Error("Label should transitively depend on Price")
	}
	if g.dependsOn("Subtotal", "Total") {
		t.Error("Subtotal should not depend on Total")
	}
	if g.dependsOn("Price", "Qty") {
		t.Error("data fields depend on nothing")
	}
}
