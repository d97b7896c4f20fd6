package engine

import (
	"strings"
	"testing"

	"gridbase-backend/internal/store"
)

func TestBuildSelectSQL(t *testing.T) {
	table := depTestTable()
	plan := &QueryPlan{
		Table:   table,
		Page:    2,
		PerPage: 25,
		Filters: []WhereClause{
			{Field: "Price", Operator: "gte", Value: 10.0},
			{Field: "Total", Operator: "lt", Value: 100.0},
		},
		Sorts: []OrderClause{{Field: "Total", Dir: "DESC"}},
	}

	qr := BuildSelectSQL(plan, store.NewDialect("pgx"))

	if !strings.HasPrefix(qr.SQL, `SELECT id, created_at, updated_at, "field_1" AS "Price"`) {
		t.Fatalf("unexpected select list: %s", qr.SQL)
	}
	if !strings.Contains(qr.SQL, `"field_1" >= $1`) {
		t.Errorf("missing price filter: %s", qr.SQL)
	}
	// Formula fields filter on their materialized column like any other.
	if !strings.Contains(qr.SQL, `"field_4" < $2`) {
		t.Errorf("missing total filter: %s", qr.SQL)
	}
	if !strings.Contains(qr.SQL, `ORDER BY "field_4" DESC`) {
		t.Errorf("missing order: %s", qr.SQL)
	}
	if !strings.Contains(qr.SQL, "LIMIT $3 OFFSET $4") {
		t.Errorf("missing pagination: %s", qr.SQL)
	}
	if len(qr.Params) != 4 {
		t.Fatalf("params = %v", qr.Params)
	}
	if qr.Params[2] != 25 || qr.Params[3] != 25 {
		t.Errorf("pagination params = %v", qr.Params[2:])
	}
}

func TestBuildSelectSQLDefaultOrder(t *testing.T) {
	plan := &QueryPlan{Table: depTestTable(), Page: 1, PerPage: 25}
	qr := BuildSelectSQL(plan, store.NewDialect("sqlite"))
	if !strings.Contains(qr.SQL, "ORDER BY created_at, id") {
		t.Fatalf("missing default order: %s", qr.SQL)
	}
	if !strings.Contains(qr.SQL, "LIMIT ?1 OFFSET ?2") {
		t.Fatalf("sqlite placeholders: %s", qr.SQL)
	}
}

func TestBuildCountSQL(t *testing.T) {
	plan := &QueryPlan{
		Table:   depTestTable(),
		Page:    1,
		PerPage: 25,
		Filters: []WhereClause{{Field: "Qty", Operator: "eq", Value: 3.0}},
	}
	qr := BuildCountSQL(plan, store.NewDialect("pgx"))
	want := `SELECT COUNT(*) AS count FROM "tbl_orders" WHERE "field_2" = $1`
	if qr.SQL != want {
		t.Fatalf("count sql = %q, want %q", qr.SQL, want)
	}
	if len(qr.Params) != 1 {
		t.Fatalf("params = %v", qr.Params)
	}
}

func TestBuildWhereClauseOperators(t *testing.T) {
	d := store.NewDialect("pgx")
	tests := []struct {
		op   string
		want string
	}{
		{"eq", `"c" = $1`},
		{"neq", `"c" != $1`},
		{"gt", `"c" > $1`},
		{"lte", `"c" <= $1`},
		{"like", `"c" LIKE $1`},
		{"blank", `("c" IS NULL OR CAST("c" AS TEXT) = '')`},
	}
	for _, tc := range tests {
		pb := d.NewParamBuilder()
		got := buildWhereClause(`"c"`, WhereClause{Operator: tc.op, Value: "x"}, pb)
		if got != tc.want {
			t.Errorf("op %s = %q, want %q", tc.op, got, tc.want)
		}
	}

	pb := d.NewParamBuilder()
	got := buildWhereClause(`"c"`, WhereClause{Operator: "in", Value: []any{"a", "b"}}, pb)
	if got != `"c" IN ($1, $2)` {
		t.Errorf("in clause = %q", got)
	}
}

func TestParseFilterKey(t *testing.T) {
	if f, op := parseFilterKey("Total.gte"); f != "Total" || op != "gte" {
		t.Errorf("parseFilterKey(Total.gte) = %q, %q", f, op)
	}
	if f, op := parseFilterKey("Status"); f != "Status" || op != "eq" {
		t.Errorf("parseFilterKey(Status) = %q, %q", f, op)
	}
}

func TestCoerceValue(t *testing.T) {
	table := depTestTable()
	price := table.GetField("Price")

	v, err := coerceValue(price, "12.5", "gte")
	if err != nil || v != 12.5 {
		t.Fatalf("coerce number = %v, %v", v, err)
	}

	if _, err := coerceValue(price, "abc", "gte"); err == nil {
		t.Fatal("expected error for non-numeric value")
	}

	vs, err := coerceValue(price, "1, 2, 3", "in")
	if err != nil {
		t.Fatal(err)
	}
	list, ok := vs.([]any)
	if !ok || len(list) != 3 || list[1] != 2.0 {
		t.Fatalf("coerce in-list = %v", vs)
	}

	// Formula fields coerce by their resolved type.
	total := table.GetField("Total")
	v, err = coerceValue(total, "99.9", "lt")
	if err != nil || v != 99.9 {
		t.Fatalf("coerce formula number = %v, %v", v, err)
	}
}
