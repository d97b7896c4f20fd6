package store

import (
	"strings"
	"testing"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/metadata"
)

func TestParamBuilders(t *testing.T) {
	pg := NewDialect("pgx")
	pb := pg.NewParamBuilder()
	if got := pb.Add("a"); got != "$1" {
		t.Fatalf("pg placeholder = %q, want $1", got)
	}
	if got := pb.Add(2); got != "$2" {
		t.Fatalf("pg placeholder = %q, want $2", got)
	}
	if len(pb.Params()) != 2 {
		t.Fatalf("pg params = %d, want 2", len(pb.Params()))
	}

	lite := NewDialect("sqlite")
	lb := lite.NewParamBuilder()
	if got := lb.Add("a"); got != "?1" {
		t.Fatalf("sqlite placeholder = %q, want ?1", got)
	}
	if got := lb.Add("b"); got != "?2" {
		t.Fatalf("sqlite placeholder = %q, want ?2", got)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent("price"); got != `"price"` {
		t.Fatalf("QuoteIdent = %q", got)
	}
	if got := QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("QuoteIdent escaping = %q", got)
	}
}

func TestColumnTypes(t *testing.T) {
	pg := NewDialect("pgx")
	lite := NewDialect("sqlite")

	tests := []struct {
		fieldType   string
		p, s        int
		includeTime bool
		wantPg      string
		wantLite    string
	}{
		{metadata.FieldTypeText, 0, 0, false, "TEXT", "TEXT"},
		{metadata.FieldTypeNumber, 10, 2, false, "NUMERIC(10,2)", "REAL"},
		{metadata.FieldTypeBoolean, 0, 0, false, "BOOLEAN", "INTEGER"},
		{metadata.FieldTypeDate, 0, 0, false, "DATE", "TEXT"},
		{metadata.FieldTypeDate, 0, 0, true, "TIMESTAMPTZ", "TEXT"},
		{metadata.FieldTypeMultipleSelect, 0, 0, false, "TEXT[]", "TEXT"},
	}
	for _, tc := range tests {
		if got := pg.ColumnType(tc.fieldType, tc.p, tc.s, tc.includeTime); got != tc.wantPg {
			t.Errorf("pg ColumnType(%s) = %q, want %q", tc.fieldType, got, tc.wantPg)
		}
		if got := lite.ColumnType(tc.fieldType, tc.p, tc.s, tc.includeTime); got != tc.wantLite {
			t.Errorf("sqlite ColumnType(%s) = %q, want %q", tc.fieldType, got, tc.wantLite)
		}
	}
}

func TestColumnDDLTypeForFormula(t *testing.T) {
	m := NewMigrator(&Store{Dialect: NewDialect("pgx")})

	f := metadata.Field{
		Name: "Total",
		Type: metadata.FieldTypeFormula,
		Formula: &metadata.FormulaInfo{
			Source: "field('Price') * 2",
			Result: formula.Number(11, 2),
		},
	}
	if got := m.ColumnDDLType(&f); got != "NUMERIC(11,2)" {
		t.Fatalf("formula column type = %q", got)
	}

	broken := metadata.Field{
		Name:    "Bad",
		Type:    metadata.FieldTypeFormula,
		Formula: &metadata.FormulaInfo{Source: "nope(", Error: "syntax error"},
	}
	if got := m.ColumnDDLType(&broken); got != "TEXT" {
		t.Fatalf("broken formula column type = %q", got)
	}
}

func TestParsePgArray(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"{}", nil},
		{"{red}", []string{"red"}},
		{"{red,green,blue}", []string{"red", "green", "blue"}},
		{`{"with space","with,comma"}`, []string{"with space", "with,comma"}},
		{`{"say \"hi\"",plain}`, []string{`say "hi"`, "plain"}},
	}
	for _, tc := range tests {
		got, err := parsePgArray(tc.in)
		if err != nil {
			t.Fatalf("parsePgArray(%q): %v", tc.in, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("parsePgArray(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("parsePgArray(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestSystemTablesSQL(t *testing.T) {
	for _, driver := range []string{"pgx", "sqlite"} {
		d := NewDialect(driver)
		ddl := d.SystemTablesSQL()
		if ddl == "" {
			t.Fatalf("%s: no system table DDL", driver)
		}
		for _, tbl := range []string{"_tables", "_users", "_refresh_tokens"} {
			if !strings.Contains(ddl, tbl) {
				t.Errorf("%s: system tables missing %s", driver, tbl)
			}
		}
	}
}

func TestNormalizeBooleans(t *testing.T) {
	rows := []map[string]any{
		{"done": int64(1), "name": "a"},
		{"done": int64(0), "name": "b"},
		{"done": nil, "name": "c"},
	}
	NormalizeBooleans(rows, []string{"done"})
	if rows[0]["done"] != true || rows[1]["done"] != false {
		t.Fatalf("booleans not normalized: %v", rows)
	}
	if rows[2]["done"] != nil {
		t.Fatalf("nil boolean changed: %v", rows[2]["done"])
	}
}
