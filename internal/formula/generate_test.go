package formula

import (
	"errors"
	"strings"
	"testing"
)

func testColumns() ColumnMapping {
	return ColumnMapping{
		"Name":    "name",
		"Price":   "price",
		"Qty":     "qty",
		"Done":    "done",
		"Due":     "due",
		"Updated": "updated",
		"Status":  "status",
		"Tags":    "tags",
	}
}

func generateSrc(t *testing.T, src string, d Dialect) string {
	t.Helper()
	typed := resolveSrc(t, src)
	expr, err := Generate(typed, testColumns(), d)
	if err != nil {
		t.Fatalf("generate %q: %v", src, err)
	}
	return expr.SQL
}

func TestGeneratePostgres(t *testing.T) {
	pg := &PostgresDialect{}
	if got := generateSrc(t, "upper(field('Name'))", pg); got != `UPPER("name")` {
		t.Errorf("got %s", got)
	}
	if got := generateSrc(t, `'it\'s'`, pg); got != "'it''s'" {
		t.Errorf("single quote escaping: got %s", got)
	}
	if got := generateSrc(t, "1.50", pg); got != "CAST(1.50 AS NUMERIC(3,2))" {
		t.Errorf("number literal: got %s", got)
	}
	if got := generateSrc(t, "true", pg); got != "TRUE" {
		t.Errorf("bool literal: got %s", got)
	}
	if got := generateSrc(t, "field('Price') + 1", pg); got != `CAST(("price" + CAST(1 AS NUMERIC(1,0))) AS NUMERIC(11,2))` {
		t.Errorf("addition: got %s", got)
	}
	if got := generateSrc(t, "concat('n: ', field('Price'))", pg); !strings.Contains(got, "to_char(") {
		t.Errorf("number in text slot must go through to_char: got %s", got)
	}
	if got := generateSrc(t, "field('Price') / field('Qty')", pg); !strings.Contains(got, "NULLIF") {
		t.Errorf("division must guard zero: got %s", got)
	}
}

func TestGenerateSQLite(t *testing.T) {
	lite := &SQLiteDialect{}
	if got := generateSrc(t, "upper(field('Name'))", lite); got != `UPPER("name")` {
		t.Errorf("got %s", got)
	}
	if got := generateSrc(t, "true", lite); got != "1" {
		t.Errorf("bool literal: got %s", got)
	}
	if got := generateSrc(t, "year(field('Due'))", lite); !strings.Contains(got, "strftime('%Y'") {
		t.Errorf("year must use strftime: got %s", got)
	}
	if got := generateSrc(t, "concat('n: ', field('Price'))", lite); !strings.Contains(got, "printf(") {
		t.Errorf("number in text slot must use printf: got %s", got)
	}
	if got := generateSrc(t, "count(field('Tags'))", lite); !strings.Contains(got, "json_array_length") {
		t.Errorf("array length must use json1: got %s", got)
	}
	// substr with a non-positive start reads from the front in SQLite, so
	// right() needs the zero guard to return '' like postgres does.
	if got := generateSrc(t, "right(field('Name'), 0)", lite); !strings.Contains(got, "<= 0 THEN ''") {
		t.Errorf("right must guard n <= 0: got %s", got)
	}
}

func TestGenerateSameTreeBothDialects(t *testing.T) {
	// one resolved tree lowers on either backend without re-resolution
	typed := resolveSrc(t, "if(field('Done'), field('Price') * 2, 0)")
	for _, d := range []Dialect{&PostgresDialect{}, &SQLiteDialect{}} {
		if _, err := Generate(typed, testColumns(), d); err != nil {
			t.Errorf("%s: %v", d.Name(), err)
		}
	}
}

func TestGenerateLiteralEscaping(t *testing.T) {
	pg := &PostgresDialect{}
	lite := &SQLiteDialect{}

	// injection-shaped input stays inside the literal
	typed := resolveSrc(t, `concat('x', '\'; DROP TABLE rows')`)
	for _, d := range []Dialect{pg, lite} {
		expr, err := Generate(typed, testColumns(), d)
		if err != nil {
			t.Fatalf("%s: %v", d.Name(), err)
		}
		if strings.Contains(expr.SQL, "'; DROP") && !strings.Contains(expr.SQL, "''; DROP") {
			t.Errorf("%s: quote not escaped: %s", d.Name(), expr.SQL)
		}
	}

	// backslashes force the E'' form on postgres
	expr, err := Generate(resolveSrc(t, `'back\\slash'`), testColumns(), pg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(expr.SQL, "E'") {
		t.Errorf("got %s, want E'' form", expr.SQL)
	}
}

func TestGenerateRequiresResolvedTree(t *testing.T) {
	pg := &PostgresDialect{}

	// an unresolved tree is a caller bug
	raw := mustParse(t, "1 + 1")
	if _, err := Generate(raw, testColumns(), pg); !errors.Is(err, ErrUnresolvedTree) {
		t.Errorf("unresolved tree: got %v, want ErrUnresolvedTree", err)
	}

	// so is a tree holding an invalid type
	typed := resolveSrc(t, "field('Missing')")
	if _, err := Generate(typed, testColumns(), pg); !errors.Is(err, ErrUnresolvedTree) {
		t.Errorf("invalid tree: got %v, want ErrUnresolvedTree", err)
	}
}

func TestGenerateMissingColumnMapping(t *testing.T) {
	typed := resolveSrc(t, "upper(field('Name'))")
	_, err := Generate(typed, ColumnMapping{}, &PostgresDialect{})
	if err == nil || !strings.Contains(err.Error(), "Name") {
		t.Errorf("got %v, want missing mapping error naming the field", err)
	}
}
