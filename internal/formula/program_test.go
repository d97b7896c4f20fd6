package formula

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func runSrc(t *testing.T, src string, row map[string]any) Value {
	t.Helper()
	typed := resolveSrc(t, src)
	program, err := CompileProgram(typed, testSchema())
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	out, err := program.Run(row)
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return out
}

func TestProgramTextFunctions(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`concat(upper(lower('test')), "test\"", 'test\'')`, `TESTtest"test'`},
		{"upper('héllo')", "HÉLLO"},
		{"left('abcdef', 2)", "ab"},
		{"right('abcdef', 2)", "ef"},
		{"trim('  pad  ')", "pad"},
		{"replace('a-b-c', '-', '.')", "a.b.c"},
		{"t(1)", ""},
		{"t('keep')", "keep"},
	}
	for _, tt := range tests {
		got := runSrc(t, tt.src, nil)
		if got.AsText() != tt.want {
			t.Errorf("%s: got %q, want %q", tt.src, got.AsText(), tt.want)
		}
	}
}

func TestProgramExactDecimals(t *testing.T) {
	// binary-float arithmetic would make this 0.30000000000000004
	got := runSrc(t, "0.1 + 0.2", nil)
	if got.AsText() != "0.3" {
		t.Errorf("0.1 + 0.2: got %s, want 0.3", got.AsText())
	}

	// division carries at least five decimal places
	got = runSrc(t, "1 / 3", nil)
	if got.AsText() != "0.33333" {
		t.Errorf("1 / 3: got %s, want 0.33333", got.AsText())
	}

	got = runSrc(t, "12.34 * 5.6", nil)
	if got.AsText() != "69.104" {
		t.Errorf("12.34 * 5.6: got %s, want 69.104", got.AsText())
	}
}

func TestProgramFieldValues(t *testing.T) {
	row := map[string]any{
		"Name":  "Widget",
		"Price": "19.99",
		"Qty":   int64(3),
		"Done":  true,
	}
	got := runSrc(t, "concat(field('Name'), ': ', field('Price'))", row)
	if got.AsText() != "Widget: 19.99" {
		t.Errorf("got %q", got.AsText())
	}

	got = runSrc(t, "field('Price') * field('Qty')", row)
	if !got.Num.Equal(decimal.RequireFromString("59.97")) {
		t.Errorf("got %s, want 59.97", got.Num)
	}

	got = runSrc(t, "if(field('Done'), 'done', 'open')", row)
	if got.AsText() != "done" {
		t.Errorf("got %q, want done", got.AsText())
	}
}

func TestProgramNullHandling(t *testing.T) {
	row := map[string]any{"Name": nil, "Price": nil}

	// null text concatenates as empty
	got := runSrc(t, "concat('x', field('Name'))", row)
	if got.AsText() != "x" {
		t.Errorf("got %q, want x", got.AsText())
	}

	// null numbers propagate
	got = runSrc(t, "field('Price') + 1", row)
	if !got.Null {
		t.Errorf("got %v, want null", got)
	}

	// isblank sees both empty and null as blank
	if got := runSrc(t, "isblank(field('Name'))", row); !got.Bool {
		t.Error("isblank(null) = false, want true")
	}
	if got := runSrc(t, "isblank('x')", nil); got.Bool {
		t.Error("isblank('x') = true, want false")
	}

	// comparisons follow SQL three-valued logic on null operands
	if got := runSrc(t, "field('Price') = field('Price')", row); !got.Null {
		t.Errorf("null = null: got %v, want null", got)
	}
	if got := runSrc(t, "field('Price') > 1", row); !got.Null {
		t.Errorf("null > 1: got %v, want null", got)
	}
	if got := runSrc(t, "false and field('Price') > 1", row); got.Null || got.Bool {
		t.Errorf("false and null: got %v, want false", got)
	}
	if got := runSrc(t, "true and field('Price') > 1", row); !got.Null {
		t.Errorf("true and null: got %v, want null", got)
	}
	if got := runSrc(t, "true or field('Price') > 1", row); got.Null || !got.Bool {
		t.Errorf("true or null: got %v, want true", got)
	}
	if got := runSrc(t, "false or field('Price') > 1", row); !got.Null {
		t.Errorf("false or null: got %v, want null", got)
	}
	if got := runSrc(t, "not field('Price') > 1", row); !got.Null {
		t.Errorf("not null: got %v, want null", got)
	}

	// a null condition falls through to the else branch like CASE WHEN
	if got := runSrc(t, "if(field('Price') > 1, 'yes', 'no')", row); got.AsText() != "no" {
		t.Errorf("if(null, ...): got %q, want no", got.AsText())
	}
}

func TestProgramDateFunctions(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	old := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = old }()

	row := map[string]any{
		"Due":     "2024-03-20",
		"Updated": "2024-03-18 09:00:00",
	}

	if got := runSrc(t, "year(field('Due'))", row); got.AsText() != "2024" {
		t.Errorf("year: got %s", got.AsText())
	}
	if got := runSrc(t, "month(field('Due'))", row); got.AsText() != "3" {
		t.Errorf("month: got %s", got.AsText())
	}
	if got := runSrc(t, "day(field('Due'))", row); got.AsText() != "20" {
		t.Errorf("day: got %s", got.AsText())
	}
	if got := runSrc(t, "date_diff(field('Due'), today())", row); got.AsText() != "5" {
		t.Errorf("date_diff: got %s, want 5", got.AsText())
	}
	if got := runSrc(t, "totext(date_add(field('Due'), 10))", row); got.AsText() != "2024-03-30" {
		t.Errorf("date_add: got %s", got.AsText())
	}
	if got := runSrc(t, "datetime_format(field('Updated'), 'DD/MM/YYYY HH24:MI')", row); got.AsText() != "18/03/2024 09:00" {
		t.Errorf("datetime_format: got %s", got.AsText())
	}
	if got := runSrc(t, "todate('15/03/2024', 'DD/MM/YYYY')", row); got.AsText() != "2024-03-15" {
		t.Errorf("todate: got %s", got.AsText())
	}
}

func TestProgramArrayFunctions(t *testing.T) {
	row := map[string]any{"Tags": []any{"red", "green", "blue"}}

	if got := runSrc(t, "count(field('Tags'))", row); got.AsText() != "3" {
		t.Errorf("count: got %s", got.AsText())
	}
	if got := runSrc(t, "join(field('Tags'), '; ')", row); got.AsText() != "red; green; blue" {
		t.Errorf("join: got %q", got.AsText())
	}
	if got := runSrc(t, "totext(field('Tags'))", row); got.AsText() != "red, green, blue" {
		t.Errorf("totext: got %q", got.AsText())
	}
}

func TestProgramComparisons(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"1 < 2", true},
		{"2.5 >= 2.50", true},
		{"'abc' = 'abc'", true},
		{"'a' != 'b'", true},
		{"true and false", false},
		{"true or false", true},
		{"not false", true},
		{"tonumber('12.5') = 12.5", true},
	}
	for _, tt := range tests {
		got := runSrc(t, tt.src, nil)
		if got.Bool != tt.want {
			t.Errorf("%s: got %v, want %v", tt.src, got.Bool, tt.want)
		}
	}
}

func TestProgramRejectsInvalidTree(t *testing.T) {
	typed := resolveSrc(t, "field('Missing')")
	if _, err := CompileProgram(typed, testSchema()); err == nil {
		t.Error("expected an error compiling an invalid tree")
	}
}
