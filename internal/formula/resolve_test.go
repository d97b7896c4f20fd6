package formula

import (
	"errors"
	"strings"
	"testing"
)

func testSchema() Schema {
	return Schema{
		"Name":     Text(),
		"Initial":  Char(),
		"Price":    Number(10, 2),
		"Qty":      Number(5, 0),
		"Done":     Boolean(),
		"Due":      Date(false, false),
		"Updated":  Date(true, true),
		"Status":   SingleSelect(),
		"Tags":     Array(Text()),
		"Subtotal": Number(12, 2),
	}
}

func resolveSrc(t *testing.T, src string) Node {
	t.Helper()
	node := mustParse(t, src)
	typed, err := Resolve(node, testSchema(), "")
	if err != nil {
		t.Fatalf("resolve %q: %v", src, err)
	}
	return typed
}

func TestResolveLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want Type
	}{
		{"'hello'", Text()},
		{"true", Boolean()},
		{"5", Number(1, 0)},
		{"12.34", Number(4, 2)},
		{"0.5", Number(1, 1)},
	}
	for _, tt := range tests {
		got := resolveSrc(t, tt.src).ResultType()
		if got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestResolveNumericPromotion(t *testing.T) {
	tests := []struct {
		src  string
		want Type
	}{
		// add/sub: scale is the wider scale, precision grows one digit
		{"12.34 + 5.6", Number(5, 2)},
		{"field('Price') - field('Qty')", Number(11, 2)},
		// mul: precision and scale both sum
		{"12.34 * 5.6", Number(6, 3)},
		// div: scale is at least five
		{"field('Price') / field('Qty')", Number(15, 5)},
		{"1 / 3", Number(6, 5)},
	}
	for _, tt := range tests {
		got := resolveSrc(t, tt.src).ResultType()
		if got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestResolvePrecisionCaps(t *testing.T) {
	// 38,10 caps hold no matter how wide the operands multiply out
	got := resolveSrc(t, "field('Subtotal') * field('Subtotal') * field('Subtotal') * field('Subtotal')").ResultType()
	if got.Precision != MaxPrecision {
		t.Errorf("precision: got %d, want %d", got.Precision, MaxPrecision)
	}
	if got.Scale > MaxScale {
		t.Errorf("scale: got %d, want at most %d", got.Scale, MaxScale)
	}
}

func TestResolveTextCoercions(t *testing.T) {
	// every coercible type may sit in a text slot; the resolver makes the
	// conversion explicit as a totext wrapper call
	for _, src := range []string{
		"concat('n: ', field('Price'))",
		"concat('d: ', field('Done'))",
		"concat('t: ', field('Due'))",
		"concat('c: ', field('Initial'))",
		"concat('s: ', field('Status'))",
	} {
		typed := resolveSrc(t, src)
		if got := typed.ResultType(); got != Text() {
			t.Fatalf("%q: got %s, want text", src, got)
		}
		call := typed.(*FuncCall)
		wrapper, ok := call.Args[1].(*FuncCall)
		if strings.Contains(src, "'c: '") {
			// char is already text-like, no wrapper expected
			continue
		}
		if !ok || wrapper.Name != "totext" {
			t.Errorf("%q: second argument not wrapped in totext: %#v", src, call.Args[1])
		}
	}
}

func TestResolveBooleanToNumberCoercion(t *testing.T) {
	typed := resolveSrc(t, "1 + field('Done')")
	if got := typed.ResultType(); got.Kind != KindNumber {
		t.Fatalf("got %s, want a number", got)
	}
	call := typed.(*FuncCall)
	wrapper, ok := call.Args[1].(*FuncCall)
	if !ok || wrapper.Name != "tonumber" {
		t.Errorf("boolean operand not wrapped in tonumber: %#v", call.Args[1])
	}
}

func TestResolveOperatorsDesugar(t *testing.T) {
	typed := resolveSrc(t, "1 + 2 = 3")
	eq, ok := typed.(*FuncCall)
	if !ok || eq.Name != "equal" {
		t.Fatalf("got %#v, want equal call", typed)
	}
	if add, ok := eq.Args[0].(*FuncCall); !ok || add.Name != "add" {
		t.Errorf("left of equal: got %#v, want add call", eq.Args[0])
	}
}

func TestResolveUnknownField(t *testing.T) {
	typed := resolveSrc(t, "upper(field('Missing'))")
	got := typed.ResultType()
	if !got.IsInvalid() {
		t.Fatalf("got %s, want invalid", got)
	}
	if !strings.Contains(got.Reason, "Missing") {
		t.Errorf("reason %q does not name the field", got.Reason)
	}
}

func TestResolveUnknownFunction(t *testing.T) {
	got := resolveSrc(t, "fly('away')").ResultType()
	if !got.IsInvalid() || !strings.Contains(got.Reason, "fly") {
		t.Errorf("got %s / %q, want invalid naming the function", got, got.Reason)
	}
}

func TestResolveArgumentMismatch(t *testing.T) {
	// a date cannot be an operand of multiply and no coercion applies
	got := resolveSrc(t, "field('Due') * 2").ResultType()
	if !got.IsInvalid() {
		t.Fatalf("got %s, want invalid", got)
	}
	for _, part := range []string{"argument 1", "multiply", "a number", "date"} {
		if !strings.Contains(got.Reason, part) {
			t.Errorf("reason %q missing %q", got.Reason, part)
		}
	}
}

func TestResolveArityMismatch(t *testing.T) {
	got := resolveSrc(t, "upper('a', 'b')").ResultType()
	if !got.IsInvalid() || !strings.Contains(got.Reason, "upper") {
		t.Errorf("got %q, want arity error naming upper", got.Reason)
	}
}

func TestResolveInvalidIsTerminal(t *testing.T) {
	// the innermost reason survives to the root untouched
	inner := resolveSrc(t, "field('Missing')").ResultType()
	outer := resolveSrc(t, "upper(concat('x', totext(field('Missing'))))").ResultType()
	if outer.Reason != inner.Reason {
		t.Errorf("outer reason %q, want inner %q", outer.Reason, inner.Reason)
	}
}

func TestResolveIfBranchUnification(t *testing.T) {
	tests := []struct {
		src  string
		want Type
	}{
		{"if(true, 1.5, 200)", Number(4, 1)},
		{"if(field('Done'), field('Due'), field('Updated'))", Date(true, true)},
		{"if(true, 'a', field('Initial'))", Text()},
	}
	for _, tt := range tests {
		got := resolveSrc(t, tt.src).ResultType()
		if got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.src, got, tt.want)
		}
	}

	// mismatched branches fail to type
	got := resolveSrc(t, "if(true, 1, 'x')").ResultType()
	if !got.IsInvalid() {
		t.Errorf("mismatched if branches: got %s, want invalid", got)
	}
}

func TestResolveComparisonRules(t *testing.T) {
	valid := []string{
		"field('Price') > 10",
		"field('Name') = field('Initial')",
		"field('Status') = 'Open'",
		"field('Due') <= field('Updated')",
	}
	for _, src := range valid {
		if got := resolveSrc(t, src).ResultType(); got != Boolean() {
			t.Errorf("%q: got %s, want boolean", src, got)
		}
	}

	invalid := []string{
		"field('Price') = field('Due')",
		"field('Done') > true",
	}
	for _, src := range invalid {
		if got := resolveSrc(t, src).ResultType(); !got.IsInvalid() {
			t.Errorf("%q: got %s, want invalid", src, got)
		}
	}
}

func TestResolveSelfReference(t *testing.T) {
	node := mustParse(t, "field('Total') + 1")
	schema := testSchema()
	schema["Total"] = Number(10, 2)

	// resolving under another field name is fine
	if _, err := Resolve(node, schema, "Other"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// resolving as the referenced field itself is a hard error
	_, err := Resolve(node, schema, "Total")
	var selfErr *SelfReferenceError
	if !errors.As(err, &selfErr) {
		t.Fatalf("got %v, want SelfReferenceError", err)
	}
	if selfErr.Name != "Total" {
		t.Errorf("got field %q, want Total", selfErr.Name)
	}
}

func TestResolveTypeReturnsInvalidError(t *testing.T) {
	node := mustParse(t, "field('Missing')")
	typed, _, err := ResolveType(node, testSchema(), "")
	var invalidErr *InvalidTypeError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("got %v, want InvalidTypeError", err)
	}
	if typed == nil {
		t.Error("tree should still be returned alongside the error")
	}
}
