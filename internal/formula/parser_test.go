package formula

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) Node {
	t.Helper()
	node, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return node
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3)
	node := mustParse(t, "1 + 2 * 3")
	add, ok := node.(*BinaryOp)
	if !ok || add.Op != TOKEN_PLUS {
		t.Fatalf("root: got %T, want + op", node)
	}
	mul, ok := add.Right.(*BinaryOp)
	if !ok || mul.Op != TOKEN_STAR {
		t.Fatalf("right of +: got %T, want * op", add.Right)
	}

	// comparison binds looser than arithmetic, and/or looser still
	node = mustParse(t, "1 + 1 = 2 and true")
	and, ok := node.(*BinaryOp)
	if !ok || and.Op != TOKEN_AND {
		t.Fatalf("root: got %T, want and op", node)
	}
	if eq, ok := and.Left.(*BinaryOp); !ok || eq.Op != TOKEN_EQ {
		t.Fatalf("left of and: want = op, got %#v", and.Left)
	}
}

func TestParseParensOverridePrecedence(t *testing.T) {
	node := mustParse(t, "(1 + 2) * 3")
	mul, ok := node.(*BinaryOp)
	if !ok || mul.Op != TOKEN_STAR {
		t.Fatalf("root: got %T, want * op", node)
	}
	if add, ok := mul.Left.(*BinaryOp); !ok || add.Op != TOKEN_PLUS {
		t.Fatalf("left of *: want + op, got %#v", mul.Left)
	}
}

func TestParseDeterministic(t *testing.T) {
	// the same source must always produce the same tree shape
	src := "if(field('Done'), 'yes', 'no')"
	a := mustParse(t, src)
	b := mustParse(t, src)
	callA := a.(*FuncCall)
	callB := b.(*FuncCall)
	if callA.Name != callB.Name || len(callA.Args) != len(callB.Args) || callA.Pos != callB.Pos {
		t.Errorf("same source parsed differently: %#v vs %#v", callA, callB)
	}
}

func TestParseFieldRef(t *testing.T) {
	node := mustParse(t, "field('Total Price')")
	ref, ok := node.(*FieldRef)
	if !ok {
		t.Fatalf("got %T, want FieldRef", node)
	}
	if ref.Name != "Total Price" {
		t.Errorf("got field name %q, want %q", ref.Name, "Total Price")
	}

	// field is case-insensitive as a keyword
	node = mustParse(t, `FIELD("x")`)
	if _, ok := node.(*FieldRef); !ok {
		t.Errorf("FIELD(...): got %T, want FieldRef", node)
	}
}

func TestParseFieldRefErrors(t *testing.T) {
	for _, src := range []string{
		"field()",
		"field('a', 'b')",
		"field(1)",
		"field(upper('x'))",
	} {
		if _, err := Parse(src); err == nil {
			t.Errorf("%q: expected a syntax error", src)
		}
	}
}

func TestParseUnary(t *testing.T) {
	node := mustParse(t, "-field('n')")
	neg, ok := node.(*UnaryOp)
	if !ok || neg.Op != TOKEN_MINUS {
		t.Fatalf("got %T, want unary minus", node)
	}
	if _, ok := neg.Expr.(*FieldRef); !ok {
		t.Errorf("operand: got %T, want FieldRef", neg.Expr)
	}

	node = mustParse(t, "not true")
	if op, ok := node.(*UnaryOp); !ok || op.Op != TOKEN_NOT {
		t.Fatalf("got %#v, want not op", node)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"1 +",
		"upper('a'",
		"upper 'a'",
		"lonely_ident",
		"1.2.3",
		"(1 + 2",
		"concat('a',)",
		"1 2",
	} {
		_, err := Parse(src)
		var syntaxErr *SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Errorf("%q: got %v, want a syntax error", src, err)
		}
	}
}

func TestParseSizeLimit(t *testing.T) {
	// a formula of exactly the maximum length parses; one byte more is
	// rejected before any lexing happens
	pad := strings.Repeat(" ", maxFormulaLength-len("true"))
	if _, err := Parse("true" + pad); err != nil {
		t.Fatalf("formula at the limit: %v", err)
	}

	_, err := Parse("true" + pad + " ")
	var sizeErr *MaximumFormulaSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("got %v, want MaximumFormulaSizeError", err)
	}
	if sizeErr.Max != maxFormulaLength {
		t.Errorf("got max %d, want %d", sizeErr.Max, maxFormulaLength)
	}
}

func TestReferencedFields(t *testing.T) {
	node := mustParse(t, "concat(field('b'), field('a'), field('b'))")
	got := ReferencedFields(node)
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("got %v, want [b a] in first-seen order", got)
	}
}
