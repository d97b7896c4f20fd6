package formula

import (
	"fmt"
	"strings"
)

// Kind enumerates the closed set of semantic types a formula expression can
// resolve to. The semantic type is distinct from the storage column type; the
// field layer maps one to the other.
type Kind int

const (
	KindInvalid Kind = iota
	KindText
	KindChar
	KindNumber
	KindBoolean
	KindDate
	KindSingleSelect
	KindArray
)

const (
	// MaxPrecision caps the total digits a Number type may declare.
	MaxPrecision = 38
	// MaxScale caps the decimal places a Number type may declare.
	MaxScale = 10
)

// Type is the semantic type attached to every node of a resolved tree.
// Invalid is terminal: once a node resolves to an invalid type the reason
// propagates upward and ancestors short-circuit.
type Type struct {
	Kind Kind

	// Number
	Precision int
	Scale     int

	// Date
	IncludeTime bool
	TZAware     bool

	// Array element type
	Elem *Type

	// Invalid
	Reason string
	At     Span
}

func Text() Type { return Type{Kind: KindText} }
func Char() Type { return Type{Kind: KindChar} }

func Number(precision, scale int) Type {
	if precision > MaxPrecision {
		precision = MaxPrecision
	}
	if scale > MaxScale {
		scale = MaxScale
	}
	if precision < scale {
		precision = scale
	}
	return Type{Kind: KindNumber, Precision: precision, Scale: scale}
}

func Boolean() Type { return Type{Kind: KindBoolean} }

func Date(includeTime, tzAware bool) Type {
	return Type{Kind: KindDate, IncludeTime: includeTime, TZAware: tzAware}
}

func SingleSelect() Type { return Type{Kind: KindSingleSelect} }

func Array(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

// Invalid constructs the terminal error type with a reason attached to the
// offending sub-expression's span.
func Invalid(at Span, format string, args ...any) Type {
	return Type{Kind: KindInvalid, Reason: fmt.Sprintf(format, args...), At: at}
}

func (t Type) IsInvalid() bool { return t.Kind == KindInvalid }
func (t Type) IsValid() bool   { return t.Kind != KindInvalid }

// IsTextLike reports whether the type holds text directly (Text or Char).
func (t Type) IsTextLike() bool {
	return t.Kind == KindText || t.Kind == KindChar
}

func (t Type) String() string {
	switch t.Kind {
	case KindText:
		return "text"
	case KindChar:
		return "char"
	case KindNumber:
		return fmt.Sprintf("number(%d,%d)", t.Precision, t.Scale)
	case KindBoolean:
		return "boolean"
	case KindDate:
		if t.IncludeTime {
			return "date with time"
		}
		return "date"
	case KindSingleSelect:
		return "single select"
	case KindArray:
		if t.Elem != nil {
			return "array of " + t.Elem.String()
		}
		return "array"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// KindName returns the type name without number precision details, for use
// in error messages comparing expected and actual kinds.
func (t Type) KindName() string {
	if t.Kind == KindNumber {
		return "number"
	}
	return t.String()
}

// promoteAddSub combines two Number types for addition and subtraction:
// result scale is the larger operand scale, precision grows by one digit to
// absorb the carry.
func promoteAddSub(a, b Type) Type {
	return Number(maxInt(a.Precision, b.Precision)+1, maxInt(a.Scale, b.Scale))
}

// promoteMul combines two Number types for multiplication.
func promoteMul(a, b Type) Type {
	return Number(a.Precision+b.Precision, a.Scale+b.Scale)
}

// promoteDiv combines two Number types for division. Division can introduce
// decimal places that neither operand declared, so the result carries at
// least five.
func promoteDiv(a, b Type) Type {
	scale := maxInt(maxInt(a.Scale, b.Scale), 5)
	return Number(a.Precision+scale, scale)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// joinTypeNames renders a list of acceptable type names for error messages.
func joinTypeNames(names []string) string {
	return strings.Join(names, ", ")
}
