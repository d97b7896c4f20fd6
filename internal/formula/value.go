package formula

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout and DateTimeLayout are the fixed formats used whenever a date
// coerces to text. They are part of the language contract: changing them
// changes the result of every persisted formula that stringifies a date.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Value is a runtime value produced by in-process evaluation. Numbers are
// exact decimals, never binary floats.
type Value struct {
	Type Type
	Null bool

	Str  string
	Num  decimal.Decimal
	Bool bool
	Time time.Time
	Arr  []Value
}

func TextValue(s string) Value {
	return Value{Type: Text(), Str: s}
}

func NumberValue(d decimal.Decimal, t Type) Value {
	return Value{Type: t, Num: d}
}

func BoolValue(b bool) Value {
	return Value{Type: Boolean(), Bool: b}
}

func DateValue(t time.Time, typ Type) Value {
	return Value{Type: typ, Time: t}
}

func ArrayValue(elems []Value, elem Type) Value {
	return Value{Type: Array(elem), Arr: elems}
}

func NullValue(t Type) Value {
	return Value{Type: t, Null: true}
}

// AsText renders the value as text following the coercion rules: numbers keep
// their declared scale, booleans render as true/false, dates use the fixed
// layouts above.
func (v Value) AsText() string {
	if v.Null {
		return ""
	}
	switch v.Type.Kind {
	case KindText, KindChar, KindSingleSelect:
		return v.Str
	case KindNumber:
		return v.Num.StringFixed(int32(v.Type.Scale))
	case KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindDate:
		if v.Type.IncludeTime {
			return v.Time.Format(DateTimeLayout)
		}
		return v.Time.Format(DateLayout)
	case KindArray:
		parts := make([]string, len(v.Arr))
		for i, e := range v.Arr {
			parts[i] = e.AsText()
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// IsBlank reports whether the value is null or, for text-like values, empty.
func (v Value) IsBlank() bool {
	if v.Null {
		return true
	}
	if v.Type.IsTextLike() || v.Type.Kind == KindSingleSelect {
		return v.Str == ""
	}
	if v.Type.Kind == KindArray {
		return len(v.Arr) == 0
	}
	return false
}

// Equal compares two values of the same kind.
func (v Value) Equal(o Value) bool {
	if v.Null || o.Null {
		return v.Null == o.Null
	}
	switch v.Type.Kind {
	case KindText, KindChar, KindSingleSelect:
		return v.Str == o.Str
	case KindNumber:
		return v.Num.Equal(o.Num)
	case KindBoolean:
		return v.Bool == o.Bool
	case KindDate:
		return v.Time.Equal(o.Time)
	default:
		return false
	}
}

// Compare returns -1, 0 or 1 for ordered kinds.
func (v Value) Compare(o Value) (int, error) {
	switch v.Type.Kind {
	case KindText, KindChar, KindSingleSelect:
		return strings.Compare(v.Str, o.Str), nil
	case KindNumber:
		return v.Num.Cmp(o.Num), nil
	case KindDate:
		if v.Time.Before(o.Time) {
			return -1, nil
		}
		if v.Time.After(o.Time) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("values of type %s cannot be ordered", v.Type)
	}
}
