package formula

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Argument specs shared by the definitions below. Coercions here are the
// whole implicit-coercion table of the language: text slots accept numbers,
// booleans, dates and single selects through totext; number slots accept
// booleans (as 0/1) through tonumber. Nothing else coerces.

func textArg() ArgSpec {
	return ArgSpec{
		Accept: func(t Type) bool { return t.IsTextLike() },
		Coerce: func(t Type) string {
			switch t.Kind {
			case KindNumber, KindBoolean, KindDate, KindSingleSelect:
				return "totext"
			}
			return ""
		},
		Want: "text",
	}
}

func numberArg() ArgSpec {
	return ArgSpec{
		Accept: func(t Type) bool { return t.Kind == KindNumber },
		Coerce: func(t Type) string {
			if t.Kind == KindBoolean {
				return "tonumber"
			}
			return ""
		},
		Want: "a number",
	}
}

func boolArg() ArgSpec {
	return ArgSpec{
		Accept: func(t Type) bool { return t.Kind == KindBoolean },
		Want:   "a boolean",
	}
}

func dateArg() ArgSpec {
	return ArgSpec{
		Accept: func(t Type) bool { return t.Kind == KindDate },
		Want:   "a date",
	}
}

// addOperandArg admits everything '+' and '-' overload on; booleans pass
// through tonumber first so true + 1 is 2.
func addOperandArg() ArgSpec {
	return ArgSpec{
		Accept: func(t Type) bool { return t.IsValid() && t.Kind != KindBoolean },
		Coerce: func(t Type) string {
			if t.Kind == KindBoolean {
				return "tonumber"
			}
			return ""
		},
		Want: "a number, text or a date",
	}
}

func anyArg() ArgSpec {
	return ArgSpec{
		Accept: func(t Type) bool { return t.IsValid() },
		Want:   "any value",
	}
}

func arrayArg() ArgSpec {
	return ArgSpec{
		Accept: func(t Type) bool { return t.Kind == KindArray },
		Want:   "an array",
	}
}

func fixedResult(t Type) func(Span, []Type) Type {
	return func(Span, []Type) Type { return t }
}

// kindComparable reports whether two types may be compared for equality or
// order. Char and SingleSelect compare as text.
func kindComparable(a, b Type) bool {
	return normalizeKind(a) == normalizeKind(b)
}

func normalizeKind(t Type) Kind {
	if t.Kind == KindChar || t.Kind == KindSingleSelect {
		return KindText
	}
	return t.Kind
}

// addResultType implements the overloaded '+' typing: numbers promote,
// text concatenates, a date shifts by days.
func addResultType(at Span, args []Type) Type {
	a, b := args[0], args[1]
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		return promoteAddSub(a, b)
	case a.IsTextLike() && b.IsTextLike():
		return Text()
	case a.Kind == KindDate && b.Kind == KindNumber:
		return a
	default:
		return Invalid(at, "cannot add %s to %s", b.KindName(), a.KindName())
	}
}

// minusResultType implements '-': numbers promote, a date minus days is a
// date, a date minus a date is a whole number of days.
func minusResultType(at Span, args []Type) Type {
	a, b := args[0], args[1]
	switch {
	case a.Kind == KindNumber && b.Kind == KindNumber:
		return promoteAddSub(a, b)
	case a.Kind == KindDate && b.Kind == KindNumber:
		return a
	case a.Kind == KindDate && b.Kind == KindDate:
		return Number(10, 0)
	default:
		return Invalid(at, "cannot subtract %s from %s", b.KindName(), a.KindName())
	}
}

func comparisonResultType(op string) func(Span, []Type) Type {
	return func(at Span, args []Type) Type {
		if !kindComparable(args[0], args[1]) {
			return Invalid(at, "cannot compare %s with %s using %s",
				args[0].KindName(), args[1].KindName(), op)
		}
		return Boolean()
	}
}

func orderedComparisonResultType(op string) func(Span, []Type) Type {
	return func(at Span, args []Type) Type {
		if !kindComparable(args[0], args[1]) {
			return Invalid(at, "cannot compare %s with %s using %s",
				args[0].KindName(), args[1].KindName(), op)
		}
		switch normalizeKind(args[0]) {
		case KindText, KindNumber, KindDate:
			return Boolean()
		default:
			return Invalid(at, "values of type %s cannot be ordered", args[0].KindName())
		}
	}
}

// ifResultType unifies the two branch types: both branches must share a kind;
// numbers take the wider precision and scale, dates keep time when either
// branch does.
func ifResultType(at Span, args []Type) Type {
	a, b := args[1], args[2]
	if normalizeKind(a) != normalizeKind(b) {
		return Invalid(at, "the two outcomes of an if must be the same type, got %s and %s",
			a.KindName(), b.KindName())
	}
	switch normalizeKind(a) {
	case KindNumber:
		// widen integer digits and decimal places independently so neither
		// branch gets truncated
		scale := maxInt(a.Scale, b.Scale)
		intDigits := maxInt(a.Precision-a.Scale, b.Precision-b.Scale)
		return Number(intDigits+scale, scale)
	case KindDate:
		return Date(a.IncludeTime || b.IncludeTime, a.TZAware || b.TZAware)
	case KindText:
		return Text()
	default:
		return a
	}
}

// coalesceText wraps each fragment so NULL columns concatenate as empty text.
func coalesceText(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprintf("COALESCE(%s, '')", a)
	}
	return out
}

func sqlConcat(args []string) string {
	return "(" + strings.Join(coalesceText(args), " || ") + ")"
}

func evalBinaryNumeric(f func(a, b decimal.Decimal, t Type) decimal.Decimal, result func(Span, []Type) Type) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		t := result(Span{}, []Type{args[0].Type, args[1].Type})
		if args[0].Null || args[1].Null {
			return NullValue(t), nil
		}
		return NumberValue(f(args[0].Num, args[1].Num, t), t), nil
	}
}

func allDefinitions() []*Definition {
	return []*Definition{
		// --- text ---
		{
			Name: "upper", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{textArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("UPPER(%s)", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				return TextValue(strings.ToUpper(args[0].AsText())), nil
			},
		},
		{
			Name: "lower", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{textArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("LOWER(%s)", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				return TextValue(strings.ToLower(args[0].AsText())), nil
			},
		},
		{
			Name: "concat", MinArgs: 2, MaxArgs: -1, Args: []ArgSpec{textArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return sqlConcat(args)
			},
			Eval: func(args []Value) (Value, error) {
				var sb strings.Builder
				for _, a := range args {
					sb.WriteString(a.AsText())
				}
				return TextValue(sb.String()), nil
			},
		},
		{
			Name: "totext", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{anyArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				if argTypes[0].Kind == KindArray {
					return d.ArrayJoin(args[0], d.TextLiteral(", "))
				}
				return d.CastText(args[0], argTypes[0])
			},
			Eval: func(args []Value) (Value, error) {
				return TextValue(args[0].AsText()), nil
			},
		},
		{
			// t passes text through untouched and turns every other type into
			// empty text. Useful for guarding concat inputs.
			Name: "t", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{anyArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				if argTypes[0].IsTextLike() {
					return args[0]
				}
				return "''"
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Type.IsTextLike() {
					return TextValue(args[0].Str), nil
				}
				return TextValue(""), nil
			},
		},
		{
			Name: "length", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{textArg()},
			Result: fixedResult(Number(10, 0)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("LENGTH(%s)", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				return NumberValue(decimal.NewFromInt(int64(len([]rune(args[0].AsText())))), Number(10, 0)), nil
			},
		},
		{
			Name: "left", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{textArg(), numberArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.Left(args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				runes := []rune(args[0].AsText())
				n := int(args[1].Num.IntPart())
				if n < 0 {
					n = 0
				}
				if n > len(runes) {
					n = len(runes)
				}
				return TextValue(string(runes[:n])), nil
			},
		},
		{
			Name: "right", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{textArg(), numberArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.Right(args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				runes := []rune(args[0].AsText())
				n := int(args[1].Num.IntPart())
				if n < 0 {
					n = 0
				}
				if n > len(runes) {
					n = len(runes)
				}
				return TextValue(string(runes[len(runes)-n:])), nil
			},
		},
		{
			Name: "trim", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{textArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("TRIM(%s)", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				return TextValue(strings.TrimSpace(args[0].AsText())), nil
			},
		},
		{
			Name: "replace", MinArgs: 3, MaxArgs: 3, Args: []ArgSpec{textArg(), textArg(), textArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("REPLACE(%s, %s, %s)", args[0], args[1], args[2])
			},
			Eval: func(args []Value) (Value, error) {
				return TextValue(strings.ReplaceAll(args[0].AsText(), args[1].AsText(), args[2].AsText())), nil
			},
		},
		{
			Name: "contains", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{textArg(), textArg()},
			Result: fixedResult(Boolean()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.Contains(args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				return BoolValue(strings.Contains(args[0].AsText(), args[1].AsText())), nil
			},
		},

		// --- number ---
		{
			Name: "add", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{addOperandArg(), addOperandArg()},
			Result: addResultType,
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				result := addResultType(Span{}, argTypes)
				switch {
				case argTypes[0].IsTextLike():
					return sqlConcat(args)
				case argTypes[0].Kind == KindDate:
					return d.DateAddDays(args[0], args[1], argTypes[0].IncludeTime)
				default:
					return d.CastDecimal(fmt.Sprintf("(%s + %s)", args[0], args[1]), result.Precision, result.Scale)
				}
			},
			Eval: func(args []Value) (Value, error) {
				result := addResultType(Span{}, []Type{args[0].Type, args[1].Type})
				switch {
				case args[0].Type.IsTextLike():
					return TextValue(args[0].AsText() + args[1].AsText()), nil
				case args[0].Type.Kind == KindDate:
					if args[0].Null || args[1].Null {
						return NullValue(result), nil
					}
					return DateValue(args[0].Time.AddDate(0, 0, int(args[1].Num.IntPart())), result), nil
				default:
					if args[0].Null || args[1].Null {
						return NullValue(result), nil
					}
					return NumberValue(args[0].Num.Add(args[1].Num), result), nil
				}
			},
		},
		{
			Name: "minus", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{addOperandArg(), addOperandArg()},
			Result: minusResultType,
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				result := minusResultType(Span{}, argTypes)
				switch {
				case argTypes[0].Kind == KindDate && argTypes[1].Kind == KindDate:
					return d.DateDiffDays(args[0], args[1])
				case argTypes[0].Kind == KindDate:
					return d.DateAddDays(args[0], fmt.Sprintf("(-(%s))", args[1]), argTypes[0].IncludeTime)
				default:
					return d.CastDecimal(fmt.Sprintf("(%s - %s)", args[0], args[1]), result.Precision, result.Scale)
				}
			},
			Eval: func(args []Value) (Value, error) {
				result := minusResultType(Span{}, []Type{args[0].Type, args[1].Type})
				if args[0].Null || args[1].Null {
					return NullValue(result), nil
				}
				switch {
				case args[0].Type.Kind == KindDate && args[1].Type.Kind == KindDate:
					days := int64(args[0].Time.Sub(args[1].Time).Hours() / 24)
					return NumberValue(decimal.NewFromInt(days), result), nil
				case args[0].Type.Kind == KindDate:
					return DateValue(args[0].Time.AddDate(0, 0, -int(args[1].Num.IntPart())), result), nil
				default:
					return NumberValue(args[0].Num.Sub(args[1].Num), result), nil
				}
			},
		},
		{
			Name: "multiply", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{numberArg(), numberArg()},
			Result: func(at Span, args []Type) Type { return promoteMul(args[0], args[1]) },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				result := promoteMul(argTypes[0], argTypes[1])
				return d.CastDecimal(fmt.Sprintf("(%s * %s)", args[0], args[1]), result.Precision, result.Scale)
			},
			Eval: evalBinaryNumeric(func(a, b decimal.Decimal, t Type) decimal.Decimal {
				return a.Mul(b).Round(int32(t.Scale))
			}, func(at Span, args []Type) Type { return promoteMul(args[0], args[1]) }),
		},
		{
			Name: "divide", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{numberArg(), numberArg()},
			Result: func(at Span, args []Type) Type { return promoteDiv(args[0], args[1]) },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				result := promoteDiv(argTypes[0], argTypes[1])
				// NULLIF avoids a hard division-by-zero error; the row gets NULL.
				return d.CastDecimal(fmt.Sprintf("(%s / NULLIF(%s, 0))", args[0], args[1]), result.Precision, result.Scale)
			},
			Eval: func(args []Value) (Value, error) {
				result := promoteDiv(args[0].Type, args[1].Type)
				if args[0].Null || args[1].Null || args[1].Num.IsZero() {
					return NullValue(result), nil
				}
				return NumberValue(args[0].Num.DivRound(args[1].Num, int32(result.Scale)), result), nil
			},
		},
		{
			Name: "negate", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{numberArg()},
			Result: func(at Span, args []Type) Type { return args[0] },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(-(%s))", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Null {
					return NullValue(args[0].Type), nil
				}
				return NumberValue(args[0].Num.Neg(), args[0].Type), nil
			},
		},
		{
			Name: "abs", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{numberArg()},
			Result: func(at Span, args []Type) Type { return args[0] },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("ABS(%s)", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Null {
					return NullValue(args[0].Type), nil
				}
				return NumberValue(args[0].Num.Abs(), args[0].Type), nil
			},
		},
		{
			Name: "round", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{numberArg()},
			Result: func(at Span, args []Type) Type { return Number(args[0].Precision, 0) },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.CastDecimal(fmt.Sprintf("ROUND(%s)", args[0]), argTypes[0].Precision, 0)
			},
			Eval: func(args []Value) (Value, error) {
				t := Number(args[0].Type.Precision, 0)
				if args[0].Null {
					return NullValue(t), nil
				}
				return NumberValue(args[0].Num.Round(0), t), nil
			},
		},
		{
			Name: "floor", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{numberArg()},
			Result: func(at Span, args []Type) Type { return Number(args[0].Precision, 0) },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.CastDecimal(fmt.Sprintf("FLOOR(%s)", args[0]), argTypes[0].Precision, 0)
			},
			Eval: func(args []Value) (Value, error) {
				t := Number(args[0].Type.Precision, 0)
				if args[0].Null {
					return NullValue(t), nil
				}
				return NumberValue(args[0].Num.Floor(), t), nil
			},
		},
		{
			Name: "ceil", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{numberArg()},
			Result: func(at Span, args []Type) Type { return Number(args[0].Precision, 0) },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.CastDecimal(fmt.Sprintf("CEIL(%s)", args[0]), argTypes[0].Precision, 0)
			},
			Eval: func(args []Value) (Value, error) {
				t := Number(args[0].Type.Precision, 0)
				if args[0].Null {
					return NullValue(t), nil
				}
				return NumberValue(args[0].Num.Ceil(), t), nil
			},
		},
		{
			Name: "tonumber", MinArgs: 1, MaxArgs: 1,
			Args: []ArgSpec{{
				Accept: func(t Type) bool {
					return t.IsTextLike() || t.Kind == KindNumber || t.Kind == KindBoolean
				},
				Want: "text, a number or a boolean",
			}},
			Result: func(at Span, args []Type) Type {
				switch args[0].Kind {
				case KindNumber:
					return args[0]
				case KindBoolean:
					return Number(1, 0)
				default:
					return Number(MaxPrecision, 5)
				}
			},
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				switch argTypes[0].Kind {
				case KindNumber:
					return args[0]
				case KindBoolean:
					return fmt.Sprintf("(CASE WHEN %s THEN 1 ELSE 0 END)", args[0])
				default:
					return d.CastDecimal(args[0], MaxPrecision, 5)
				}
			},
			Eval: func(args []Value) (Value, error) {
				switch args[0].Type.Kind {
				case KindNumber:
					return args[0], nil
				case KindBoolean:
					t := Number(1, 0)
					if args[0].Null {
						return NullValue(t), nil
					}
					if args[0].Bool {
						return NumberValue(decimal.NewFromInt(1), t), nil
					}
					return NumberValue(decimal.NewFromInt(0), t), nil
				default:
					t := Number(MaxPrecision, 5)
					if args[0].IsBlank() {
						return NullValue(t), nil
					}
					n, err := decimal.NewFromString(strings.TrimSpace(args[0].AsText()))
					if err != nil {
						return NullValue(t), nil
					}
					return NumberValue(n, t), nil
				}
			},
		},

		// --- boolean ---
		{
			Name: "if", MinArgs: 3, MaxArgs: 3, Args: []ArgSpec{boolArg(), anyArg(), anyArg()},
			Result: ifResultType,
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(CASE WHEN %s THEN %s ELSE %s END)", args[0], args[1], args[2])
			},
			Eval: func(args []Value) (Value, error) {
				if !args[0].Null && args[0].Bool {
					return args[1], nil
				}
				return args[2], nil
			},
		},
		{
			Name: "equal", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{anyArg(), anyArg()},
			Result: comparisonResultType("="),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s = %s)", args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Null || args[1].Null {
					return NullValue(Boolean()), nil
				}
				return BoolValue(args[0].Equal(args[1])), nil
			},
		},
		{
			Name: "not_equal", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{anyArg(), anyArg()},
			Result: comparisonResultType("!="),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s <> %s)", args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Null || args[1].Null {
					return NullValue(Boolean()), nil
				}
				return BoolValue(!args[0].Equal(args[1])), nil
			},
		},
		{
			Name: "greater_than", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{anyArg(), anyArg()},
			Result: orderedComparisonResultType(">"),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s > %s)", args[0], args[1])
			},
			Eval: evalOrdered(func(c int) bool { return c > 0 }),
		},
		{
			Name: "greater_than_or_equal", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{anyArg(), anyArg()},
			Result: orderedComparisonResultType(">="),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s >= %s)", args[0], args[1])
			},
			Eval: evalOrdered(func(c int) bool { return c >= 0 }),
		},
		{
			Name: "less_than", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{anyArg(), anyArg()},
			Result: orderedComparisonResultType("<"),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s < %s)", args[0], args[1])
			},
			Eval: evalOrdered(func(c int) bool { return c < 0 }),
		},
		{
			Name: "less_than_or_equal", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{anyArg(), anyArg()},
			Result: orderedComparisonResultType("<="),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s <= %s)", args[0], args[1])
			},
			Eval: evalOrdered(func(c int) bool { return c <= 0 }),
		},
		{
			Name: "and", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{boolArg(), boolArg()},
			Result: fixedResult(Boolean()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s AND %s)", args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				// Three-valued like SQL AND: a false operand wins over null.
				if (!args[0].Null && !args[0].Bool) || (!args[1].Null && !args[1].Bool) {
					return BoolValue(false), nil
				}
				if args[0].Null || args[1].Null {
					return NullValue(Boolean()), nil
				}
				return BoolValue(true), nil
			},
		},
		{
			Name: "or", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{boolArg(), boolArg()},
			Result: fixedResult(Boolean()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(%s OR %s)", args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				// Three-valued like SQL OR: a true operand wins over null.
				if (!args[0].Null && args[0].Bool) || (!args[1].Null && args[1].Bool) {
					return BoolValue(true), nil
				}
				if args[0].Null || args[1].Null {
					return NullValue(Boolean()), nil
				}
				return BoolValue(false), nil
			},
		},
		{
			Name: "not", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{boolArg()},
			Result: fixedResult(Boolean()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return fmt.Sprintf("(NOT %s)", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Null {
					return NullValue(Boolean()), nil
				}
				return BoolValue(!args[0].Bool), nil
			},
		},
		{
			Name: "isblank", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{anyArg()},
			Result: fixedResult(Boolean()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				if argTypes[0].IsTextLike() || argTypes[0].Kind == KindSingleSelect {
					return fmt.Sprintf("(COALESCE(%s, '') = '')", args[0])
				}
				if argTypes[0].Kind == KindArray {
					return fmt.Sprintf("(%s = 0)", d.ArrayLength(args[0]))
				}
				return fmt.Sprintf("(%s IS NULL)", args[0])
			},
			Eval: func(args []Value) (Value, error) {
				return BoolValue(args[0].IsBlank()), nil
			},
		},

		// --- date ---
		{
			Name: "todate", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{textArg(), textArg()},
			Result: fixedResult(Date(false, false)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.ParseDate(args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				t := Date(false, false)
				if args[0].IsBlank() {
					return NullValue(t), nil
				}
				layout := toCharToGoLayout(args[1].AsText())
				parsed, err := parseTimeLenient(args[0].AsText(), layout)
				if err != nil {
					return NullValue(t), nil
				}
				return DateValue(parsed, t), nil
			},
		},
		{
			Name: "day", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{dateArg()},
			Result: fixedResult(Number(10, 0)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.DatePart("day", args[0])
			},
			Eval: evalDatePart(func(t timePart) int { return t.day }),
		},
		{
			Name: "month", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{dateArg()},
			Result: fixedResult(Number(10, 0)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.DatePart("month", args[0])
			},
			Eval: evalDatePart(func(t timePart) int { return t.month }),
		},
		{
			Name: "year", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{dateArg()},
			Result: fixedResult(Number(10, 0)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.DatePart("year", args[0])
			},
			Eval: evalDatePart(func(t timePart) int { return t.year }),
		},
		{
			Name: "now", MinArgs: 0, MaxArgs: 0,
			Result: fixedResult(Date(true, true)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.Now()
			},
			Eval: func(args []Value) (Value, error) {
				return DateValue(nowFunc(), Date(true, true)), nil
			},
		},
		{
			Name: "today", MinArgs: 0, MaxArgs: 0,
			Result: fixedResult(Date(false, false)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.Today()
			},
			Eval: func(args []Value) (Value, error) {
				y, m, day := nowFunc().Date()
				return DateValue(dateOnly(y, int(m), day), Date(false, false)), nil
			},
		},
		{
			Name: "date_diff", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{dateArg(), dateArg()},
			Result: fixedResult(Number(10, 0)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.DateDiffDays(args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				t := Number(10, 0)
				if args[0].Null || args[1].Null {
					return NullValue(t), nil
				}
				days := int64(args[0].Time.Sub(args[1].Time).Hours() / 24)
				return NumberValue(decimal.NewFromInt(days), t), nil
			},
		},
		{
			Name: "date_add", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{dateArg(), numberArg()},
			Result: func(at Span, args []Type) Type { return args[0] },
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.DateAddDays(args[0], args[1], argTypes[0].IncludeTime)
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Null || args[1].Null {
					return NullValue(args[0].Type), nil
				}
				return DateValue(args[0].Time.AddDate(0, 0, int(args[1].Num.IntPart())), args[0].Type), nil
			},
		},
		{
			Name: "datetime_format", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{dateArg(), textArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.FormatDate(args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				if args[0].Null {
					return TextValue(""), nil
				}
				return TextValue(args[0].Time.Format(toCharToGoLayout(args[1].AsText()))), nil
			},
		},

		// --- array ---
		{
			Name: "count", MinArgs: 1, MaxArgs: 1, Args: []ArgSpec{arrayArg()},
			Result: fixedResult(Number(10, 0)),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.ArrayLength(args[0])
			},
			Eval: func(args []Value) (Value, error) {
				return NumberValue(decimal.NewFromInt(int64(len(args[0].Arr))), Number(10, 0)), nil
			},
		},
		{
			Name: "join", MinArgs: 2, MaxArgs: 2, Args: []ArgSpec{arrayArg(), textArg()},
			Result: fixedResult(Text()),
			SQL: func(d Dialect, argTypes []Type, args []string) string {
				return d.ArrayJoin(args[0], args[1])
			},
			Eval: func(args []Value) (Value, error) {
				parts := make([]string, len(args[0].Arr))
				for i, e := range args[0].Arr {
					parts[i] = e.AsText()
				}
				return TextValue(strings.Join(parts, args[1].AsText())), nil
			},
		},
	}
}

func evalOrdered(ok func(int) bool) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		if args[0].Null || args[1].Null {
			return NullValue(Boolean()), nil
		}
		c, err := args[0].Compare(args[1])
		if err != nil {
			return Value{}, err
		}
		return BoolValue(ok(c)), nil
	}
}

type timePart struct{ year, month, day int }

func evalDatePart(pick func(timePart) int) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		t := Number(10, 0)
		if args[0].Null {
			return NullValue(t), nil
		}
		y, m, d := args[0].Time.Date()
		return NumberValue(decimal.NewFromInt(int64(pick(timePart{y, int(m), d}))), t), nil
	}
}
