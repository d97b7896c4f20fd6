package formula

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// Program is a compiled in-process form of a resolved formula, used for row
// previews and recomputation without a database round trip. Compile once,
// run per row.
type Program struct {
	Type    Type
	schema  Schema
	program *vm.Program
}

// CompileProgram lowers a resolved tree to an evaluable program. The tree
// must be valid; ErrUnresolvedTree is returned otherwise.
func CompileProgram(typed Node, schema Schema) (*Program, error) {
	if err := checkResolved(typed); err != nil {
		return nil, err
	}
	src := exprSource(typed)
	program, err := expr.Compile(src, expr.Env(evalEnv(nil, schema)))
	if err != nil {
		return nil, fmt.Errorf("compile formula program: %w", err)
	}
	return &Program{Type: typed.ResultType(), schema: schema, program: program}, nil
}

// Run evaluates the program against one row of raw values keyed by field
// name.
func (p *Program) Run(row map[string]any) (Value, error) {
	out, err := expr.Run(p.program, evalEnv(row, p.schema))
	if err != nil {
		return Value{}, fmt.Errorf("run formula program: %w", err)
	}
	v, ok := out.(Value)
	if !ok {
		return Value{}, fmt.Errorf("formula program produced %T, want a value", out)
	}
	return v, nil
}

// exprSource renders a resolved tree as expression-language source. Every
// node becomes a helper call so the host functions keep full control of
// typing and null handling.
func exprSource(n Node) string {
	switch node := n.(type) {
	case *StringLit:
		return fmt.Sprintf("f_text(%s)", strconv.Quote(node.Value))
	case *NumberLit:
		t := node.Typ
		return fmt.Sprintf("f_number(%s, %d, %d)", strconv.Quote(node.Value), t.Precision, t.Scale)
	case *BoolLit:
		return fmt.Sprintf("f_bool(%t)", node.Value)
	case *FieldRef:
		return fmt.Sprintf("f_field(%s)", strconv.Quote(node.Name))
	case *FuncCall:
		parts := make([]string, 0, len(node.Args)+1)
		parts = append(parts, strconv.Quote(node.Name))
		for _, arg := range node.Args {
			parts = append(parts, exprSource(arg))
		}
		return fmt.Sprintf("f_call(%s)", strings.Join(parts, ", "))
	default:
		return `f_text("")`
	}
}

func evalEnv(row map[string]any, schema Schema) map[string]any {
	return map[string]any{
		"f_text": func(s string) Value { return TextValue(s) },
		"f_number": func(text string, precision, scale int) (Value, error) {
			n, err := decimal.NewFromString(text)
			if err != nil {
				return Value{}, fmt.Errorf("bad number literal %q: %w", text, err)
			}
			return NumberValue(n, Number(precision, scale)), nil
		},
		"f_bool": func(b bool) Value { return BoolValue(b) },
		"f_field": func(name string) (Value, error) {
			t, ok := schema[name]
			if !ok {
				return Value{}, fmt.Errorf("field %q missing from schema", name)
			}
			return ValueFromRaw(row[name], t)
		},
		"f_call": func(name string, args ...Value) (Value, error) {
			def, ok := Lookup(name)
			if !ok {
				return Value{}, &RegistryError{Name: name}
			}
			return def.Eval(args)
		},
	}
}

// ValueFromRaw converts a raw row value, as a driver or JSON decoder
// produces it, into a typed Value per the field's semantic type. nil is the
// typed null.
func ValueFromRaw(raw any, t Type) (Value, error) {
	if raw == nil {
		return NullValue(t), nil
	}
	switch t.Kind {
	case KindText, KindChar, KindSingleSelect:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("field value %T is not text", raw)
		}
		return Value{Type: t, Str: s}, nil
	case KindNumber:
		n, err := decimalFromRaw(raw)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(n, t), nil
	case KindBoolean:
		switch v := raw.(type) {
		case bool:
			return BoolValue(v), nil
		case int64:
			return BoolValue(v != 0), nil
		default:
			return Value{}, fmt.Errorf("field value %T is not a boolean", raw)
		}
	case KindDate:
		switch v := raw.(type) {
		case time.Time:
			return DateValue(v, t), nil
		case string:
			parsed, err := parseTimeLenient(v, DateTimeLayout)
			if err != nil {
				return Value{}, fmt.Errorf("field value %q is not a date", v)
			}
			return DateValue(parsed, t), nil
		default:
			return Value{}, fmt.Errorf("field value %T is not a date", raw)
		}
	case KindArray:
		elems, ok := raw.([]any)
		if !ok {
			return Value{}, fmt.Errorf("field value %T is not an array", raw)
		}
		elemType := Text()
		if t.Elem != nil {
			elemType = *t.Elem
		}
		arr := make([]Value, len(elems))
		for i, e := range elems {
			v, err := ValueFromRaw(e, elemType)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return ArrayValue(arr, elemType), nil
	default:
		return Value{}, fmt.Errorf("cannot read a value of type %s", t)
	}
}

func decimalFromRaw(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case []byte:
		return decimal.NewFromString(string(v))
	default:
		return decimal.Decimal{}, fmt.Errorf("field value %T is not a number", raw)
	}
}
