package formula

import "fmt"

// ColumnMapping maps field names to the physical column names of the table
// the generated expression runs against.
type ColumnMapping map[string]string

// GeneratedExpression is a native query fragment with every literal inlined
// and escaped. Fragments compose into larger statements without any bound
// parameter bookkeeping.
type GeneratedExpression struct {
	SQL string
}

// RegistryError reports a resolved tree naming a function the registry no
// longer carries. It indicates a defect, not a user mistake.
type RegistryError struct {
	Name string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("function %q has no registered lowering", e.Name)
}

// Generate lowers a resolved tree to a query expression for the given
// dialect. The tree must come out of Resolve and carry no invalid type;
// otherwise ErrUnresolvedTree is returned.
func Generate(n Node, cols ColumnMapping, d Dialect) (*GeneratedExpression, error) {
	if err := checkResolved(n); err != nil {
		return nil, err
	}
	sql, err := lower(n, cols, d)
	if err != nil {
		return nil, err
	}
	return &GeneratedExpression{SQL: sql}, nil
}

func checkResolved(n Node) error {
	if t := n.ResultType(); t == (Type{}) || t.IsInvalid() {
		return ErrUnresolvedTree
	}
	switch node := n.(type) {
	case *FuncCall:
		for _, arg := range node.Args {
			if err := checkResolved(arg); err != nil {
				return err
			}
		}
	case *BinaryOp, *UnaryOp:
		// Resolve desugars operators into calls; their presence means the
		// tree skipped resolution.
		return ErrUnresolvedTree
	}
	return nil
}

func lower(n Node, cols ColumnMapping, d Dialect) (string, error) {
	switch node := n.(type) {
	case *StringLit:
		return d.TextLiteral(node.Value), nil
	case *NumberLit:
		t := node.Typ
		return d.CastDecimal(node.Value, t.Precision, t.Scale), nil
	case *BoolLit:
		return d.BoolLiteral(node.Value), nil
	case *FieldRef:
		col, ok := cols[node.Name]
		if !ok {
			return "", fmt.Errorf("field %q has no column mapping", node.Name)
		}
		return d.QuoteColumn(col), nil
	case *FuncCall:
		def, ok := Lookup(node.Name)
		if !ok {
			return "", &RegistryError{Name: node.Name}
		}
		args := make([]string, len(node.Args))
		argTypes := make([]Type, len(node.Args))
		for i, arg := range node.Args {
			lowered, err := lower(arg, cols, d)
			if err != nil {
				return "", err
			}
			args[i] = lowered
			argTypes[i] = arg.ResultType()
		}
		return def.SQL(d, argTypes, args), nil
	default:
		return "", ErrUnresolvedTree
	}
}
