package formula

// ComputeResult is the outcome of running the full pipeline over one
// formula. When the formula types correctly, Expression carries the query
// fragment; when it does not, Invalid carries the reason and Expression is
// nil. Either way Tree, Type and Referenced are populated so the field can
// be saved with its artifacts.
type ComputeResult struct {
	Tree       Node
	Type       Type
	Expression *GeneratedExpression
	Referenced []string
	Invalid    *InvalidTypeError
}

// ComputeFormula parses, resolves and generates a formula in one pass.
// Hard failures, where nothing can be saved, come back as an error: the
// source is too long or malformed, or the formula references its own field.
// A formula that merely fails to type is still a success here, with the
// problem recorded in Invalid.
func ComputeFormula(source string, schema Schema, currentField string, cols ColumnMapping, d Dialect) (*ComputeResult, error) {
	tree, err := Parse(source)
	if err != nil {
		return nil, err
	}
	typed, err := Resolve(tree, schema, currentField)
	if err != nil {
		return nil, err
	}
	result := &ComputeResult{
		Tree:       typed,
		Type:       typed.ResultType(),
		Referenced: ReferencedFields(typed),
	}
	if result.Type.IsInvalid() {
		result.Invalid = invalidTypeFrom(result.Type)
		return result, nil
	}
	expr, err := Generate(typed, cols, d)
	if err != nil {
		return nil, err
	}
	result.Expression = expr
	return result, nil
}

// ParseReferencedFields returns the distinct field names a formula mentions,
// without resolving them against any schema. Dependency tracking uses this
// before types are known.
func ParseReferencedFields(source string) ([]string, error) {
	tree, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return ReferencedFields(tree), nil
}
