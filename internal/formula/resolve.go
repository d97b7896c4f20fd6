package formula

import "strings"

// Schema maps field names to their current semantic types. Field names match
// exactly, including case.
type Schema map[string]Type

// Resolve type-checks a parsed tree against the schema and returns a new,
// fully typed tree. Operators are desugared into calls to their registry
// functions, and sanctioned implicit coercions are made explicit as wrapper
// calls, so generation and evaluation only ever see literals, field
// references and function calls.
//
// Typing problems (unknown field, unknown function, argument mismatch) do
// not fail the resolve: they become terminal invalid types inside the tree,
// and the innermost reason wins. The only hard error is a direct reference
// to currentField, which may be empty when the formula is not attached to a
// field yet.
func Resolve(n Node, schema Schema, currentField string) (Node, error) {
	r := &resolver{schema: schema, currentField: currentField}
	typed := r.resolve(n)
	if r.selfRef != nil {
		return nil, r.selfRef
	}
	return typed, nil
}

// ResolveType resolves a tree and returns just its type. An invalid result
// type is returned as an *InvalidTypeError alongside the tree so callers can
// persist the broken formula with its reason.
func ResolveType(n Node, schema Schema, currentField string) (Node, Type, error) {
	typed, err := Resolve(n, schema, currentField)
	if err != nil {
		return nil, Type{}, err
	}
	t := typed.ResultType()
	if t.IsInvalid() {
		return typed, t, invalidTypeFrom(t)
	}
	return typed, t, nil
}

type resolver struct {
	schema       Schema
	currentField string
	selfRef      *SelfReferenceError
}

func (r *resolver) resolve(n Node) Node {
	switch node := n.(type) {
	case *StringLit:
		return &StringLit{Value: node.Value, Pos: node.Pos, Typ: Text()}
	case *NumberLit:
		return &NumberLit{Value: node.Value, Pos: node.Pos, Typ: numberLitType(node.Value)}
	case *BoolLit:
		return &BoolLit{Value: node.Value, Pos: node.Pos, Typ: Boolean()}
	case *FieldRef:
		return r.resolveField(node)
	case *FuncCall:
		return r.resolveCall(node.Name, node.Args, node.Pos)
	case *BinaryOp:
		return r.resolveCall(OpFunc(node.Op), []Node{node.Left, node.Right}, node.Pos)
	case *UnaryOp:
		return r.resolveCall(UnaryOpFunc(node.Op), []Node{node.Expr}, node.Pos)
	default:
		return &StringLit{Typ: Invalid(n.Span(), "unsupported expression")}
	}
}

func (r *resolver) resolveField(node *FieldRef) Node {
	name := node.Name
	if r.currentField != "" && name == r.currentField {
		if r.selfRef == nil {
			r.selfRef = &SelfReferenceError{Name: name}
		}
		return &FieldRef{Name: name, Pos: node.Pos, Typ: Invalid(node.Pos, "formula field %q cannot reference itself", name)}
	}
	t, ok := r.schema[name]
	if !ok {
		err := &FieldDoesNotExistError{Name: name, At: node.Pos}
		return &FieldRef{Name: name, Pos: node.Pos, Typ: Invalid(node.Pos, "%s", err.Error())}
	}
	return &FieldRef{Name: name, Pos: node.Pos, Typ: t}
}

func (r *resolver) resolveCall(name string, args []Node, at Span) Node {
	typedArgs := make([]Node, len(args))
	for i, arg := range args {
		typedArgs[i] = r.resolve(arg)
	}
	call := &FuncCall{Name: strings.ToLower(name), Args: typedArgs, Pos: at}

	def, ok := Lookup(name)
	if !ok {
		err := &UnknownFunctionError{Name: name, At: at}
		call.Typ = Invalid(at, "%s", err.Error())
		return call
	}

	if t, bad := arityError(def, len(typedArgs), at); bad {
		call.Typ = t
		return call
	}

	// An invalid argument is terminal: its reason becomes this call's type
	// without consulting the definition.
	for _, arg := range typedArgs {
		if t := arg.ResultType(); t.IsInvalid() {
			call.Typ = t
			return call
		}
	}

	argTypes := make([]Type, len(typedArgs))
	for i, arg := range typedArgs {
		spec := def.argSpec(i)
		t := arg.ResultType()
		if !spec.Accept(t) {
			wrapper := ""
			if spec.Coerce != nil {
				wrapper = spec.Coerce(t)
			}
			if wrapper == "" {
				call.Typ = Invalid(arg.Span(), "argument %d to %s must be %s, got %s",
					i+1, def.Name, spec.Want, t.KindName())
				return call
			}
			typedArgs[i] = r.wrapCoercion(wrapper, arg)
			t = typedArgs[i].ResultType()
		}
		argTypes[i] = t
	}

	call.Args = typedArgs
	call.Typ = def.Result(at, argTypes)
	return call
}

// wrapCoercion wraps an already typed argument in an implicit call to a
// registry wrapper function (totext or tonumber).
func (r *resolver) wrapCoercion(wrapper string, arg Node) Node {
	def, ok := Lookup(wrapper)
	if !ok {
		// Coerce names only registry functions; the registry self-check makes
		// this unreachable.
		return &FuncCall{Name: wrapper, Args: []Node{arg}, Pos: arg.Span(),
			Typ: Invalid(arg.Span(), "unknown coercion %s", wrapper)}
	}
	return &FuncCall{
		Name: wrapper,
		Args: []Node{arg},
		Pos:  arg.Span(),
		Typ:  def.Result(arg.Span(), []Type{arg.ResultType()}),
	}
}

func arityError(def *Definition, got int, at Span) (Type, bool) {
	if got < def.MinArgs {
		return Invalid(at, "%s expects at least %d arguments, got %d", def.Name, def.MinArgs, got), true
	}
	if def.MaxArgs >= 0 && got > def.MaxArgs {
		if def.MinArgs == def.MaxArgs {
			return Invalid(at, "%s expects exactly %d arguments, got %d", def.Name, def.MaxArgs, got), true
		}
		return Invalid(at, "%s expects at most %d arguments, got %d", def.Name, def.MaxArgs, got), true
	}
	return Type{}, false
}

// numberLitType derives the declared precision and scale from the literal
// text, so 12.34 types as number(4,2) and 5 as number(1,0).
func numberLitType(text string) Type {
	intPart, fracPart, hasDot := strings.Cut(text, ".")
	intPart = strings.TrimLeft(intPart, "0")
	scale := 0
	if hasDot {
		scale = len(fracPart)
	}
	precision := len(intPart) + scale
	if precision == 0 {
		precision = 1
	}
	return Number(precision, scale)
}
