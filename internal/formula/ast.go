package formula

// Span marks a region of the formula source text as [Start, End) byte offsets.
type Span struct {
	Start int
	End   int
}

// Node is the interface for all formula AST nodes. A node owns its children;
// trees are never shared between calls. Before resolution a node's type is the
// zero Type; Resolve returns a new tree with every node typed.
type Node interface {
	node()
	// Span returns the source region this node was parsed from.
	Span() Span
	// ResultType returns the semantic type assigned by the resolver.
	ResultType() Type
}

// StringLit is a quoted string literal.
type StringLit struct {
	Value string
	Pos   Span
	Typ   Type
}

// NumberLit is an integer or fixed decimal literal. The literal text is kept
// verbatim so the declared scale is preserved exactly.
type NumberLit struct {
	Value string
	Pos   Span
	Typ   Type
}

// BoolLit is a true/false literal.
type BoolLit struct {
	Value bool
	Pos   Span
	Typ   Type
}

// FieldRef references another field in the same table by name, written as
// field('Name'). The reference resolves to the referenced field's current
// semantic type; it never owns or expands the referenced field's own tree.
type FieldRef struct {
	Name string
	Pos  Span
	Typ  Type
}

// FuncCall is a call to a registered formula function.
type FuncCall struct {
	Name string
	Args []Node
	Pos  Span
	Typ  Type
}

// BinaryOp is an infix operator application. Operators are sugar for registry
// functions: resolution and generation route them through the definition
// named by OpFunc.
type BinaryOp struct {
	Op    TokenType
	Left  Node
	Right Node
	Pos   Span
	Typ   Type
}

// UnaryOp is a prefix operator application (negation or 'not').
type UnaryOp struct {
	Op   TokenType
	Expr Node
	Pos  Span
	Typ  Type
}

func (n *StringLit) node() {}
func (n *NumberLit) node() {}
func (n *BoolLit) node()   {}
func (n *FieldRef) node()  {}
func (n *FuncCall) node()  {}
func (n *BinaryOp) node()  {}
func (n *UnaryOp) node()   {}

func (n *StringLit) Span() Span { return n.Pos }
func (n *NumberLit) Span() Span { return n.Pos }
func (n *BoolLit) Span() Span   { return n.Pos }
func (n *FieldRef) Span() Span  { return n.Pos }
func (n *FuncCall) Span() Span  { return n.Pos }
func (n *BinaryOp) Span() Span  { return n.Pos }
func (n *UnaryOp) Span() Span   { return n.Pos }

func (n *StringLit) ResultType() Type { return n.Typ }
func (n *NumberLit) ResultType() Type { return n.Typ }
func (n *BoolLit) ResultType() Type   { return n.Typ }
func (n *FieldRef) ResultType() Type  { return n.Typ }
func (n *FuncCall) ResultType() Type  { return n.Typ }
func (n *BinaryOp) ResultType() Type  { return n.Typ }
func (n *UnaryOp) ResultType() Type   { return n.Typ }

// OpFunc maps an operator token to its registry function name.
func OpFunc(op TokenType) string {
	switch op {
	case TOKEN_PLUS:
		return "add"
	case TOKEN_MINUS:
		return "minus"
	case TOKEN_STAR:
		return "multiply"
	case TOKEN_SLASH:
		return "divide"
	case TOKEN_EQ:
		return "equal"
	case TOKEN_NE:
		return "not_equal"
	case TOKEN_GT:
		return "greater_than"
	case TOKEN_GE:
		return "greater_than_or_equal"
	case TOKEN_LT:
		return "less_than"
	case TOKEN_LE:
		return "less_than_or_equal"
	case TOKEN_AND:
		return "and"
	case TOKEN_OR:
		return "or"
	case TOKEN_NOT:
		return "not"
	default:
		return ""
	}
}

// UnaryOpFunc maps a prefix operator token to its registry function name.
func UnaryOpFunc(op TokenType) string {
	switch op {
	case TOKEN_MINUS:
		return "negate"
	case TOKEN_NOT:
		return "not"
	default:
		return ""
	}
}

// ReferencedFields walks the tree and collects the distinct field names it
// references, in first-seen order. No type resolution is performed.
func ReferencedFields(n Node) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *FieldRef:
			if !seen[node.Name] {
				seen[node.Name] = true
				names = append(names, node.Name)
			}
		case *FuncCall:
			for _, arg := range node.Args {
				walk(arg)
			}
		case *BinaryOp:
			walk(node.Left)
			walk(node.Right)
		case *UnaryOp:
			walk(node.Expr)
		}
	}
	walk(n)
	return names
}
