package formula

// DefaultMaxFormulaLength bounds worst-case parse cost. The service overrides
// it from configuration at startup via SetMaxFormulaLength.
const DefaultMaxFormulaLength = 10000

var maxFormulaLength = DefaultMaxFormulaLength

// SetMaxFormulaLength sets the process-wide maximum formula source length.
// Called once during startup, before any formulas are parsed.
func SetMaxFormulaLength(n int) {
	if n > 0 {
		maxFormulaLength = n
	}
}

// Parser parses formula tokens into an AST.
//
// Precedence, low to high: or, and, not, comparison, add/sub, mul/div,
// unary minus, primary. The grammar is deterministic: the same source text
// always yields a structurally identical tree.
type Parser struct {
	lexer *Lexer
	cur   Token
}

// Parse checks the source length, then parses the formula text into an
// untyped AST. The returned error is a *MaximumFormulaSizeError or a
// *SyntaxError.
func Parse(source string) (Node, error) {
	if len(source) > maxFormulaLength {
		return nil, &MaximumFormulaSizeError{Size: len(source), Max: maxFormulaLength}
	}
	p := &Parser{lexer: NewLexer(source)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != TOKEN_EOF {
		return nil, newSyntaxError(p.cur.Pos, "unexpected %s after end of formula", p.cur.Type)
	}
	return node, nil
}

func (p *Parser) advance() error {
	tok, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) parseExpr() (Node, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TOKEN_OR {
		op := p.cur.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Pos: spanOver(left, right)}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TOKEN_AND {
		op := p.cur.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Pos: spanOver(left, right)}
	}
	return left, nil
}

func (p *Parser) parseNot() (Node, error) {
	if p.cur.Type == TOKEN_NOT {
		start := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: TOKEN_NOT, Expr: expr, Pos: Span{Start: start, End: expr.Span().End}}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TOKEN_EQ || p.cur.Type == TOKEN_NE ||
		p.cur.Type == TOKEN_LT || p.cur.Type == TOKEN_GT ||
		p.cur.Type == TOKEN_LE || p.cur.Type == TOKEN_GE {
		op := p.cur.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Pos: spanOver(left, right)}
	}
	return left, nil
}

func (p *Parser) parseAddSub() (Node, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TOKEN_PLUS || p.cur.Type == TOKEN_MINUS {
		op := p.cur.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Pos: spanOver(left, right)}
	}
	return left, nil
}

func (p *Parser) parseMulDiv() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TOKEN_STAR || p.cur.Type == TOKEN_SLASH {
		op := p.cur.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Pos: spanOver(left, right)}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.cur.Type == TOKEN_MINUS {
		start := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: TOKEN_MINUS, Expr: expr, Pos: Span{Start: start, End: expr.Span().End}}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	switch p.cur.Type {
	case TOKEN_NUMBER:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &NumberLit{Value: tok.Value, Pos: Span{Start: tok.Pos, End: tok.End}}, nil

	case TOKEN_STRING:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &StringLit{Value: tok.Value, Pos: Span{Start: tok.Pos, End: tok.End}}, nil

	case TOKEN_TRUE, TOKEN_FALSE:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &BoolLit{Value: tok.Type == TOKEN_TRUE, Pos: Span{Start: tok.Pos, End: tok.End}}, nil

	case TOKEN_IDENT:
		return p.parseCall()

	case TOKEN_LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.Type != TOKEN_RPAREN {
			return nil, newSyntaxError(p.cur.Pos, "expected ')' after expression, got %s", p.cur.Type)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil

	case TOKEN_EOF:
		return nil, newSyntaxError(p.cur.Pos, "unexpected end of formula")

	default:
		return nil, newSyntaxError(p.cur.Pos, "unexpected %s", p.cur.Type)
	}
}

// parseCall parses a function call. Bare identifiers are not values in the
// formula language; every identifier must be called. The special form
// field('Name') parses to a FieldRef node.
func (p *Parser) parseCall() (Node, error) {
	nameTok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Type != TOKEN_LPAREN {
		return nil, newSyntaxError(nameTok.Pos, "expected '(' after %q", nameTok.Value)
	}

	args, end, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	span := Span{Start: nameTok.Pos, End: end}

	if isFieldKeyword(nameTok.Value) {
		lit, ok := singleStringArg(args)
		if !ok {
			return nil, newSyntaxError(nameTok.Pos, "field() takes exactly one string: the field name")
		}
		return &FieldRef{Name: lit.Value, Pos: span}, nil
	}

	return &FuncCall{Name: nameTok.Value, Args: args, Pos: span}, nil
}

// parseArgs parses '(' expr (',' expr)* ')' and returns the arguments plus
// the end offset of the closing paren.
func (p *Parser) parseArgs() ([]Node, int, error) {
	if err := p.advance(); err != nil {
		return nil, 0, err
	}

	var args []Node
	if p.cur.Type != TOKEN_RPAREN {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, 0, err
		}
		args = append(args, arg)

		for p.cur.Type == TOKEN_COMMA {
			if err := p.advance(); err != nil {
				return nil, 0, err
			}
			arg, err := p.parseExpr()
			if err != nil {
				return nil, 0, err
			}
			args = append(args, arg)
		}
	}

	if p.cur.Type != TOKEN_RPAREN {
		return nil, 0, newSyntaxError(p.cur.Pos, "expected ')' after arguments, got %s", p.cur.Type)
	}
	end := p.cur.End
	if err := p.advance(); err != nil {
		return nil, 0, err
	}
	return args, end, nil
}

func isFieldKeyword(name string) bool {
	return len(name) == 5 &&
		(name[0] == 'f' || name[0] == 'F') &&
		(name[1] == 'i' || name[1] == 'I') &&
		(name[2] == 'e' || name[2] == 'E') &&
		(name[3] == 'l' || name[3] == 'L') &&
		(name[4] == 'd' || name[4] == 'D')
}

func singleStringArg(args []Node) (*StringLit, bool) {
	if len(args) != 1 {
		return nil, false
	}
	lit, ok := args[0].(*StringLit)
	return lit, ok
}

func spanOver(left, right Node) Span {
	return Span{Start: left.Span().Start, End: right.Span().End}
}
