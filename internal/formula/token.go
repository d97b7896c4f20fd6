package formula

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_IDENT
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_STAR
	TOKEN_SLASH
	TOKEN_EQ
	TOKEN_NE
	TOKEN_LT
	TOKEN_GT
	TOKEN_LE
	TOKEN_GE
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_COMMA
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
)

// Token is a single lexical token with its position in the source text.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

func (t TokenType) String() string {
	switch t {
	case TOKEN_EOF:
		return "end of formula"
	case TOKEN_NUMBER:
		return "number"
	case TOKEN_STRING:
		return "string"
	case TOKEN_IDENT:
		return "identifier"
	case TOKEN_TRUE, TOKEN_FALSE:
		return "boolean"
	case TOKEN_PLUS:
		return "'+'"
	case TOKEN_MINUS:
		return "'-'"
	case TOKEN_STAR:
		return "'*'"
	case TOKEN_SLASH:
		return "'/'"
	case TOKEN_EQ:
		return "'='"
	case TOKEN_NE:
		return "'!='"
	case TOKEN_LT:
		return "'<'"
	case TOKEN_GT:
		return "'>'"
	case TOKEN_LE:
		return "'<='"
	case TOKEN_GE:
		return "'>='"
	case TOKEN_LPAREN:
		return "'('"
	case TOKEN_RPAREN:
		return "')'"
	case TOKEN_COMMA:
		return "','"
	case TOKEN_AND:
		return "'and'"
	case TOKEN_OR:
		return "'or'"
	case TOKEN_NOT:
		return "'not'"
	default:
		return "unknown token"
	}
}
