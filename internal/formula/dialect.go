package formula

import "strings"

// Dialect abstracts the database-specific pieces of expression lowering.
// Fragments that both backends spell identically are built in generate.go;
// everything else goes through here.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// QuoteColumn quotes a column identifier.
	QuoteColumn(name string) string

	// TextLiteral renders a string as an escaped SQL literal.
	TextLiteral(s string) string

	// BoolLiteral renders a boolean literal.
	BoolLiteral(b bool) string

	// CastDecimal casts a numeric expression to an exact decimal with the
	// given precision and scale.
	CastDecimal(expr string, precision, scale int) string

	// CastText converts an expression of the given semantic type to text
	// using the language's fixed formatting rules.
	CastText(expr string, from Type) string

	// Left and Right take the first/last n characters of a text expression.
	Left(expr, n string) string
	Right(expr, n string) string

	// Contains tests whether needle occurs in hay.
	Contains(hay, needle string) string

	// DatePart extracts "day", "month" or "year" from a date expression as an
	// integer.
	DatePart(part, expr string) string

	// DateAddDays shifts a date expression by a whole number of days.
	DateAddDays(expr, days string, includeTime bool) string

	// DateDiffDays returns the whole-day difference a - b.
	DateDiffDays(a, b string) string

	// FormatDate renders a date expression with a format string using
	// to_char-style tokens (YYYY, MM, DD, HH24, MI, SS).
	FormatDate(expr, format string) string

	// ParseDate parses a text expression into a date using the same tokens.
	ParseDate(expr, format string) string

	// Now and Today return the current timestamp/date.
	Now() string
	Today() string

	// ArrayLength counts the elements of an array-typed column expression.
	ArrayLength(expr string) string

	// ArrayJoin concatenates array elements with a separator.
	ArrayJoin(expr, sep string) string
}

// DialectFor returns the lowering dialect for a storage driver name.
func DialectFor(name string) (Dialect, bool) {
	switch name {
	case "postgres":
		return &PostgresDialect{}, true
	case "sqlite":
		return &SQLiteDialect{}, true
	default:
		return nil, false
	}
}

// escapeSingleQuotes doubles embedded single quotes for SQL literals.
func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
