package formula

import (
	"fmt"
	"strings"
)

// SQLiteDialect lowers formula expressions to SQLite SQL. SQLite has no
// decimal column type, so exact-scale results are approximated with ROUND;
// multi-select arrays are stored as JSON text and handled with the json1
// functions.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) QuoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLiteDialect) TextLiteral(s string) string {
	return "'" + escapeSingleQuotes(s) + "'"
}

func (d *SQLiteDialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *SQLiteDialect) CastDecimal(expr string, precision, scale int) string {
	return fmt.Sprintf("ROUND(CAST(%s AS REAL), %d)", expr, scale)
}

func (d *SQLiteDialect) CastText(expr string, from Type) string {
	switch from.Kind {
	case KindNumber:
		return fmt.Sprintf("printf('%%.%df', %s)", from.Scale, expr)
	case KindBoolean:
		return fmt.Sprintf("(CASE WHEN %s THEN 'true' ELSE 'false' END)", expr)
	case KindDate:
		if from.IncludeTime {
			return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M:%%S', %s)", expr)
		}
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", expr)
	default:
		return fmt.Sprintf("CAST(%s AS TEXT)", expr)
	}
}

func (d *SQLiteDialect) Left(expr, n string) string {
	return fmt.Sprintf("substr(%s, 1, CAST(%s AS INTEGER))", expr, n)
}

func (d *SQLiteDialect) Right(expr, n string) string {
	// substr(x, 0) and negative starts count from the front in SQLite, so
	// n <= 0 must short-circuit to the empty string like right() does.
	return fmt.Sprintf("(CASE WHEN CAST(%s AS INTEGER) <= 0 THEN '' ELSE substr(%s, -CAST(%s AS INTEGER)) END)", n, expr, n)
}

func (d *SQLiteDialect) Contains(hay, needle string) string {
	return fmt.Sprintf("(instr(%s, %s) > 0)", hay, needle)
}

func (d *SQLiteDialect) DatePart(part, expr string) string {
	var token string
	switch strings.ToLower(part) {
	case "day":
		token = "%d"
	case "month":
		token = "%m"
	default:
		token = "%Y"
	}
	return fmt.Sprintf("CAST(strftime('%s', %s) AS INTEGER)", token, expr)
}

func (d *SQLiteDialect) DateAddDays(expr, days string, includeTime bool) string {
	fn := "date"
	if includeTime {
		fn = "datetime"
	}
	return fmt.Sprintf("%s(%s, (CAST(%s AS INTEGER) || ' days'))", fn, expr, days)
}

func (d *SQLiteDialect) DateDiffDays(a, b string) string {
	return fmt.Sprintf("CAST(julianday(%s) - julianday(%s) AS INTEGER)", a, b)
}

func (d *SQLiteDialect) FormatDate(expr, format string) string {
	return fmt.Sprintf("strftime(%s, %s)", translateFormatExpr(format), expr)
}

func (d *SQLiteDialect) ParseDate(expr, format string) string {
	// SQLite parses ISO-8601 text natively; non-ISO formats are not
	// supported by this backend.
	return fmt.Sprintf("datetime(%s)", expr)
}

func (d *SQLiteDialect) Now() string   { return "datetime('now')" }
func (d *SQLiteDialect) Today() string { return "date('now')" }

func (d *SQLiteDialect) ArrayLength(expr string) string {
	return fmt.Sprintf("COALESCE(json_array_length(%s), 0)", expr)
}

func (d *SQLiteDialect) ArrayJoin(expr, sep string) string {
	return fmt.Sprintf("(SELECT group_concat(value, %s) FROM json_each(%s))", sep, expr)
}

// toCharToStrftime maps the supported to_char tokens onto strftime tokens.
// Longer tokens first so HH24 wins over HH.
var toCharToStrftime = []struct{ from, to string }{
	{"HH24", "%H"},
	{"YYYY", "%Y"},
	{"MM", "%m"},
	{"DD", "%d"},
	{"MI", "%M"},
	{"SS", "%S"},
}

// translateFormatExpr rewrites a to_char-style format expression into a
// strftime format. Only literal format strings can be translated; a
// non-literal expression passes through unchanged and SQLite will treat
// unknown tokens literally.
func translateFormatExpr(format string) string {
	if len(format) < 2 || format[0] != '\'' || format[len(format)-1] != '\'' {
		return format
	}
	inner := format[1 : len(format)-1]
	for _, m := range toCharToStrftime {
		inner = strings.ReplaceAll(inner, m.from, m.to)
	}
	return "'" + inner + "'"
}

var _ Dialect = (*SQLiteDialect)(nil)
