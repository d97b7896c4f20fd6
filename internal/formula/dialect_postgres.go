package formula

import (
	"fmt"
	"strings"
)

// PostgresDialect lowers formula expressions to PostgreSQL SQL.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) QuoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgresDialect) TextLiteral(s string) string {
	// Standard-conforming strings: only single quotes need doubling, but
	// backslashes are escaped through the E'' form to stay unambiguous
	// regardless of the server's standard_conforming_strings setting.
	if strings.ContainsRune(s, '\\') {
		escaped := strings.ReplaceAll(s, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, "'", "''")
		return "E'" + escaped + "'"
	}
	return "'" + escapeSingleQuotes(s) + "'"
}

func (d *PostgresDialect) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d *PostgresDialect) CastDecimal(expr string, precision, scale int) string {
	return fmt.Sprintf("CAST(%s AS NUMERIC(%d,%d))", expr, precision, scale)
}

func (d *PostgresDialect) CastText(expr string, from Type) string {
	switch from.Kind {
	case KindNumber:
		return fmt.Sprintf("to_char(%s, %s)", expr, d.TextLiteral(numericToCharPattern(from.Scale)))
	case KindBoolean:
		return fmt.Sprintf("(CASE WHEN %s THEN 'true' ELSE 'false' END)", expr)
	case KindDate:
		if from.IncludeTime {
			return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD HH24:MI:SS')", expr)
		}
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", expr)
	default:
		return fmt.Sprintf("CAST(%s AS TEXT)", expr)
	}
}

func (d *PostgresDialect) Left(expr, n string) string {
	return fmt.Sprintf("left(%s, CAST(%s AS INTEGER))", expr, n)
}

func (d *PostgresDialect) Right(expr, n string) string {
	return fmt.Sprintf("right(%s, CAST(%s AS INTEGER))", expr, n)
}

func (d *PostgresDialect) Contains(hay, needle string) string {
	return fmt.Sprintf("(POSITION(%s IN %s) > 0)", needle, hay)
}

func (d *PostgresDialect) DatePart(part, expr string) string {
	return fmt.Sprintf("CAST(EXTRACT(%s FROM %s) AS NUMERIC(10,0))", strings.ToUpper(part), expr)
}

func (d *PostgresDialect) DateAddDays(expr, days string, includeTime bool) string {
	return fmt.Sprintf("(%s + make_interval(days => CAST(%s AS INTEGER)))", expr, days)
}

func (d *PostgresDialect) DateDiffDays(a, b string) string {
	return fmt.Sprintf("CAST(EXTRACT(DAY FROM (CAST(%s AS TIMESTAMP) - CAST(%s AS TIMESTAMP))) AS NUMERIC(10,0))", a, b)
}

func (d *PostgresDialect) FormatDate(expr, format string) string {
	return fmt.Sprintf("to_char(%s, %s)", expr, format)
}

func (d *PostgresDialect) ParseDate(expr, format string) string {
	return fmt.Sprintf("to_timestamp(%s, %s)", expr, format)
}

func (d *PostgresDialect) Now() string   { return "NOW()" }
func (d *PostgresDialect) Today() string { return "CURRENT_DATE" }

func (d *PostgresDialect) ArrayLength(expr string) string {
	return fmt.Sprintf("COALESCE(array_length(%s, 1), 0)", expr)
}

func (d *PostgresDialect) ArrayJoin(expr, sep string) string {
	return fmt.Sprintf("array_to_string(%s, %s)", expr, sep)
}

// numericToCharPattern builds a to_char pattern rendering a number at the
// given scale without leading padding (FM prefix).
func numericToCharPattern(scale int) string {
	if scale == 0 {
		return "FM999999999999999999999999999999999999990"
	}
	return "FM999999999999999999999999999999999999990." + strings.Repeat("0", scale)
}

var _ Dialect = (*PostgresDialect)(nil)
