package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/metadata"
	"gridbase-backend/internal/store"
)

type QueryPlan struct {
	Table   *metadata.Table
	Filters []WhereClause
	Sorts   []OrderClause
	Page    int
	PerPage int
}

type WhereClause struct {
	Field    string
	Operator string
	Value    any
}

type OrderClause struct {
	Field string
	Dir   string // ASC or DESC
}

type QueryResult struct {
	SQL    string
	Params []any
}

// ParseQueryParams parses Fiber query parameters into a QueryPlan. Formula
// fields filter and sort like any other field since their values live in
// real columns.
func ParseQueryParams(c *fiber.Ctx, table *metadata.Table) (*QueryPlan, error) {
	plan := &QueryPlan{
		Table:   table,
		Page:    1,
		PerPage: 25,
	}

	// Parse filters: filter[field]=val or filter[field.op]=val
	queries := c.Queries()
	for key, val := range queries {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		inner := key[7 : len(key)-1] // extract between [ and ]
		fieldName, op := parseFilterKey(inner)

		field := table.GetField(fieldName)
		if field == nil {
			return nil, &AppError{
				Code:    "UNKNOWN_FIELD",
				Status:  400,
				Message: fmt.Sprintf("Unknown filter field: %s", fieldName),
			}
		}

		coerced, err := coerceValue(field, val, op)
		if err != nil {
			return nil, &AppError{
				Code:    "INVALID_PAYLOAD",
				Status:  400,
				Message: fmt.Sprintf("Invalid filter value for %s: %v", fieldName, err),
			}
		}

		plan.Filters = append(plan.Filters, WhereClause{
			Field:    fieldName,
			Operator: op,
			Value:    coerced,
		})
	}

	// Parse sort: sort=-Created,Name
	if sortParam := c.Query("sort"); sortParam != "" {
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			dir := "ASC"
			fieldName := part
			if strings.HasPrefix(part, "-") {
				dir = "DESC"
				fieldName = part[1:]
			}
			if !table.HasField(fieldName) {
				return nil, &AppError{
					Code:    "UNKNOWN_FIELD",
					Status:  400,
					Message: fmt.Sprintf("Unknown sort field: %s", fieldName),
				}
			}
			plan.Sorts = append(plan.Sorts, OrderClause{Field: fieldName, Dir: dir})
		}
	}

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			plan.Page = v
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			plan.PerPage = v
			if plan.PerPage > 100 {
				plan.PerPage = 100
			}
		}
	}

	return plan, nil
}

// BuildSelectSQL builds a parameterized SELECT statement from the query
// plan, with every field column aliased to its field name.
func BuildSelectSQL(plan *QueryPlan, d store.Dialect) QueryResult {
	pb := d.NewParamBuilder()
	table := plan.Table

	cols := []string{"id", "created_at", "updated_at"}
	for _, f := range table.Fields {
		cols = append(cols, fmt.Sprintf("%s AS %s", store.QuoteIdent(f.Column), store.QuoteIdent(f.Name)))
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), store.QuoteIdent(table.DBTable))
	if where := buildWhere(plan, pb); where != "" {
		sql += " WHERE " + where
	}

	if len(plan.Sorts) > 0 {
		var orderParts []string
		for _, s := range plan.Sorts {
			col := table.GetField(s.Field).Column
			orderParts = append(orderParts, fmt.Sprintf("%s %s", store.QuoteIdent(col), s.Dir))
		}
		sql += " ORDER BY " + strings.Join(orderParts, ", ")
	} else {
		sql += " ORDER BY created_at, id"
	}

	limit := pb.Add(plan.PerPage)
	offset := pb.Add((plan.Page - 1) * plan.PerPage)
	sql += fmt.Sprintf(" LIMIT %s OFFSET %s", limit, offset)

	return QueryResult{SQL: sql, Params: pb.Params()}
}

// BuildCountSQL builds a COUNT query with the same filters as the select.
func BuildCountSQL(plan *QueryPlan, d store.Dialect) QueryResult {
	pb := d.NewParamBuilder()

	sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", store.QuoteIdent(plan.Table.DBTable))
	if where := buildWhere(plan, pb); where != "" {
		sql += " WHERE " + where
	}
	return QueryResult{SQL: sql, Params: pb.Params()}
}

func buildWhere(plan *QueryPlan, pb store.ParamBuilder) string {
	var where []string
	for _, f := range plan.Filters {
		col := store.QuoteIdent(plan.Table.GetField(f.Field).Column)
		where = append(where, buildWhereClause(col, f, pb))
	}
	return strings.Join(where, " AND ")
}

func buildWhereClause(col string, f WhereClause, pb store.ParamBuilder) string {
	switch f.Operator {
	case "eq", "":
		return fmt.Sprintf("%s = %s", col, pb.Add(f.Value))
	case "neq":
		return fmt.Sprintf("%s != %s", col, pb.Add(f.Value))
	case "gt":
		return fmt.Sprintf("%s > %s", col, pb.Add(f.Value))
	case "gte":
		return fmt.Sprintf("%s >= %s", col, pb.Add(f.Value))
	case "lt":
		return fmt.Sprintf("%s < %s", col, pb.Add(f.Value))
	case "lte":
		return fmt.Sprintf("%s <= %s", col, pb.Add(f.Value))
	case "in":
		vals, _ := f.Value.([]any)
		phs := make([]string, len(vals))
		for i, v := range vals {
			phs[i] = pb.Add(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(phs, ", "))
	case "like":
		return fmt.Sprintf("%s LIKE %s", col, pb.Add(f.Value))
	case "blank":
		return fmt.Sprintf("(%s IS NULL OR CAST(%s AS TEXT) = '')", col, col)
	default:
		return fmt.Sprintf("%s = %s", col, pb.Add(f.Value))
	}
}

// parseFilterKey splits "Total.gte" into ("Total", "gte") or "Status" into
// ("Status", "eq").
func parseFilterKey(key string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, "eq"
}

// coerceValue converts string query param values to Go types the driver can
// bind, based on field metadata.
func coerceValue(field *metadata.Field, val string, op string) (any, error) {
	if op == "blank" {
		return nil, nil
	}
	if op == "in" {
		parts := strings.Split(val, ",")
		coerced := make([]any, len(parts))
		for i, p := range parts {
			v, err := coerceSingleValue(field, strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			coerced[i] = v
		}
		return coerced, nil
	}
	return coerceSingleValue(field, val)
}

func coerceSingleValue(field *metadata.Field, val string) (any, error) {
	switch filterKind(field) {
	case formula.KindNumber:
		return strconv.ParseFloat(val, 64)
	case formula.KindBoolean:
		return strconv.ParseBool(val)
	default:
		return val, nil
	}
}

func filterKind(field *metadata.Field) formula.Kind {
	return field.SemanticType().Kind
}
