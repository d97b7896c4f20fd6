package engine

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"gridbase-backend/internal/formula"
	"gridbase-backend/internal/metadata"
	"gridbase-backend/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	svc      *Service
}

func NewHandler(s *store.Store, reg *metadata.Registry, svc *Service) *Handler {
	return &Handler{store: s, registry: reg, svc: svc}
}

type fieldRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Precision   int      `json:"precision"`
	Scale       int      `json:"scale"`
	IncludeTime bool     `json:"include_time"`
	TZAware     bool     `json:"tz_aware"`
	Options     []string `json:"options"`
	Formula     string   `json:"formula"`
}

func (r fieldRequest) toField() metadata.Field {
	f := metadata.Field{
		Name:        r.Name,
		Type:        r.Type,
		Precision:   r.Precision,
		Scale:       r.Scale,
		IncludeTime: r.IncludeTime,
		TZAware:     r.TZAware,
		Options:     r.Options,
	}
	if r.Type == metadata.FieldTypeFormula {
		f.Formula = &metadata.FormulaInfo{Source: r.Formula}
	}
	return f
}

// CreateTable handles POST /api/tables
func (h *Handler) CreateTable(c *fiber.Ctx) error {
	var body struct {
		Name   string         `json:"name"`
		Fields []fieldRequest `json:"fields"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if body.Name == "" {
		return respondError(c, ValidationError([]ErrorDetail{{Field: "name", Message: "name is required"}}))
	}

	fields := make([]metadata.Field, len(body.Fields))
	for i, fr := range body.Fields {
		fields[i] = fr.toField()
	}

	table, err := h.svc.CreateTable(c.Context(), body.Name, fields)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"data": tableResponse(table)})
}

// ListTables handles GET /api/tables
func (h *Handler) ListTables(c *fiber.Ctx) error {
	tables := h.registry.AllTables()
	out := make([]fiber.Map, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableResponse(t))
	}
	return c.JSON(fiber.Map{"data": out})
}

// GetTable handles GET /api/tables/:table
func (h *Handler) GetTable(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tableResponse(table)})
}

// CreateField handles POST /api/tables/:table/fields
func (h *Handler) CreateField(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}

	var body fieldRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	updated, err := h.svc.CreateField(c.Context(), table.Name, body.toField())
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"data": fieldResponse(updated.GetField(body.Name))})
}

// UpdateField handles PATCH /api/tables/:table/fields/:field
func (h *Handler) UpdateField(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}
	fieldName := c.Params("field")

	var body fieldRequest
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	updated, err := h.svc.UpdateField(c.Context(), table.Name, fieldName, body.toField())
	if err != nil {
		return handleServiceError(c, err)
	}
	name := body.Name
	if name == "" {
		name = fieldName
	}
	return c.JSON(fiber.Map{"data": fieldResponse(updated.GetField(name))})
}

// DeleteField handles DELETE /api/tables/:table/fields/:field
func (h *Handler) DeleteField(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}
	fieldName := c.Params("field")

	if _, err := h.svc.DeleteField(c.Context(), table.Name, fieldName); err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"name": fieldName}})
}

// FormulaType handles POST /api/tables/:table/formula/type. Types a
// candidate formula without saving anything.
func (h *Handler) FormulaType(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}

	var body struct {
		Formula   string `json:"formula"`
		FieldName string `json:"field_name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	result, err := h.svc.ComputeType(table, body.FieldName, body.Formula)
	if err != nil {
		return handleServiceError(c, err)
	}

	resp := fiber.Map{
		"type":       result.Type.String(),
		"referenced": result.Referenced,
	}
	if result.Invalid != nil {
		resp["valid"] = false
		resp["error"] = fiber.Map{
			"message": result.Invalid.Reason,
			"start":   result.Invalid.At.Start,
			"end":     result.Invalid.At.End,
		}
	} else {
		resp["valid"] = true
	}
	return c.JSON(fiber.Map{"data": resp})
}

// FormulaPreview handles POST /api/tables/:table/formula/preview. Evaluates
// a formula in-process against a posted row object.
func (h *Handler) FormulaPreview(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}

	var body struct {
		Formula string         `json:"formula"`
		Row     map[string]any `json:"row"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	result, err := h.svc.ComputeType(table, "", body.Formula)
	if err != nil {
		return handleServiceError(c, err)
	}
	if result.Invalid != nil {
		return respondError(c, &AppError{
			Code:    "FORMULA_INVALID",
			Status:  422,
			Message: result.Invalid.Reason,
		})
	}

	prog, err := formula.CompileProgram(result.Tree, table.Schema())
	if err != nil {
		return respondError(c, NewAppError("FORMULA_COMPILE", 500, err.Error()))
	}
	value, err := prog.Run(body.Row)
	if err != nil {
		return respondError(c, NewAppError("FORMULA_EVAL", 422, err.Error()))
	}

	return c.JSON(fiber.Map{"data": fiber.Map{
		"type":  result.Type.String(),
		"value": value.AsText(),
	}})
}

// ListFunctions handles GET /api/formula/functions
func (h *Handler) ListFunctions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": formula.FunctionNames()})
}

// ListRows handles GET /api/tables/:table/rows
func (h *Handler) ListRows(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}

	plan, err := ParseQueryParams(c, table)
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return respondError(c, appErr)
		}
		return err
	}

	qr := BuildSelectSQL(plan, h.store.Dialect)
	rows, err := store.QueryRows(c.Context(), h.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return fmt.Errorf("list rows %s: %w", table.Name, err)
	}

	cr := BuildCountSQL(plan, h.store.Dialect)
	countRow, err := store.QueryRow(c.Context(), h.store.DB, cr.SQL, cr.Params...)
	if err != nil {
		return fmt.Errorf("count rows %s: %w", table.Name, err)
	}

	for _, row := range rows {
		DecorateBrokenFormulas(table, row)
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	return c.JSON(fiber.Map{
		"data": rows,
		"meta": fiber.Map{
			"page":     plan.Page,
			"per_page": plan.PerPage,
			"total":    countRow["count"],
		},
	})
}

// GetRow handles GET /api/tables/:table/rows/:id
func (h *Handler) GetRow(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}
	id := c.Params("id")

	row, err := h.svc.readRow(c.Context(), table, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(table.Name, id))
		}
		return fmt.Errorf("get row %s/%s: %w", table.Name, id, err)
	}
	return c.JSON(fiber.Map{"data": row})
}

// CreateRow handles POST /api/tables/:table/rows
func (h *Handler) CreateRow(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if details := validateRowValues(table, body); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	row, err := h.svc.CreateRow(c.Context(), table, body)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"data": row})
}

// UpdateRow handles PATCH /api/tables/:table/rows/:id
func (h *Handler) UpdateRow(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}
	id := c.Params("id")

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}
	if details := validateRowValues(table, body); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	row, err := h.svc.UpdateRow(c.Context(), table, id, body)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(table.Name, id))
		}
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": row})
}

// DeleteRow handles DELETE /api/tables/:table/rows/:id
func (h *Handler) DeleteRow(c *fiber.Ctx) error {
	table, err := h.resolveTable(c)
	if err != nil {
		return err
	}
	id := c.Params("id")

	if err := h.svc.DeleteRow(c.Context(), table, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(table.Name, id))
		}
		return fmt.Errorf("delete row %s/%s: %w", table.Name, id, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

func (h *Handler) resolveTable(c *fiber.Ctx) (*metadata.Table, error) {
	name := c.Params("table")
	table := h.registry.GetTable(name)
	if table == nil {
		return nil, respondError(c, UnknownTableError(name))
	}
	return table, nil
}

// validateRowValues rejects writes to unknown fields, formula fields and
// select values outside the declared options.
func validateRowValues(table *metadata.Table, values map[string]any) []ErrorDetail {
	var details []ErrorDetail
	for name, v := range values {
		f := table.GetField(name)
		if f == nil {
			details = append(details, ErrorDetail{Field: name, Message: "unknown field"})
			continue
		}
		if f.Type == metadata.FieldTypeFormula {
			details = append(details, ErrorDetail{Field: name, Message: "formula fields are read-only"})
			continue
		}
		if f.Type == metadata.FieldTypeSingleSelect {
			if s, ok := v.(string); ok && !f.ValidOption(s) {
				details = append(details, ErrorDetail{Field: name, Message: fmt.Sprintf("%q is not a valid option", s)})
			}
		}
	}
	return details
}

func tableResponse(t *metadata.Table) fiber.Map {
	fields := make([]fiber.Map, 0, len(t.Fields))
	for i := range t.Fields {
		fields = append(fields, fieldResponse(&t.Fields[i]))
	}
	return fiber.Map{
		"id":     t.ID,
		"name":   t.Name,
		"fields": fields,
	}
}

func fieldResponse(f *metadata.Field) fiber.Map {
	if f == nil {
		return nil
	}
	out := fiber.Map{
		"id":   f.ID,
		"name": f.Name,
		"type": f.Type,
	}
	if f.Type == metadata.FieldTypeNumber {
		out["precision"] = f.Precision
		out["scale"] = f.Scale
	}
	if f.Type == metadata.FieldTypeDate {
		out["include_time"] = f.IncludeTime
	}
	if len(f.Options) > 0 {
		out["options"] = f.Options
	}
	if f.Formula != nil {
		info := fiber.Map{
			"formula":    f.Formula.Source,
			"type":       f.Formula.Result.String(),
			"referenced": f.Formula.References,
		}
		if f.Formula.Broken() {
			info["error"] = f.Formula.Error
		}
		out["formula"] = info
	}
	return out
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

func handleServiceError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	if errors.Is(err, store.ErrUniqueViolation) {
		return respondError(c, ConflictError("A record with this value already exists"))
	}
	if errors.Is(err, store.ErrNotFound) {
		return respondError(c, NewAppError("NOT_FOUND", 404, "Not found"))
	}
	return err
}
