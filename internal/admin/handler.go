package admin

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"gridbase-backend/internal/engine"
	"gridbase-backend/internal/metadata"
	"gridbase-backend/internal/store"
)

// Handler exposes catalog administration: raw table definitions, table
// deletion and a metadata reload. Regular table and field management lives
// on the engine routes.
type Handler struct {
	store    *store.Store
	registry *metadata.Registry
}

func NewHandler(s *store.Store, reg *metadata.Registry) *Handler {
	return &Handler{store: s, registry: reg}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, mw ...fiber.Handler) {
	admin := app.Group("/api/_admin")
	for _, m := range mw {
		admin.Use(m)
	}

	admin.Get("/tables", h.ListTables)
	admin.Get("/tables/:name", h.GetTable)
	admin.Delete("/tables/:name", h.DeleteTable)
	admin.Post("/reload", h.Reload)
}

// ListTables handles GET /api/_admin/tables, returning the raw catalog rows.
func (h *Handler) ListTables(c *fiber.Ctx) error {
	rows, err := store.QueryRows(c.Context(), h.store.DB,
		"SELECT id, name, db_table, definition, created_at, updated_at FROM _tables ORDER BY name")
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

// GetTable handles GET /api/_admin/tables/:name.
func (h *Handler) GetTable(c *fiber.Ctx) error {
	name := c.Params("name")
	pb := h.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(c.Context(), h.store.DB,
		"SELECT id, name, db_table, definition, created_at, updated_at FROM _tables WHERE name = "+pb.Add(name),
		pb.Params()...)
	if err != nil {
		return c.Status(404).JSON(engine.ErrorResponse{Error: engine.UnknownTableError(name)})
	}
	return c.JSON(fiber.Map{"data": row})
}

// DeleteTable handles DELETE /api/_admin/tables/:name. Drops the physical
// table and its catalog row.
func (h *Handler) DeleteTable(c *fiber.Ctx) error {
	name := c.Params("name")
	table := h.registry.GetTable(name)
	if table == nil {
		return c.Status(404).JSON(engine.ErrorResponse{Error: engine.UnknownTableError(name)})
	}

	ctx := c.Context()
	drop := "DROP TABLE IF EXISTS " + store.QuoteIdent(table.DBTable)
	if _, err := h.store.DB.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop table %s: %w", table.DBTable, err)
	}

	pb := h.store.Dialect.NewParamBuilder()
	if _, err := store.Exec(ctx, h.store.DB,
		"DELETE FROM _tables WHERE id = "+pb.Add(table.ID), pb.Params()...); err != nil {
		return fmt.Errorf("delete table definition: %w", err)
	}

	if err := metadata.Reload(ctx, h.store.DB, h.registry); err != nil {
		return fmt.Errorf("reload metadata: %w", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"name": name}})
}

// Reload handles POST /api/_admin/reload, re-reading the catalog into the
// in-memory registry.
func (h *Handler) Reload(c *fiber.Ctx) error {
	if err := metadata.Reload(c.Context(), h.store.DB, h.registry); err != nil {
		return fmt.Errorf("reload metadata: %w", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"tables": len(h.registry.AllTables())}})
}
