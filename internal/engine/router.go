package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler, mw ...fiber.Handler) {
	api := app.Group("/api")
	for _, m := range mw {
		api.Use(m)
	}

	api.Get("/formula/functions", h.ListFunctions)

	api.Get("/tables", h.ListTables)
	api.Post("/tables", h.CreateTable)
	api.Get("/tables/:table", h.GetTable)

	api.Post("/tables/:table/formula/type", h.FormulaType)
	api.Post("/tables/:table/formula/preview", h.FormulaPreview)

	api.Post("/tables/:table/fields", h.CreateField)
	api.Patch("/tables/:table/fields/:field", h.UpdateField)
	api.Delete("/tables/:table/fields/:field", h.DeleteField)

	api.Get("/tables/:table/rows", h.ListRows)
	api.Post("/tables/:table/rows", h.CreateRow)
	api.Get("/tables/:table/rows/:id", h.GetRow)
	api.Patch("/tables/:table/rows/:id", h.UpdateRow)
	api.Delete("/tables/:table/rows/:id", h.DeleteRow)
}
