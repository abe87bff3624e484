package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Fiscal-Harmony/odoov19/internal/application/auth"
	appfiscal "github.com/Fiscal-Harmony/odoov19/internal/application/fiscal"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC        *auth.AuthUseCase
	Ingestor      *appfiscal.Ingestor
	Submitter     *appfiscal.Submitter
	PDFService    *appfiscal.PDFService
	ConfigService *appfiscal.ConfigService
	DocRepo       repository.FiscalDocumentRepository
	LogRepo       repository.SubmissionLogRepository
	JWTSecret     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Documents: ingest y ciclo de fiscalización (protegido)
	documents := protected.Group("/documents")
	documentHandler := NewDocumentHandler(deps.Ingestor, deps.Submitter, deps.PDFService, deps.DocRepo, deps.LogRepo)
	documents.Post("/", documentHandler.Ingest)
	documents.Get("/:id", documentHandler.GetByID)
	documents.Get("/:id/logs", documentHandler.Logs)
	documents.Get("/:id/pdf", documentHandler.PDF)
	documents.Get("/:id/receipt", documentHandler.Receipt)
	documents.Post("/:id/submit", documentHandler.Submit)
	documents.Post("/:id/retry", documentHandler.Submit)
	documents.Post("/:id/cancel", documentHandler.Cancel)
	documents.Post("/:id/exempt", documentHandler.Exempt)
	documents.Post("/:id/reset", documentHandler.Reset)

	// Configs: credenciales y mapeos (protegido; mutaciones solo admin)
	configs := protected.Group("/configs")
	configHandler := NewConfigHandler(deps.ConfigService)
	adminOnly := RequireRole(entity.RoleAdmin)
	configs.Post("/", adminOnly, configHandler.Create)
	configs.Get("/", configHandler.List)
	configs.Get("/:id", configHandler.Get)
	configs.Put("/:id", adminOnly, configHandler.Update)
	configs.Post("/:id/test-connection", adminOnly, configHandler.TestConnection)
	configs.Post("/:id/sync-taxes", adminOnly, configHandler.SyncTaxes)
	configs.Get("/:id/tax-mappings", configHandler.ListTaxMappings)
	configs.Post("/:id/tax-mappings", adminOnly, configHandler.CreateTaxMapping)
	configs.Post("/:id/tax-mappings/:mappingId/bind", adminOnly, configHandler.BindTax)
	configs.Get("/:id/currency-mappings", configHandler.ListCurrencyMappings)
	configs.Post("/:id/currency-mappings", adminOnly, configHandler.CreateCurrencyMapping)
}
