package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Fiscal-Harmony/odoov19/internal/application/dto"
	appfiscal "github.com/Fiscal-Harmony/odoov19/internal/application/fiscal"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
)

// ConfigHandler maneja configuraciones fiscales y sus mapeos.
type ConfigHandler struct {
	svc *appfiscal.ConfigService
}

// NewConfigHandler construye el handler de configuraciones.
func NewConfigHandler(svc *appfiscal.ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// Create godoc
// @Summary      Crear configuración fiscal
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        body  body  dto.FiscalConfigRequest  true  "credenciales y política"
// @Success      201   {object}  dto.FiscalConfigResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/configs [post]
func (h *ConfigHandler) Create(c *fiber.Ctx) error {
	var in dto.FiscalConfigRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	cfg := toConfigEntity(&in)
	if err := h.svc.Create(c.UserContext(), cfg); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toConfigResponse(cfg))
}

// List godoc
// @Summary      Listar configuraciones fiscales
// @Tags         configs
// @Produce      json
// @Success      200  {array}  dto.FiscalConfigResponse
// @Router       /api/configs [get]
func (h *ConfigHandler) List(c *fiber.Ctx) error {
	configs, err := h.svc.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.FiscalConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, toConfigResponse(cfg))
	}
	return c.JSON(out)
}

// Get godoc
// @Summary      Consultar configuración fiscal
// @Tags         configs
// @Produce      json
// @Param        id  path  string  true  "ID de la configuración"
// @Success      200  {object}  dto.FiscalConfigResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/configs/{id} [get]
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toConfigResponse(cfg))
}

// Update godoc
// @Summary      Actualizar configuración fiscal
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID de la configuración"
// @Param        body  body  dto.FiscalConfigRequest  true  "credenciales y política"
// @Success      200   {object}  dto.FiscalConfigResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/configs/{id} [put]
func (h *ConfigHandler) Update(c *fiber.Ctx) error {
	var in dto.FiscalConfigRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	cfg, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	applyConfigRequest(cfg, &in)
	if err := h.svc.Update(c.UserContext(), cfg); err != nil {
		return respondError(c, err)
	}
	return c.JSON(toConfigResponse(cfg))
}

// TestConnection godoc
// @Summary      Probar credenciales contra la autoridad
// @Tags         configs
// @Produce      json
// @Param        id  path  string  true  "ID de la configuración"
// @Success      200  {object}  dto.TestConnectionResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/configs/{id}/test-connection [post]
func (h *ConfigHandler) TestConnection(c *fiber.Ctx) error {
	profile, err := h.svc.TestConnection(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.TestConnectionResponse{
		UserID:   profile.ID.String(),
		FullName: profile.FullName,
	})
}

// SyncTaxes godoc
// @Summary      Sincronizar impuestos del dispositivo fiscal
// @Tags         configs
// @Produce      json
// @Param        id  path  string  true  "ID de la configuración"
// @Success      200  {object}  dto.SyncTaxesResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/configs/{id}/sync-taxes [post]
func (h *ConfigHandler) SyncTaxes(c *fiber.Ctx) error {
	synced, err := h.svc.SyncDeviceTaxes(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SyncTaxesResponse{Synced: synced})
}

// ListTaxMappings godoc
// @Summary      Listar mapeos de impuestos de la configuración
// @Tags         configs
// @Produce      json
// @Param        id  path  string  true  "ID de la configuración"
// @Success      200  {array}  dto.TaxMappingResponse
// @Router       /api/configs/{id}/tax-mappings [get]
func (h *ConfigHandler) ListTaxMappings(c *fiber.Ctx) error {
	mappings, err := h.svc.ListTaxMappings(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.TaxMappingResponse, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, dto.TaxMappingResponse{
			ID:           m.ID,
			LocalTaxID:   m.LocalTaxID,
			LocalTaxName: m.LocalTaxName,
			TaxCode:      m.TaxCode,
			TaxName:      m.TaxName,
			TaxRate:      m.TaxRate,
			TaxType:      m.TaxType,
			Active:       m.Active,
		})
	}
	return c.JSON(out)
}

// BindTax godoc
// @Summary      Enlazar impuesto local con un mapeo del dispositivo
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id         path  string              true  "ID de la configuración"
// @Param        mappingId  path  string              true  "ID del mapeo"
// @Param        body       body  dto.BindTaxRequest  true  "impuesto local"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/configs/{id}/tax-mappings/{mappingId}/bind [post]
func (h *ConfigHandler) BindTax(c *fiber.Ctx) error {
	var in dto.BindTaxRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.LocalTaxID == "" || in.LocalTaxName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "local_tax_id y local_tax_name son requeridos"})
	}
	err := h.svc.BindLocalTax(c.UserContext(), c.Params("id"), c.Params("mappingId"), in.LocalTaxID, in.LocalTaxName)
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateTaxMapping godoc
// @Summary      Crear mapeo de impuesto manual
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID de la configuración"
// @Param        body  body  dto.TaxMappingRequest  true  "mapeo"
// @Success      201   {object}  dto.TaxMappingResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/configs/{id}/tax-mappings [post]
func (h *ConfigHandler) CreateTaxMapping(c *fiber.Ctx) error {
	var in dto.TaxMappingRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	m := &entity.TaxMapping{
		ConfigID:     c.Params("id"),
		LocalTaxID:   in.LocalTaxID,
		LocalTaxName: in.LocalTaxName,
		TaxCode:      in.TaxCode,
		TaxName:      in.TaxName,
		TaxRate:      in.TaxRate,
		TaxType:      in.TaxType,
	}
	if err := h.svc.CreateTaxMapping(c.UserContext(), m); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.TaxMappingResponse{
		ID:           m.ID,
		LocalTaxID:   m.LocalTaxID,
		LocalTaxName: m.LocalTaxName,
		TaxCode:      m.TaxCode,
		TaxName:      m.TaxName,
		TaxRate:      m.TaxRate,
		TaxType:      m.TaxType,
		Active:       m.Active,
	})
}

// ListCurrencyMappings godoc
// @Summary      Listar mapeos de moneda de la configuración
// @Tags         configs
// @Produce      json
// @Param        id  path  string  true  "ID de la configuración"
// @Success      200  {array}  dto.CurrencyMappingResponse
// @Router       /api/configs/{id}/currency-mappings [get]
func (h *ConfigHandler) ListCurrencyMappings(c *fiber.Ctx) error {
	mappings, err := h.svc.ListCurrencyMappings(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.CurrencyMappingResponse, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, dto.CurrencyMappingResponse{
			ID:                m.ID,
			LocalCurrencyCode: m.LocalCurrencyCode,
			ZimraCurrencyCode: m.ZimraCurrencyCode,
			Active:            m.Active,
		})
	}
	return c.JSON(out)
}

// CreateCurrencyMapping godoc
// @Summary      Crear mapeo de moneda y publicarlo en la autoridad
// @Tags         configs
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "ID de la configuración"
// @Param        body  body  dto.CurrencyMappingRequest  true  "monedas local y ZIMRA"
// @Success      201   {object}  dto.CurrencyMappingResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/configs/{id}/currency-mappings [post]
func (h *ConfigHandler) CreateCurrencyMapping(c *fiber.Ctx) error {
	var in dto.CurrencyMappingRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	m := &entity.CurrencyMapping{
		ConfigID:          c.Params("id"),
		LocalCurrencyCode: in.LocalCurrencyCode,
		ZimraCurrencyCode: in.ZimraCurrencyCode,
	}
	if err := h.svc.CreateCurrencyMapping(c.UserContext(), m); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CurrencyMappingResponse{
		ID:                m.ID,
		LocalCurrencyCode: m.LocalCurrencyCode,
		ZimraCurrencyCode: m.ZimraCurrencyCode,
		Active:            m.Active,
	})
}

// ── converters ────────────────────────────────────────────────────────────────

func toConfigEntity(in *dto.FiscalConfigRequest) *entity.FiscalConfig {
	return &entity.FiscalConfig{
		Name:             in.Name,
		WarehouseID:      in.WarehouseID,
		APIURL:           in.APIURL,
		APIKey:           in.APIKey,
		APISecret:        in.APISecret,
		Active:           in.Active,
		AutoFiscalize:    in.AutoFiscalize,
		AutoSyncTaxes:    in.AutoSyncTaxes,
		MaxManualRetries: in.MaxManualRetries,
		MaxCronRetries:   in.MaxCronRetries,
		TimeoutSecs:      in.TimeoutSecs,
	}
}

func applyConfigRequest(cfg *entity.FiscalConfig, in *dto.FiscalConfigRequest) {
	cfg.Name = in.Name
	cfg.WarehouseID = in.WarehouseID
	cfg.APIURL = in.APIURL
	cfg.APIKey = in.APIKey
	if in.APISecret != "" {
		cfg.APISecret = in.APISecret
	}
	cfg.Active = in.Active
	cfg.AutoFiscalize = in.AutoFiscalize
	cfg.AutoSyncTaxes = in.AutoSyncTaxes
	cfg.MaxManualRetries = in.MaxManualRetries
	cfg.MaxCronRetries = in.MaxCronRetries
	cfg.TimeoutSecs = in.TimeoutSecs
}

func toConfigResponse(cfg *entity.FiscalConfig) dto.FiscalConfigResponse {
	return dto.FiscalConfigResponse{
		ID:               cfg.ID,
		Name:             cfg.Name,
		WarehouseID:      cfg.WarehouseID,
		APIURL:           cfg.APIURL,
		HarmonyUserID:    cfg.HarmonyUserID,
		Active:           cfg.Active,
		AutoFiscalize:    cfg.AutoFiscalize,
		AutoSyncTaxes:    cfg.AutoSyncTaxes,
		MaxManualRetries: cfg.MaxManualRetries,
		MaxCronRetries:   cfg.MaxCronRetries,
		TimeoutSecs:      cfg.TimeoutSecs,
		LastSuccessAt:    cfg.LastSuccessAt,
		TaxesSyncedAt:    cfg.TaxesSyncedAt,
		CreatedAt:        cfg.CreatedAt,
		UpdatedAt:        cfg.UpdatedAt,
	}
}
