package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Fiscal-Harmony/odoov19/internal/application/dto"
	appfiscal "github.com/Fiscal-Harmony/odoov19/internal/application/fiscal"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
)

// DocumentHandler maneja el ingest y el ciclo de fiscalización de documentos.
type DocumentHandler struct {
	ingestor   *appfiscal.Ingestor
	submitter  *appfiscal.Submitter
	pdfService *appfiscal.PDFService
	docRepo    repository.FiscalDocumentRepository
	logRepo    repository.SubmissionLogRepository
}

// NewDocumentHandler construye el handler de documentos.
func NewDocumentHandler(
	ingestor *appfiscal.Ingestor,
	submitter *appfiscal.Submitter,
	pdfService *appfiscal.PDFService,
	docRepo repository.FiscalDocumentRepository,
	logRepo repository.SubmissionLogRepository,
) *DocumentHandler {
	return &DocumentHandler{
		ingestor:   ingestor,
		submitter:  submitter,
		pdfService: pdfService,
		docRepo:    docRepo,
		logRepo:    logRepo,
	}
}

// Ingest godoc
// @Summary      Ingresar documento del host
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        body  body  dto.IngestDocumentRequest  true  "documento con líneas"
// @Success      201   {object}  dto.DocumentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/documents [post]
func (h *DocumentHandler) Ingest(c *fiber.Ctx) error {
	var in dto.IngestDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	doc := toDocumentEntity(&in)
	if err := h.ingestor.Ingest(c.UserContext(), doc); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toDocumentResponse(doc))
}

// GetByID godoc
// @Summary      Consultar documento con su rastro fiscal
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "ID del documento"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	doc, err := h.docRepo.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toDocumentResponse(doc))
}

// Submit godoc
// @Summary      Fiscalizar documento (manual)
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "ID del documento"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/submit [post]
func (h *DocumentHandler) Submit(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.submitter.Submit(c.UserContext(), id, true); err != nil {
		return respondError(c, err)
	}
	doc, err := h.docRepo.GetByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toDocumentResponse(doc))
}

// Cancel godoc
// @Summary      Cancelar documento fiscalizado
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "ID del documento"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/cancel [post]
func (h *DocumentHandler) Cancel(c *fiber.Ctx) error {
	if err := h.submitter.Cancel(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Exempt godoc
// @Summary      Marcar documento como exento
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "ID del documento"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/exempt [post]
func (h *DocumentHandler) Exempt(c *fiber.Ctx) error {
	if err := h.submitter.Exempt(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reset godoc
// @Summary      Devolver documento fallido a pendiente
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "ID del documento"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/reset [post]
func (h *DocumentHandler) Reset(c *fiber.Ctx) error {
	if err := h.submitter.Reset(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Logs godoc
// @Summary      Historial de intentos de envío del documento
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "ID del documento"
// @Success      200  {array}  dto.SubmissionLogResponse
// @Router       /api/documents/{id}/logs [get]
func (h *DocumentHandler) Logs(c *fiber.Ctx) error {
	logs, err := h.logRepo.ListByDocument(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.SubmissionLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, dto.SubmissionLogResponse{
			ID:           l.ID,
			DocNumber:    l.DocNumber,
			Status:       l.Status,
			ErrorMessage: l.ErrorMessage,
			FiscalNumber: l.FiscalNumber,
			HTTPStatus:   l.HTTPStatus,
			DurationMs:   l.DurationMs,
			SentAt:       l.SentAt,
			FiscalizedAt: l.FiscalizedAt,
			CreatedAt:    l.CreatedAt,
		})
	}
	return c.JSON(out)
}

// PDF godoc
// @Summary      PDF del recibo fiscal
// @Tags         documents
// @Produce      application/pdf
// @Param        id  path  string  true  "ID del documento"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/pdf [get]
func (h *DocumentHandler) PDF(c *fiber.Ctx) error {
	data, err := h.pdfService.ReceiptPDF(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(data)
}

// Receipt godoc
// @Summary      Representación gráfica local del recibo
// @Tags         documents
// @Produce      application/pdf
// @Param        id  path  string  true  "ID del documento"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/receipt [get]
func (h *DocumentHandler) Receipt(c *fiber.Ctx) error {
	data, err := h.pdfService.GraphicPDF(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(data)
}

// ── converters ────────────────────────────────────────────────────────────────

func toDocumentEntity(in *dto.IngestDocumentRequest) *entity.FiscalDocument {
	lines := make([]entity.DocumentLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, entity.DocumentLine{
			Description:   l.Description,
			DisplayType:   l.DisplayType,
			ProductCode:   l.ProductCode,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			PriceSubtotal: l.PriceSubtotal,
			PriceTotal:    l.PriceTotal,
			LocalTaxID:    l.LocalTaxID,
			TaxName:       l.TaxName,
		})
	}
	return &entity.FiscalDocument{
		DocType:           in.DocType,
		DocNumber:         in.DocNumber,
		Reference:         in.Reference,
		ReversedDocNumber: in.ReversedDocNumber,
		WarehouseID:       in.WarehouseID,
		State:             in.State,
		DocDate:           in.DocDate,
		PartnerName:       in.PartnerName,
		PartnerTIN:        in.PartnerTIN,
		PartnerVAT:        in.PartnerVAT,
		PartnerPhone:      in.PartnerPhone,
		PartnerEmail:      in.PartnerEmail,
		PartnerProvince:   in.PartnerProvince,
		PartnerStreet:     in.PartnerStreet,
		PartnerHouseNo:    in.PartnerHouseNo,
		PartnerCity:       in.PartnerCity,
		CurrencyCode:      in.CurrencyCode,
		AmountUntaxed:     in.AmountUntaxed,
		AmountTax:         in.AmountTax,
		AmountTotal:       in.AmountTotal,
		Lines:             lines,
	}
}

func toDocumentResponse(d *entity.FiscalDocument) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:               d.ID,
		DocType:          d.DocType,
		DocNumber:        d.DocNumber,
		Reference:        d.Reference,
		WarehouseID:      d.WarehouseID,
		State:            d.State,
		DocDate:          d.DocDate,
		PartnerName:      d.PartnerName,
		CurrencyCode:     d.CurrencyCode,
		AmountUntaxed:    d.AmountUntaxed,
		AmountTax:        d.AmountTax,
		AmountTotal:      d.AmountTotal,
		FiscalStatus:     d.FiscalStatus,
		FiscalNumber:     d.FiscalNumber,
		ErrorText:        d.ErrorText,
		SentAt:           d.SentAt,
		FiscalizedAt:     d.FiscalizedAt,
		RetryCount:       d.RetryCount,
		QrCodeURL:        d.QrCodeURL,
		VerificationCode: d.VerificationCode,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
