package documents

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"research-portal/internal/export"
	"research-portal/internal/extract"
	"research-portal/internal/financial"
	"research-portal/internal/llm"
	"research-portal/internal/shared/metrics"
	"research-portal/internal/shared/server/respond"
	"research-portal/internal/shared/storage/object"
)

const (
	defaultMaxUploadBytes = 50 << 20
	multipartOverhead     = 1 << 20
	exportFileName        = "financial-data.xlsx"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches processing and export routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.process)
	rg.POST("/process/from-storage", h.processFromStorage)
	rg.POST("/export/financial", h.exportFinancial)
}

func (h *Handler) maxBytes() int64 {
	if h.Svc != nil && h.Svc.MaxBytes > 0 {
		return h.Svc.MaxBytes
	}
	return defaultMaxUploadBytes
}

func (h *Handler) process(c *gin.Context) {
	limit := h.maxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, object.ErrTooLarge)
			return
		}
		h.fail(c, errNoDocument)
		return
	}
	c.Set("fileName", fileHeader.Filename)
	c.Set("sizeBytes", fileHeader.Size)
	if fileHeader.Size > limit {
		h.fail(c, object.ErrTooLarge)
		return
	}

	tool, err := ParseToolType(c.PostForm("toolType"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set("toolType", string(tool))

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, errNoDocument)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(c, errNoDocument)
		return
	}

	out, err := h.Svc.Process(c.Request.Context(), Document{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}, tool)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, toResponse(out))
}

type fromStorageRequest struct {
	Key      string `json:"key" binding:"required"`
	ToolType string `json:"toolType" binding:"required"`
}

func (h *Handler) processFromStorage(c *gin.Context) {
	var req fromStorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "key and toolType are required", nil)
		return
	}

	tool, err := ParseToolType(req.ToolType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set("toolType", string(tool))
	c.Set("fileName", strings.TrimSpace(req.Key))

	out, err := h.Svc.ProcessStored(c.Request.Context(), req.Key, tool)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, toResponse(out))
}

type exportRequest struct {
	Data *financial.Result `json:"data"`
}

func (h *Handler) exportFinancial(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.Data == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "data is required", nil)
		return
	}
	c.Set("toolType", string(ToolFinancial))

	body, err := export.FinancialXLSX(req.Data.LineItems)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "export_failed", "Failed to generate Excel file", nil)
		return
	}

	respond.Attachment(c, exportFileName, export.ContentType, body)
}

var errNoDocument = errors.New("No document uploaded")

// fail maps a processing error onto the standard error body.
func (h *Handler) fail(c *gin.Context, err error) {
	status, code, message := classify(err)
	metrics.IncDocumentFailed(code)

	var details any
	if status >= http.StatusInternalServerError && code == "processing_failed" {
		details = gin.H{"message": llm.SanitizeError(err)}
	}
	respond.Error(c, status, code, message, details)
}

func classify(err error) (int, string, string) {
	var extractErr *extract.ExtractionError
	switch {
	case llm.IsConfigurationError(err):
		return http.StatusServiceUnavailable, "llm_not_configured", llm.SanitizeError(err)
	case errors.Is(err, ErrInvalidToolType):
		return http.StatusBadRequest, "validation_error", ErrInvalidToolType.Error()
	case errors.Is(err, errNoDocument):
		return http.StatusBadRequest, "validation_error", errNoDocument.Error()
	case errors.As(err, &extractErr), errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusBadRequest, "extraction_error", "Failed to extract text from PDF. Ensure the file is a valid PDF."
	case errors.Is(err, ErrEmptyDocument):
		return http.StatusBadRequest, "empty_document", ErrEmptyDocument.Error()
	case errors.Is(err, object.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "file_too_large", "document exceeds the upload size limit"
	case errors.Is(err, object.ErrInvalidKey):
		return http.StatusBadRequest, "validation_error", "invalid storage key"
	case errors.Is(err, object.ErrNotFound):
		return http.StatusNotFound, "not_found", "document not found"
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable", ErrStorageUnavailable.Error()
	default:
		return http.StatusInternalServerError, "processing_failed", "Processing failed"
	}
}
