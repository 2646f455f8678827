package handler

import (
	"github.com/gin-gonic/gin"

	settingsapp "github.com/krbiz/backend/internal/application/settings"
	"github.com/krbiz/backend/internal/domain/report"
	"github.com/krbiz/backend/internal/domain/settings"
	csvimport "github.com/krbiz/backend/internal/infrastructure/import"
	"github.com/krbiz/backend/internal/interfaces/http/dto"
	"github.com/krbiz/backend/internal/interfaces/http/middleware"
)

// platformTableFile is the download name of the platform settings table
const platformTableFile = "platform-settings.csv"

// SettingsHandler exposes the stored user configuration
type SettingsHandler struct {
	BaseHandler
	svc         *settingsapp.Service
	parser      *csvimport.CSVParser
	maxFileSize int64
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(svc *settingsapp.Service, parser *csvimport.CSVParser, maxFileSize int64) *SettingsHandler {
	if parser == nil {
		parser = csvimport.NewCSVParser()
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &SettingsHandler{svc: svc, parser: parser, maxFileSize: maxFileSize}
}

// ListRaw returns the stored document of every settings key
func (h *SettingsHandler) ListRaw(c *gin.Context) {
	keys := settings.Keys()
	out := make([]dto.SettingsKeyResponse, 0, len(keys))
	for _, key := range keys {
		v, err := h.svc.Raw(c.Request.Context(), key)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		out = append(out, dto.SettingsKeyResponse{Key: key, Value: v})
	}
	h.Success(c, out)
}

// GetRaw returns the stored document of one key
func (h *SettingsHandler) GetRaw(c *gin.Context) {
	key := c.Param("key")
	v, err := h.svc.Raw(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.SettingsKeyResponse{Key: key, Value: v})
}

// Reset restores one key to its bundled default
func (h *SettingsHandler) Reset(c *gin.Context) {
	key := c.Param("key")
	if err := h.svc.Reset(c.Request.Context(), key); err != nil {
		h.HandleError(c, err)
		return
	}
	h.GetRaw(c)
}

// ResetAll restores every key to its bundled default
func (h *SettingsHandler) ResetAll(c *gin.Context) {
	if err := h.svc.ResetAll(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.ListRaw(c)
}

// GetPlatforms returns the platform schemas in configuration order
func (h *SettingsHandler) GetPlatforms(c *gin.Context) {
	schemas, err := h.svc.PlatformSchemas(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, schemas)
}

// ExportPlatforms downloads the platform schemas as an editable table
func (h *SettingsHandler) ExportPlatforms(c *gin.Context) {
	t, err := h.svc.ExportPlatformTable(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.DownloadCSV(c, platformTableFile, t)
}

// ImportPlatforms replaces the platform schemas with the uploaded table in
// the form's "file". Every problem is reported at once.
func (h *SettingsHandler) ImportPlatforms(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.FormError(c, "file", err)
		return
	}
	data, err := readUpload(fh, h.maxFileSize)
	if err != nil {
		h.FileError(c, fh.Filename, err)
		return
	}
	grid, err := h.parser.ParseBytes(fh.Filename, data)
	if err != nil {
		h.FileError(c, fh.Filename, err)
		return
	}
	t, err := grid.Table(0)
	if err != nil {
		h.FileError(c, fh.Filename, err)
		return
	}

	schemas, err := h.svc.ImportPlatformTable(c.Request.Context(), t)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, schemas)
}

// GetMatchKeys returns the match keys, newest first
func (h *SettingsHandler) GetMatchKeys(c *gin.Context) {
	keys, err := h.svc.LoadKeys(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, keys)
}

// AddMatchKey upserts the key of a delivery column
func (h *SettingsHandler) AddMatchKey(c *gin.Context) {
	var req dto.AddMatchKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	keys, err := h.svc.AddMatchKey(c.Request.Context(), req.MatchKey())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, keys)
}

// DeleteMatchKey removes the key of a delivery column
func (h *SettingsHandler) DeleteMatchKey(c *gin.Context) {
	keys, err := h.svc.DeleteMatchKey(c.Request.Context(), c.Param("column"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, keys)
}

// GetReportSchemas returns the report layouts in stored form
func (h *SettingsHandler) GetReportSchemas(c *gin.Context) {
	schemas, err := h.svc.ReportSchemas(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reportConfigs(schemas))
}

// PutReportSchemas replaces every report layout
func (h *SettingsHandler) PutReportSchemas(c *gin.Context) {
	var req dto.SaveReportSchemasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	schemas, err := h.svc.SaveReportSchemas(c.Request.Context(), req.Configs())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reportConfigs(schemas))
}

// GetDeliveryFormat returns the courier upload layout
func (h *SettingsHandler) GetDeliveryFormat(c *gin.Context) {
	format, err := h.svc.DeliveryFormat(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, format.Config())
}

// PutDeliveryFormat replaces the courier upload layout
func (h *SettingsHandler) PutDeliveryFormat(c *gin.Context) {
	var req dto.SaveDeliveryFormatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	format, err := h.svc.SaveDeliveryFormat(c.Request.Context(), req.Config())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, format.Config())
}

func reportConfigs(schemas []report.Schema) []report.SchemaConfig {
	out := make([]report.SchemaConfig, len(schemas))
	for i, s := range schemas {
		out[i] = s.Config()
	}
	return out
}
