package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/domain/settings"
	"github.com/krbiz/backend/internal/domain/shared"
	"github.com/krbiz/backend/internal/domain/sheet"
	csvimport "github.com/krbiz/backend/internal/infrastructure/import"
	"github.com/krbiz/backend/internal/infrastructure/logger"
	"github.com/krbiz/backend/internal/interfaces/http/dto"
	"github.com/krbiz/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, message string, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(message, middleware.GetRequestID(c), details))
}

// HandleError converts application errors to HTTP responses. Domain errors
// carry their own code; a few sentinels of the domain packages are mapped
// here; anything else is logged and answered with 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	var problems settings.ValidationErrors
	if errors.As(err, &problems) {
		details := make([]dto.ValidationDetail, len(problems))
		for i, p := range problems {
			details[i] = dto.ValidationDetail{Message: p}
		}
		h.ValidationError(c, "Settings validation failed", details)
		return
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		middleware.HandleValidationError(c, err)
		return
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, reconcile.ErrNoDeliveryConfirmation):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, "upload a delivery confirmation before reconciling")
	case errors.Is(err, delivery.ErrEmptyDeliveryColumn), errors.Is(err, delivery.ErrEmptyVariable):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
	default:
		logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
		h.InternalError(c, "An unexpected error occurred")
	}
}

// DownloadCSV streams a table as a CSV attachment. ?encoding=cp949 produces
// CP949 for older spreadsheet tools; otherwise UTF-8 with a BOM.
func (h *BaseHandler) DownloadCSV(c *gin.Context, name string, t *sheet.Table) {
	charset := "utf-8"
	var opts []csvimport.WriteOption
	if c.Query("encoding") == csvimport.EncodingCP949 {
		charset = csvimport.EncodingCP949
		opts = append(opts, csvimport.WithCP949())
	}
	data, err := csvimport.EncodeTable(t, opts...)
	if err != nil {
		h.Error(c, http.StatusUnprocessableEntity, csvimport.ErrCodeImportInvalidEncoding,
			"the table cannot be written as "+charset+", download it as UTF-8")
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, "text/csv; charset="+charset, data)
}

// FormError answers a multipart form that could not be read
func (h *BaseHandler) FormError(c *gin.Context, field string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		h.HandleError(c, err)
	case errors.Is(err, http.ErrMissingFile):
		h.BadRequest(c, fmt.Sprintf("file is required in field %q", field))
	default:
		h.BadRequest(c, "invalid multipart form: "+err.Error())
	}
}

// FileError answers a rejected upload with the import error code
func (h *BaseHandler) FileError(c *gin.Context, name string, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, csvimport.ErrFileTooLarge) || errors.Is(err, csvimport.ErrTooManyRows) {
		status = http.StatusRequestEntityTooLarge
	}
	logger.L(c.Request.Context()).Warn("Upload rejected", zap.String("file", name), zap.Error(err))
	h.Error(c, status, csvimport.ErrorCode(err), fmt.Sprintf("%s: %v", name, err))
}
