package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	reconcileapp "github.com/krbiz/backend/internal/application/reconcile"
	"github.com/krbiz/backend/internal/interfaces/http/middleware"
)

// OrderHandler manages the order files and the delivery confirmation of a
// session
type OrderHandler struct {
	BaseHandler
	svc         *reconcileapp.Service
	maxFileSize int64
}

// NewOrderHandler creates a new OrderHandler. maxFileSize <= 0 selects
// DefaultMaxFileSize.
func NewOrderHandler(svc *reconcileapp.Service, maxFileSize int64) *OrderHandler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &OrderHandler{svc: svc, maxFileSize: maxFileSize}
}

// UploadOrders stores the "files" of a multipart form. A password for a
// sealed file is sent as password[<file name>]; a plain "password" field
// applies to every file without its own.
func (h *OrderHandler) UploadOrders(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.FormError(c, "files", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		h.FormError(c, "files", http.ErrMissingFile)
		return
	}

	passwords := c.PostFormMap("password")
	fallback := c.PostForm("password")

	uploads := make([]reconcileapp.Upload, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh, h.maxFileSize)
		if err != nil {
			h.FileError(c, fh.Filename, err)
			return
		}
		pw, ok := passwords[fh.Filename]
		if !ok {
			pw = fallback
		}
		uploads = append(uploads, reconcileapp.Upload{Name: fh.Filename, Data: data, Password: pw})
	}

	infos, err := h.svc.UploadOrderFiles(c.Request.Context(), middleware.GetSessionID(c), uploads)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, infos)
}

// ListOrders describes every order file with its detected platform
func (h *OrderHandler) ListOrders(c *gin.Context) {
	infos, err := h.svc.ListOrderFiles(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, infos)
}

// DeleteOrder removes one order file by name
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.svc.DeleteOrderFile(c.Request.Context(), middleware.GetSessionID(c), c.Param("name")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// UploadDelivery replaces the delivery confirmation with the form's "file"
func (h *OrderHandler) UploadDelivery(c *gin.Context) {
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

	info, err := h.svc.UploadDeliveryConfirmation(c.Request.Context(), middleware.GetSessionID(c), fh.Filename, data)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, info)
}

// GetDelivery describes the active delivery confirmation
func (h *OrderHandler) GetDelivery(c *gin.Context) {
	info, err := h.svc.Delivery(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, info)
}

// ClearDelivery drops the active delivery confirmation
func (h *OrderHandler) ClearDelivery(c *gin.Context) {
	if err := h.svc.ClearDelivery(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
