package handler

import (
	"path"

	"github.com/gin-gonic/gin"

	reconcileapp "github.com/krbiz/backend/internal/application/reconcile"
	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/interfaces/http/dto"
	"github.com/krbiz/backend/internal/interfaces/http/middleware"
)

// RunHandler runs merges and reconciliation passes and serves their files
type RunHandler struct {
	BaseHandler
	svc *reconcileapp.Service
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(svc *reconcileapp.Service) *RunHandler {
	return &RunHandler{svc: svc}
}

// downloadBase is the outputs URL of the session the request addresses.
// Every run route sits directly below the session.
func downloadBase(c *gin.Context) string {
	return path.Dir(c.Request.URL.Path) + "/outputs/"
}

// Reconcile runs the exact policy and renders per-platform reports
func (h *RunHandler) Reconcile(c *gin.Context) {
	result, err := h.svc.Reconcile(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewReconcileResponse(result, downloadBase(c)))
}

// Backfill runs the substring policy and stamps tracking numbers into the
// order files
func (h *RunHandler) Backfill(c *gin.Context) {
	result, err := h.svc.BackfillTracking(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewBackfillResponse(result, downloadBase(c)))
}

// Run executes the configured default policy
func (h *RunHandler) Run(c *gin.Context) {
	result, err := h.svc.Run(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Policy == reconcile.PolicySubstring {
		h.Success(c, dto.NewBackfillResponse(result.Backfill, downloadBase(c)))
		return
	}
	h.Success(c, dto.NewReconcileResponse(result.Reconcile, downloadBase(c)))
}

// Merge concatenates the session's order files into one unified table
func (h *RunHandler) Merge(c *gin.Context) {
	var req dto.MergeOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	result, err := h.svc.MergeOrders(c.Request.Context(), middleware.GetSessionID(c), req.Label)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewMergeResponse(result, downloadBase(c)))
}

// DeliveryForm converts the session's merged orders into the configured
// courier upload layout
func (h *RunHandler) DeliveryForm(c *gin.Context) {
	result, err := h.svc.MergeToDeliveryFormat(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewMergeResponse(result, downloadBase(c)))
}

// Download serves a file produced by an earlier run of the session
func (h *RunHandler) Download(c *gin.Context) {
	f, err := h.svc.Output(c.Request.Context(), middleware.GetSessionID(c), c.Param("name"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.DownloadCSV(c, f.Name, f.Table)
}
