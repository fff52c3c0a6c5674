package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/domain/models"
	"github.com/mbalde7/stockly/internal/mutation"
	"github.com/mbalde7/stockly/internal/server"
)

// MutationHandler exposes the stock mutation form and submission over HTTP.
type MutationHandler struct {
	manager *server.WorkstationManager
	logger  *zap.Logger
}

// NewMutationHandler constructs the HTTP handler adapter.
func NewMutationHandler(manager *server.WorkstationManager, logger *zap.Logger) *MutationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationHandler{manager: manager, logger: logger}
}

// SelectTarget resolves and selects the stock line the next intent targets.
// The manual product picker posts here; scanner-selected targets arrive
// through the scan pipeline instead.
func (h *MutationHandler) SelectTarget(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	var req models.SelectTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid target payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	line, err := ws.Coordinator.SelectTarget(c.Request.Context(), req.StockLineID)
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, line)
}

// UpdateForm applies partial mutation-form edits.
func (h *MutationHandler) UpdateForm(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	var req models.MutationFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid form payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Action != nil {
		if err := ws.Coordinator.SetAction(models.ActionKind(*req.Action)); err != nil {
			respondMutationError(c, err)
			return
		}
	}
	if req.Quantity != nil {
		ws.Coordinator.SetQuantity(*req.Quantity)
	}
	if req.Reason != nil {
		ws.Coordinator.SetReason(*req.Reason)
	}

	c.Status(http.StatusNoContent)
}

// Validate runs the local checks without submitting.
func (h *MutationHandler) Validate(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	if err := ws.Coordinator.Validate(); err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Submit issues exactly one mutation for the current form.
func (h *MutationHandler) Submit(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	result, err := ws.Coordinator.Submit(c.Request.Context())
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        result.Message,
		"intent":         result.Intent,
		"stockLine":      result.Line,
		"quantityBefore": result.Before,
		"quantityAfter":  result.After,
	})
}

// Reset clears the form and discards the last intent.
func (h *MutationHandler) Reset(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	ws.Coordinator.Reset()
	c.Status(http.StatusNoContent)
}

// GetStockLine resolves one stock line for display, cache first. Viewing a
// line never selects it: the pending mutation target is untouched.
func (h *MutationHandler) GetStockLine(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	line, err := ws.Coordinator.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, line)
}

// respondMutationError maps the mutation error taxonomy onto HTTP statuses.
// Each class keeps a distinct, human-readable message.
func respondMutationError(c *gin.Context, err error) {
	var insufficientErr *mutation.InsufficientStockError
	if errors.As(err, &insufficientErr) {
		c.JSON(http.StatusConflict, gin.H{"error": insufficientErr.Error(), "kind": "insufficient_stock"})
		return
	}

	var validationErr *mutation.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Error(), "kind": "validation"})
		return
	}

	if errors.Is(err, mutation.ErrSubmissionInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "submission_in_flight"})
		return
	}

	var ambiguousErr *mutation.AmbiguousError
	if errors.As(err, &ambiguousErr) {
		// Accepted, not asserted: the write may have landed; a refresh of the
		// stock line has been scheduled.
		c.JSON(http.StatusAccepted, gin.H{"error": ambiguousErr.Error(), "kind": "ambiguous_remote"})
		return
	}

	var remoteErr *mutation.RemoteError
	if errors.As(err, &remoteErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": remoteErr.Error(), "kind": "failed_remote"})
		return
	}

	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "kind": "failed_remote"})
}
