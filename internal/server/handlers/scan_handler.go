package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/domain/models"
	"github.com/mbalde7/stockly/internal/scanner"
	"github.com/mbalde7/stockly/internal/server"
)

// deviceHeader identifies the handheld device behind each request. One scan
// controller and one mutation coordinator exist per device.
const deviceHeader = "X-Device-ID"

// ScanHandler exposes the scan session lifecycle over HTTP.
type ScanHandler struct {
	manager *server.WorkstationManager
	logger  *zap.Logger
}

// NewScanHandler constructs the HTTP handler adapter.
func NewScanHandler(manager *server.WorkstationManager, logger *zap.Logger) *ScanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanHandler{manager: manager, logger: logger}
}

func workstation(c *gin.Context, manager *server.WorkstationManager) (*server.Workstation, bool) {
	deviceID := c.GetHeader(deviceHeader)
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + deviceHeader + " header"})
		return nil, false
	}
	return manager.Get(deviceID), true
}

// ReportPermission records the device's answer to the camera permission
// prompt.
func (h *ScanHandler) ReportPermission(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	var report models.PermissionReport
	if err := c.ShouldBindJSON(&report); err != nil {
		h.logger.Warn("invalid permission report", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ws.Gate.Report(report.Granted)
	c.Status(http.StatusNoContent)
}

// StartSession resets the device's scan session and activates capture.
func (h *ScanHandler) StartSession(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	if err := ws.Controller.StartSession(c.Request.Context()); err != nil {
		if errors.Is(err, scanner.ErrPermissionDenied) || errors.Is(err, server.ErrPermissionNotReported) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed starting scan session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start scan session"})
		return
	}

	c.JSON(http.StatusOK, ws.Controller.Snapshot())
}

// StopSession deactivates capture without discarding an accepted value.
func (h *ScanHandler) StopSession(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	ws.Controller.StopSession()
	c.JSON(http.StatusOK, ws.Controller.Snapshot())
}

// GetSession returns the session snapshot, including an accepted value.
func (h *ScanHandler) GetSession(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, ws.Controller.Snapshot())
}

// ReceiveDetection ingests one raw detection pushed by the camera
// collaborator. Detections are acknowledged whether or not a guard drops
// them; the camera feed never learns about filtering.
func (h *ScanHandler) ReceiveDetection(c *gin.Context) {
	ws, ok := workstation(c, h.manager)
	if !ok {
		return
	}

	var event models.DetectionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warn("invalid detection payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if event.DetectedAt.IsZero() {
		event.DetectedAt = time.Now()
	}

	ws.Controller.OnRawDetection(event)
	c.Status(http.StatusAccepted)
}
