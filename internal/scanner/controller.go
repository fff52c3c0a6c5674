package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/domain/models"
)

// ErrPermissionDenied is returned when the camera collaborator refuses
// authorization. It is recoverable: the caller may re-request at any time.
var ErrPermissionDenied = errors.New("camera permission denied")

// DefaultCooldown is the minimum gap between accepted detections. Two
// seconds matches how long an operator needs to move the device off the
// item they just scanned.
const DefaultCooldown = 2 * time.Second

// PermissionRequester is the camera collaborator's authorization surface.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// Controller owns the lifecycle of one scanning attempt: permission
// acquisition, capture start/stop, and filtering the raw detection stream
// down to at most one accepted value per session.
//
// The guards and the accepted value are protected by a single mutex; the
// camera collaborator may push detections from any goroutine.
type Controller struct {
	mu sync.Mutex

	permission models.PermissionState
	phase      models.SessionPhase

	captureActive bool
	accepted      bool
	acceptedValue string

	// lastAcceptedValue / lastAcceptedAt survive StartSession resets so the
	// cooldown guards can span sessions.
	lastAcceptedValue string
	lastAcceptedAt    time.Time

	cooldown   time.Duration
	camera     PermissionRequester
	onAccepted func(value string)
	logger     *zap.Logger
	now        func() time.Time
}

// Option tweaks Controller construction.
type Option func(*Controller)

// WithCooldown overrides the accepted-detection cooldown window.
func WithCooldown(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithClock substitutes the time source. Tests use this to step through
// cooldown windows deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// OnAccepted registers the consumer callback fired when a detection is
// accepted. The callback runs on its own goroutine so the camera feed is
// never blocked by the consumer.
func OnAccepted(fn func(value string)) Option {
	return func(c *Controller) { c.onAccepted = fn }
}

// NewController wires a scan session controller.
func NewController(camera PermissionRequester, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		permission: models.PermissionUnknown,
		phase:      models.SessionIdle,
		cooldown:   DefaultCooldown,
		camera:     camera,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestPermission asks the camera collaborator for authorization. Denial
// is reported, not fatal: the controller stays usable and the caller may
// re-request later.
func (c *Controller) RequestPermission(ctx context.Context) (models.PermissionState, error) {
	granted, err := c.camera.RequestPermission(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.permission = models.PermissionDenied
		c.phase = models.SessionDenied
		return c.permission, err
	}
	if !granted {
		c.permission = models.PermissionDenied
		c.phase = models.SessionDenied
		c.logger.Warn("camera permission denied")
		return c.permission, ErrPermissionDenied
	}

	c.permission = models.PermissionGranted
	if c.phase == models.SessionIdle || c.phase == models.SessionDenied {
		c.phase = models.SessionReady
	}
	return c.permission, nil
}

// StartSession resets the session and activates capture. Idempotent: calling
// it while capture is already active simply resets and restarts. Permission
// is requested first when it has not been granted yet.
func (c *Controller) StartSession(ctx context.Context) error {
	c.mu.Lock()
	needPermission := c.permission != models.PermissionGranted
	c.mu.Unlock()

	if needPermission {
		if _, err := c.RequestPermission(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Carry the accepted value into the cross-session cooldown fields before
	// the per-session state is wiped.
	if c.accepted {
		c.lastAcceptedValue = c.acceptedValue
	}
	c.accepted = false
	c.acceptedValue = ""
	c.captureActive = true
	c.phase = models.SessionCapturing

	c.logger.Info("scan session started")
	return nil
}

// StopSession deactivates capture. An already-accepted value is retained: a
// stopped-but-accepted session still reports what it scanned.
func (c *Controller) StopSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.captureActive = false
	if !c.accepted {
		c.phase = models.SessionStopped
	}
	c.logger.Info("scan session stopped", zap.Bool("accepted", c.accepted))
}

// OnRawDetection is the continuous event feed from the camera collaborator.
// A detection failing any guard is ignored without state change or consumer
// notification; it never returns an error to the event source.
func (c *Controller) OnRawDetection(event models.DetectionEvent) {
	c.ingest(event.Value, event.DetectedAt, event.Symbology)
}

// InjectManualValue bypasses the camera feed but passes through the same
// guards as OnRawDetection. It exists for deterministic tests and offline
// capture rigs, never as conditional production logic.
func (c *Controller) InjectManualValue(value string) {
	c.ingest(value, c.now(), "manual")
}

func (c *Controller) ingest(value string, detectedAt time.Time, symbology string) {
	c.mu.Lock()

	if reason := c.rejectionReason(value, detectedAt); reason != "" {
		c.mu.Unlock()
		c.logger.Debug("detection ignored",
			zap.String("reason", reason),
			zap.String("symbology", symbology))
		return
	}

	c.accepted = true
	c.captureActive = false
	c.acceptedValue = value
	c.lastAcceptedValue = value
	c.lastAcceptedAt = detectedAt
	c.phase = models.SessionAccepted
	callback := c.onAccepted
	c.mu.Unlock()

	c.logger.Info("detection accepted",
		zap.String("value", value),
		zap.String("symbology", symbology))

	if callback != nil {
		go callback(value)
	}
}

// rejectionReason applies guards 1-4 in order and names the first that
// fires. Empty string means the detection is accepted. Caller holds the lock.
func (c *Controller) rejectionReason(value string, detectedAt time.Time) string {
	if !c.captureActive || c.accepted {
		return "session inactive"
	}
	if value == "" {
		return "empty value"
	}
	if !c.lastAcceptedAt.IsZero() && detectedAt.Sub(c.lastAcceptedAt) < c.cooldown {
		if value == c.lastAcceptedValue {
			return "duplicate of previous accept within cooldown"
		}
		return "cooldown active"
	}
	return ""
}

// Accepted reports whether the session has accepted a value, and the value.
func (c *Controller) Accepted() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptedValue, c.accepted
}

// Snapshot returns the externally visible session state.
func (c *Controller) Snapshot() models.ScanSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.ScanSnapshot{
		Phase:             c.phase,
		Permission:        c.permission,
		CaptureActive:     c.captureActive,
		Accepted:          c.accepted,
		LastAcceptedValue: c.acceptedValue,
	}
	if !c.lastAcceptedAt.IsZero() {
		at := c.lastAcceptedAt
		snap.LastAcceptedAt = &at
	}
	return snap
}
