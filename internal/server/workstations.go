package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/config"
	"github.com/mbalde7/stockly/internal/mutation"
	"github.com/mbalde7/stockly/internal/scanner"
	"github.com/mbalde7/stockly/pkg/clients/inventory"
)

// ErrPermissionNotReported means the device has not yet answered a camera
// permission request over the permission endpoint.
var ErrPermissionNotReported = errors.New("camera permission not yet reported by device")

// ReportedPermissionGate adapts the HTTP permission report to the scan
// controller's PermissionRequester. The device answers the platform's
// permission prompt and pushes the result; until it does, requests fail and
// the controller stays out of capture.
type ReportedPermissionGate struct {
	mu      sync.Mutex
	granted *bool
}

// Report records the device's permission answer.
func (g *ReportedPermissionGate) Report(granted bool) {
	g.mu.Lock()
	g.granted = &granted
	g.mu.Unlock()
}

// RequestPermission implements scanner.PermissionRequester.
func (g *ReportedPermissionGate) RequestPermission(_ context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.granted == nil {
		return false, ErrPermissionNotReported
	}
	return *g.granted, nil
}

// Workstation bundles the per-device scan controller and mutation
// coordinator, joined so an accepted scan auto-selects the mutation target.
type Workstation struct {
	DeviceID    string
	Gate        *ReportedPermissionGate
	Controller  *scanner.Controller
	Coordinator *mutation.Coordinator
}

// WorkstationManager hands out one Workstation per device, creating it on
// first use.
type WorkstationManager struct {
	mu       sync.RWMutex
	stations map[string]*Workstation

	client       inventory.Client
	store        mutation.Store
	refresher    mutation.Refresher
	scanCfg      config.ScanConfig
	refreshDelay time.Duration
	logger       *zap.Logger
}

// NewWorkstationManager creates a new workstation manager.
func NewWorkstationManager(client inventory.Client, store mutation.Store, refresher mutation.Refresher, scanCfg config.ScanConfig, refreshDelay time.Duration, logger *zap.Logger) *WorkstationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkstationManager{
		stations:     make(map[string]*Workstation),
		client:       client,
		store:        store,
		refresher:    refresher,
		scanCfg:      scanCfg,
		refreshDelay: refreshDelay,
		logger:       logger,
	}
}

// Get returns the workstation for a device, building it when absent.
func (m *WorkstationManager) Get(deviceID string) *Workstation {
	m.mu.RLock()
	if ws, exists := m.stations[deviceID]; exists {
		m.mu.RUnlock()
		return ws
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, exists := m.stations[deviceID]; exists {
		return ws
	}

	wsLogger := m.logger.With(zap.String("device_id", deviceID))
	gate := &ReportedPermissionGate{}
	coordinator := mutation.NewCoordinator(deviceID, m.client, m.store, m.refresher, m.refreshDelay, wsLogger.Named("coordinator"))

	controller := scanner.NewController(gate, wsLogger.Named("scanner"),
		scanner.WithCooldown(m.scanCfg.Cooldown),
		scanner.OnAccepted(func(value string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := coordinator.SelectTarget(ctx, value); err != nil {
				wsLogger.Warn("scanned value did not resolve to a stock line",
					zap.String("value", value), zap.Error(err))
			}
		}))

	ws := &Workstation{
		DeviceID:    deviceID,
		Gate:        gate,
		Controller:  controller,
		Coordinator: coordinator,
	}
	m.stations[deviceID] = ws
	return ws
}
