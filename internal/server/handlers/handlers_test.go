package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbalde7/stockly/internal/config"
	"github.com/mbalde7/stockly/internal/domain/models"
	"github.com/mbalde7/stockly/internal/server"
	"github.com/mbalde7/stockly/internal/server/handlers"
	"github.com/mbalde7/stockly/internal/server/router"
	"github.com/mbalde7/stockly/pkg/clients/inventory"
)

// ── Stub collaborators ───────────────────────────────────────────────────────

type fakeInventory struct {
	mu    sync.Mutex
	lines map[string]models.StockLine
	fail  *inventory.APIError
	calls int
}

func (f *fakeInventory) GetStockLine(_ context.Context, id string) (*models.StockLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[id]
	if !ok {
		return nil, &inventory.APIError{StatusCode: 404, Message: "stock line not found"}
	}
	return &line, nil
}

func (f *fakeInventory) apply(req inventory.MutationRequest, delta func(models.StockLine) models.StockLine) (*models.StockLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	line := f.lines[req.TargetID]
	line = delta(line)
	f.lines[req.TargetID] = line
	return &line, nil
}

func (f *fakeInventory) AddStock(_ context.Context, req inventory.MutationRequest) (*models.StockLine, error) {
	return f.apply(req, func(l models.StockLine) models.StockLine { l.CurrentQuantity += req.Quantity; return l })
}

func (f *fakeInventory) RemoveStock(_ context.Context, req inventory.MutationRequest) (*models.StockLine, error) {
	return f.apply(req, func(l models.StockLine) models.StockLine { l.CurrentQuantity -= req.Quantity; return l })
}

func (f *fakeInventory) SellStock(_ context.Context, req inventory.MutationRequest) (*models.StockLine, error) {
	return f.apply(req, func(l models.StockLine) models.StockLine { l.CurrentQuantity -= req.Quantity; return l })
}

func (f *fakeInventory) ReturnStock(_ context.Context, req inventory.MutationRequest) (*models.StockLine, error) {
	return f.apply(req, func(l models.StockLine) models.StockLine { l.CurrentQuantity += req.Quantity; return l })
}

func (f *fakeInventory) AdjustStock(_ context.Context, req inventory.MutationRequest) (*models.StockLine, error) {
	return f.apply(req, func(l models.StockLine) models.StockLine { l.CurrentQuantity = req.Quantity; return l })
}

type fakeStore struct {
	mu      sync.Mutex
	lines   map[string]models.StockLine
	marked  []string
	journal []models.MutationRecord
}

func (s *fakeStore) GetStockLine(_ context.Context, id string) (*models.StockLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[id]
	if !ok {
		return nil, nil
	}
	return &line, nil
}

func (s *fakeStore) UpsertStockLine(_ context.Context, line models.StockLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[line.StockLineID] = line
	return nil
}

func (s *fakeStore) MarkPendingReconcile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, id)
	return nil
}

func (s *fakeStore) AppendMutationRecord(_ context.Context, record models.MutationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, record)
	return nil
}

type fakeRefresher struct {
	mu        sync.Mutex
	scheduled []string
}

func (r *fakeRefresher) ScheduleRefresh(id string, _ time.Duration) {
	r.mu.Lock()
	r.scheduled = append(r.scheduled, id)
	r.mu.Unlock()
}

// ── Harness ──────────────────────────────────────────────────────────────────

type harness struct {
	engine    http.Handler
	inv       *fakeInventory
	store     *fakeStore
	refresher *fakeRefresher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	line := models.StockLine{
		StockLineID:     "SL-1",
		ProductID:       "P-1",
		ProductName:     "Denim Jacket",
		SKU:             "DJ-BLK-M",
		CurrentQuantity: 10,
	}
	other := models.StockLine{
		StockLineID:     "SL-2",
		ProductID:       "P-2",
		ProductName:     "Wool Scarf",
		CurrentQuantity: 7,
	}

	inv := &fakeInventory{lines: map[string]models.StockLine{"SL-1": line, "SL-2": other}}
	store := &fakeStore{lines: map[string]models.StockLine{"SL-1": line, "SL-2": other}}
	refresher := &fakeRefresher{}

	manager := server.NewWorkstationManager(inv, store, refresher,
		config.ScanConfig{Cooldown: 2 * time.Second}, 3*time.Second, nil)

	engine := router.New(handlers.NewScanHandler(manager, nil), handlers.NewMutationHandler(manager, nil), nil)
	return &harness{engine: engine, inv: inv, store: store, refresher: refresher}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Device-ID", "device-1")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func (h *harness) grantAndStart(t *testing.T) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/scan/permission", models.PermissionReport{Granted: true})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPost, "/scan/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestMissingDeviceHeader(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/scan/session", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartSessionWithoutPermissionReport(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/scan/session", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStartSessionDenied(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/scan/permission", models.PermissionReport{Granted: false})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodPost, "/scan/session", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScanPipelineSelectsTarget(t *testing.T) {
	h := newHarness(t)
	h.grantAndStart(t)

	rec := h.do(t, http.MethodPost, "/scan/detections", models.DetectionEvent{
		Value:      "SL-1",
		Symbology:  "ean13",
		DetectedAt: time.Now(),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The accepted scan is visible in the snapshot.
	rec = h.do(t, http.MethodGet, "/scan/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.ScanSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Accepted)
	assert.Equal(t, "SL-1", snap.LastAcceptedValue)

	// The coordinator picks up the target asynchronously.
	require.Eventually(t, func() bool {
		rec := h.do(t, http.MethodPost, "/mutation/form", models.MutationFormRequest{
			Action:   strPtr("add"),
			Quantity: strPtr("1"),
		})
		if rec.Code != http.StatusNoContent {
			return false
		}
		return h.do(t, http.MethodPost, "/mutation/validate", nil).Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)
}

func TestManualTargetAndSubmit(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/mutation/target", models.SelectTargetRequest{StockLineID: "SL-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/mutation/form", models.MutationFormRequest{
		Action:   strPtr("remove"),
		Quantity: strPtr("5"),
		Reason:   strPtr("damaged"),
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodPost, "/mutation/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message        string `json:"message"`
		QuantityBefore int    `json:"quantityBefore"`
		QuantityAfter  int    `json:"quantityAfter"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 10, body.QuantityBefore)
	assert.Equal(t, 5, body.QuantityAfter)
	assert.Contains(t, body.Message, "Denim Jacket")
}

func TestSubmitWithoutTargetReturns422(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/mutation/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")
}

func TestInsufficientStockReturns409(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/mutation/target", models.SelectTargetRequest{StockLineID: "SL-1"}).Code)
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/mutation/form", models.MutationFormRequest{
		Action:   strPtr("sell"),
		Quantity: strPtr("11"),
	}).Code)

	rec := h.do(t, http.MethodPost, "/mutation/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_stock")
	assert.Equal(t, 0, h.inv.calls)
}

func TestRemoteFailureReturns502(t *testing.T) {
	h := newHarness(t)
	h.inv.fail = &inventory.APIError{StatusCode: 500, Message: "stock line locked"}

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/mutation/target", models.SelectTargetRequest{StockLineID: "SL-1"}).Code)
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/mutation/form", models.MutationFormRequest{
		Action:   strPtr("add"),
		Quantity: strPtr("1"),
	}).Code)

	rec := h.do(t, http.MethodPost, "/mutation/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed_remote")
}

func TestAmbiguousFailureReturns202AndSchedulesRefresh(t *testing.T) {
	h := newHarness(t)
	h.inv.fail = &inventory.APIError{StatusCode: 500, Message: "barcode validation failed"}

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/mutation/target", models.SelectTargetRequest{StockLineID: "SL-1"}).Code)
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/mutation/form", models.MutationFormRequest{
		Action:   strPtr("sell"),
		Quantity: strPtr("1"),
	}).Code)

	rec := h.do(t, http.MethodPost, "/mutation/submit", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "ambiguous_remote")

	h.refresher.mu.Lock()
	assert.Equal(t, []string{"SL-1"}, h.refresher.scheduled)
	h.refresher.mu.Unlock()
}

func TestGetStockLine(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/stock/SL-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var line models.StockLine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &line))
	assert.Equal(t, "SL-2", line.StockLineID)
	assert.Equal(t, 7, line.CurrentQuantity)
}

func TestGetStockLineUnknown(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/stock/SL-missing", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestViewingStockLineDoesNotRedirectSubmit(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/mutation/target", models.SelectTargetRequest{StockLineID: "SL-1"}).Code)
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/mutation/form", models.MutationFormRequest{
		Action:   strPtr("remove"),
		Quantity: strPtr("5"),
		Reason:   strPtr("damaged"),
	}).Code)

	// Browsing another line between form entry and submit is a read.
	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/stock/SL-2", nil).Code)

	rec := h.do(t, http.MethodPost, "/mutation/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		StockLine      models.StockLine `json:"stockLine"`
		QuantityBefore int              `json:"quantityBefore"`
		QuantityAfter  int              `json:"quantityAfter"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SL-1", body.StockLine.StockLineID)
	assert.Equal(t, 10, body.QuantityBefore)
	assert.Equal(t, 5, body.QuantityAfter)

	h.inv.mu.Lock()
	assert.Equal(t, 7, h.inv.lines["SL-2"].CurrentQuantity, "viewed line is never mutated")
	h.inv.mu.Unlock()
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func strPtr(s string) *string { return &s }
