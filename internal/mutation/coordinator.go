package mutation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/domain/models"
	"github.com/mbalde7/stockly/pkg/clients/inventory"
)

// Store is the slice of the local repository the coordinator needs: the
// cached stock-line copies, the mutation journal, and the pending-reconcile
// marks consumed by the scheduler sweep.
type Store interface {
	GetStockLine(ctx context.Context, stockLineID string) (*models.StockLine, error)
	UpsertStockLine(ctx context.Context, line models.StockLine) error
	MarkPendingReconcile(ctx context.Context, stockLineID string) error
	AppendMutationRecord(ctx context.Context, record models.MutationRecord) error
}

// Refresher schedules a one-shot read-refresh of a stock line, used after
// an ambiguous remote outcome.
type Refresher interface {
	ScheduleRefresh(stockLineID string, delay time.Duration)
}

// SubmitResult reports a successful mutation back to the caller, including
// the before/after quantities for the confirmation message.
type SubmitResult struct {
	Intent  models.MutationIntent
	Line    models.StockLine
	Before  int
	After   int
	Message string
}

// Coordinator turns a (stock line, action kind, quantity, reason) tuple into
// exactly one validated, submitted mutation and classifies its outcome.
//
// Form setters may be called while a submission is in flight; they mutate
// future intent state only. The Submitting status acts as the submission
// mutex: a second Submit while one is outstanding is rejected without
// touching the network.
type Coordinator struct {
	mu sync.Mutex

	deviceID string

	target      *models.StockLine
	action      models.ActionKind
	rawQuantity string
	rawReason   string

	submitting bool
	lastIntent *models.MutationIntent

	client       inventory.Client
	store        Store
	refresher    Refresher
	refreshDelay time.Duration
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
}

// NewCoordinator wires a coordinator for one device.
func NewCoordinator(deviceID string, client inventory.Client, store Store, refresher Refresher, refreshDelay time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		deviceID:     deviceID,
		client:       client,
		store:        store,
		refresher:    refresher,
		refreshDelay: refreshDelay,
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// Resolve looks up a stock line for display. The cached copy is preferred;
// a cache miss falls through to the service and refreshes the cache. The
// pending mutation target is not touched.
func (c *Coordinator) Resolve(ctx context.Context, stockLineID string) (*models.StockLine, error) {
	if strings.TrimSpace(stockLineID) == "" {
		return nil, &ValidationError{Field: "target", Reason: "stock line id is empty"}
	}

	line, err := c.store.GetStockLine(ctx, stockLineID)
	if err != nil || line == nil {
		line, err = c.client.GetStockLine(ctx, stockLineID)
		if err != nil {
			return nil, fmt.Errorf("resolve stock line %s: %w", stockLineID, err)
		}
		line.RefreshedAt = c.now()
		if cacheErr := c.store.UpsertStockLine(ctx, *line); cacheErr != nil {
			c.logger.Warn("failed caching stock line", zap.Error(cacheErr), zap.String("stock_line_id", stockLineID))
		}
	}

	return line, nil
}

// SelectTarget resolves a stock line by identifier and makes it the target
// of the next intent, overwriting any prior selection. Values coming from
// the scan controller and from the manual product picker are treated alike.
func (c *Coordinator) SelectTarget(ctx context.Context, stockLineID string) (*models.StockLine, error) {
	line, err := c.Resolve(ctx, stockLineID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.target = line
	c.mu.Unlock()

	c.logger.Info("target selected",
		zap.String("stock_line_id", line.StockLineID),
		zap.String("product", line.ProductName),
		zap.Int("current_quantity", line.CurrentQuantity))
	return line, nil
}

// SetAction changes the action kind. Quantity and reason entries are kept;
// only the rules that apply to them change.
func (c *Coordinator) SetAction(kind models.ActionKind) error {
	if !kind.Valid() {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action kind %q", kind)}
	}
	c.mu.Lock()
	c.action = kind
	c.mu.Unlock()
	return nil
}

// SetQuantity stores raw user text. Parsing happens at validation time.
func (c *Coordinator) SetQuantity(raw string) {
	c.mu.Lock()
	c.rawQuantity = raw
	c.mu.Unlock()
}

// SetReason stores raw user text.
func (c *Coordinator) SetReason(raw string) {
	c.mu.Lock()
	c.rawReason = raw
	c.mu.Unlock()
}

// Validate checks the form against the current action kind's rules without
// submitting. Failures return a *ValidationError or *InsufficientStockError.
func (c *Coordinator) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.buildIntentLocked()
	return err
}

// ExpectedQuantity computes the post-mutation quantity. Pure, used for the
// confirmation text and for spotting stale-cache mismatches after a submit.
func ExpectedQuantity(kind models.ActionKind, current, requested int) int {
	switch kind {
	case models.ActionAdd, models.ActionReturn:
		return current + requested
	case models.ActionRemove, models.ActionSell:
		return current - requested
	case models.ActionAdjust:
		return requested
	}
	return current
}

// Submit validates the form, builds a fresh intent and issues exactly one
// mutation request. Remote failures come back as *RemoteError or
// *AmbiguousError; the form is kept so the operator can retry, which builds
// a new intent. A successful submit refreshes the cache and clears the form.
func (c *Coordinator) Submit(ctx context.Context) (*SubmitResult, error) {
	c.mu.Lock()

	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}

	// The intent ID is allocated here, not during validation: Validate may
	// run on every form edit and must not consume identifiers.
	intent, err := c.buildIntentLocked()
	intent.IntentID = c.newID()
	if err != nil {
		target := c.target
		c.mu.Unlock()
		c.journalLocalFailure(ctx, intent, target, err)
		return nil, err
	}

	target := *c.target
	c.submitting = true
	intent.Status = models.IntentSubmitting
	c.lastIntent = &intent
	c.mu.Unlock()

	line, submitErr := c.dispatch(ctx, intent)

	c.mu.Lock()
	c.submitting = false

	if submitErr == nil {
		intent.Status = models.IntentSucceeded
		c.lastIntent = &intent
		// Clear the form for the next intent; the target stays cached.
		c.target = nil
		c.rawQuantity = ""
		c.rawReason = ""
		c.mu.Unlock()

		line.RefreshedAt = c.now()
		if err := c.store.UpsertStockLine(ctx, *line); err != nil {
			c.logger.Warn("failed refreshing stock line cache", zap.Error(err))
		}
		result := &SubmitResult{
			Intent: intent,
			Line:   *line,
			Before: intent.QuantityBefore,
			After:  line.CurrentQuantity,
			Message: fmt.Sprintf("%s confirmed for %s: quantity %d -> %d",
				intent.Action, target.ProductName, intent.QuantityBefore, line.CurrentQuantity),
		}
		if line.CurrentQuantity != intent.QuantityExpected {
			c.logger.Warn("remote quantity differs from expectation",
				zap.Int("expected", intent.QuantityExpected),
				zap.Int("actual", line.CurrentQuantity))
		}
		c.journal(ctx, intent, target, line.CurrentQuantity, result.Message)
		c.logger.Info("mutation succeeded",
			zap.String("intent_id", intent.IntentID),
			zap.String("action", string(intent.Action)),
			zap.Int("before", result.Before),
			zap.Int("after", result.After))
		return result, nil
	}

	outcome := c.classify(submitErr, target)
	switch e := outcome.(type) {
	case *AmbiguousError:
		intent.Status = models.IntentAmbiguousRemote
		c.lastIntent = &intent
		c.mu.Unlock()

		if err := c.store.MarkPendingReconcile(ctx, target.StockLineID); err != nil {
			c.logger.Warn("failed marking stock line for reconcile", zap.Error(err))
		}
		if c.refresher != nil {
			c.refresher.ScheduleRefresh(target.StockLineID, c.refreshDelay)
		}
		c.journal(ctx, intent, target, target.CurrentQuantity, e.Message)
		c.logger.Warn("mutation outcome ambiguous",
			zap.String("intent_id", intent.IntentID),
			zap.String("message", e.Message))
	default:
		intent.Status = models.IntentFailedRemote
		c.lastIntent = &intent
		c.mu.Unlock()

		c.journal(ctx, intent, target, target.CurrentQuantity, outcome.Error())
		c.logger.Error("mutation rejected",
			zap.String("intent_id", intent.IntentID),
			zap.Error(outcome))
	}

	return nil, outcome
}

// Reset clears the form and discards the last intent.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.target = nil
	c.action = ""
	c.rawQuantity = ""
	c.rawReason = ""
	c.lastIntent = nil
	c.mu.Unlock()
}

// LastIntent returns a copy of the most recent intent, if any.
func (c *Coordinator) LastIntent() (models.MutationIntent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastIntent == nil {
		return models.MutationIntent{}, false
	}
	return *c.lastIntent, true
}

// buildIntentLocked validates the form and materializes a draft intent.
// Caller holds the lock.
func (c *Coordinator) buildIntentLocked() (models.MutationIntent, error) {
	intent := models.MutationIntent{
		Action:    c.action,
		Reason:    strings.TrimSpace(c.rawReason),
		Status:    models.IntentValidating,
		CreatedAt: c.now(),
	}

	if c.target == nil {
		intent.Status = models.IntentFailedLocal
		return intent, &ValidationError{Field: "target", Reason: "no stock line selected"}
	}
	intent.TargetStockLineID = c.target.StockLineID
	intent.QuantityBefore = c.target.CurrentQuantity

	if !c.action.Valid() {
		intent.Status = models.IntentFailedLocal
		return intent, &ValidationError{Field: "action", Reason: "no action selected"}
	}

	qty, err := parseQuantity(c.rawQuantity, c.action)
	if err != nil {
		intent.Status = models.IntentFailedLocal
		return intent, err
	}
	intent.Quantity = qty

	if c.action.RequiresReason() && intent.Reason == "" {
		intent.Status = models.IntentFailedLocal
		return intent, &ValidationError{Field: "reason", Reason: fmt.Sprintf("a reason is required for %s", c.action)}
	}

	if (c.action == models.ActionRemove || c.action == models.ActionSell) && qty > c.target.CurrentQuantity {
		intent.Status = models.IntentFailedLocal
		return intent, &InsufficientStockError{Requested: qty, Available: c.target.CurrentQuantity}
	}

	intent.QuantityExpected = ExpectedQuantity(c.action, c.target.CurrentQuantity, qty)
	intent.Status = models.IntentDraft
	return intent, nil
}

func (c *Coordinator) dispatch(ctx context.Context, intent models.MutationIntent) (*models.StockLine, error) {
	req := inventory.MutationRequest{
		TargetID:       intent.TargetStockLineID,
		Quantity:       intent.Quantity,
		Reason:         intent.Reason,
		IdempotencyKey: intent.IntentID,
	}

	switch intent.Action {
	case models.ActionAdd:
		return c.client.AddStock(ctx, req)
	case models.ActionRemove:
		return c.client.RemoveStock(ctx, req)
	case models.ActionSell:
		return c.client.SellStock(ctx, req)
	case models.ActionReturn:
		return c.client.ReturnStock(ctx, req)
	case models.ActionAdjust:
		return c.client.AdjustStock(ctx, req)
	}
	return nil, fmt.Errorf("unreachable action kind %q", intent.Action)
}

// classify maps a raw submission error onto the remote error taxonomy. A
// service failure whose text matches a known post-write validation pattern
// becomes ambiguous; anything else, including transport failures, is a
// plain remote failure.
func (c *Coordinator) classify(err error, target models.StockLine) error {
	var apiErr *inventory.APIError
	if !errors.As(err, &apiErr) {
		return &RemoteError{Message: "inventory service unreachable"}
	}

	message := apiErr.Message
	if message == "" {
		message = "the inventory service reported a failure"
	}

	if matchesAmbiguousPattern(message, target) {
		return &AmbiguousError{Message: message}
	}
	return &RemoteError{Message: message}
}

// matchesAmbiguousPattern recognizes failure text observed to fire after
// the write already landed: the service's barcode re-validation step, which
// names the line's secondary identifier. Substring matching is fragile; the
// idempotency key on the request is the durable half of this defense.
func matchesAmbiguousPattern(message string, target models.StockLine) bool {
	lowered := strings.ToLower(message)
	if strings.Contains(lowered, "barcode validation") {
		return true
	}
	if target.SKU != "" &&
		strings.Contains(lowered, strings.ToLower(target.SKU)) &&
		strings.Contains(lowered, "validation") {
		return true
	}
	return false
}

func parseQuantity(raw string, kind models.ActionKind) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, &ValidationError{Field: "quantity", Reason: "quantity is empty"}
	}

	qty, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("%q is not a whole number", raw)}
	}

	if qty < 0 {
		return 0, &ValidationError{Field: "quantity", Reason: "quantity cannot be negative"}
	}
	if qty == 0 && !kind.AllowsZeroQuantity() {
		return 0, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("quantity must be positive for %s", kind)}
	}
	return qty, nil
}

func (c *Coordinator) journal(ctx context.Context, intent models.MutationIntent, target models.StockLine, after int, message string) {
	record := models.MutationRecord{
		IntentID:       intent.IntentID,
		DeviceID:       c.deviceID,
		StockLineID:    target.StockLineID,
		ProductName:    target.ProductName,
		Action:         intent.Action,
		Quantity:       intent.Quantity,
		Reason:         intent.Reason,
		Status:         intent.Status,
		QuantityBefore: intent.QuantityBefore,
		QuantityAfter:  after,
		Message:        message,
		RecordedAt:     c.now(),
	}
	if err := c.store.AppendMutationRecord(ctx, record); err != nil {
		c.logger.Warn("failed journaling mutation", zap.Error(err), zap.String("intent_id", intent.IntentID))
	}
}

func (c *Coordinator) journalLocalFailure(ctx context.Context, intent models.MutationIntent, target *models.StockLine, cause error) {
	line := models.StockLine{}
	if target != nil {
		line = *target
	}
	c.journal(ctx, intent, line, line.CurrentQuantity, cause.Error())
}
