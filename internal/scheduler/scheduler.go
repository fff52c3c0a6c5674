package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/config"
	"github.com/mbalde7/stockly/internal/repository/mongodb"
	"github.com/mbalde7/stockly/internal/repository/sheets"
	"github.com/mbalde7/stockly/pkg/clients/inventory"
)

// Scheduler owns the background work around the mutation core: the
// reconciliation sweep for stock lines left in an ambiguous state, the
// one-shot refresh the coordinator requests right after such an outcome,
// and the daily journal export to the back office.
type Scheduler struct {
	cron     *cron.Cron
	repo     mongodb.Repository
	client   inventory.Client
	exporter sheets.Exporter
	cfg      config.ReconcileConfig
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. The exporter may be nil
// when the Sheets target is not configured; the export job is then skipped.
func NewScheduler(cfg config.ReconcileConfig, repo mongodb.Repository, client inventory.Client, exporter sheets.Exporter, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:     cron.New(),
		repo:     repo,
		client:   client,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the cron entries and starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.reconcileSweep); err != nil {
		s.logger.Error("failed to schedule reconcile sweep", zap.Error(err))
	}

	if s.exporter != nil {
		if _, err := s.cron.AddFunc(s.cfg.ExportSchedule, s.exportJournal); err != nil {
			s.logger.Error("failed to schedule journal export", zap.Error(err))
		}
	} else {
		s.logger.Info("journal export disabled, no sheets target configured")
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

// ScheduleRefresh re-fetches one stock line after the given delay. The
// coordinator calls this when a mutation outcome is ambiguous, so the cache
// converges on the authoritative quantity instead of guessing.
func (s *Scheduler) ScheduleRefresh(stockLineID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.refreshStockLine(ctx, stockLineID)
	})
}

func (s *Scheduler) reconcileSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ids, err := s.repo.ListPendingReconcile(ctx)
	if err != nil {
		s.logger.Error("failed to list stock lines pending reconcile", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	s.logger.Info("reconcile sweep started", zap.Int("stock_lines", len(ids)))
	for _, id := range ids {
		s.refreshStockLine(ctx, id)
	}
}

// refreshStockLine replaces the cached copy with the authoritative one and
// clears the reconcile mark. The mark survives a failed fetch so the next
// sweep retries it.
func (s *Scheduler) refreshStockLine(ctx context.Context, stockLineID string) {
	line, err := s.client.GetStockLine(ctx, stockLineID)
	if err != nil {
		s.logger.Warn("failed to refresh stock line",
			zap.String("stock_line_id", stockLineID), zap.Error(err))
		return
	}

	line.RefreshedAt = time.Now()
	if err := s.repo.UpsertStockLine(ctx, *line); err != nil {
		s.logger.Error("failed to cache refreshed stock line",
			zap.String("stock_line_id", stockLineID), zap.Error(err))
		return
	}

	if err := s.repo.ClearPendingReconcile(ctx, stockLineID); err != nil {
		s.logger.Error("failed to clear reconcile mark",
			zap.String("stock_line_id", stockLineID), zap.Error(err))
		return
	}

	s.logger.Info("stock line reconciled",
		zap.String("stock_line_id", stockLineID),
		zap.Int("quantity", line.CurrentQuantity))
}

func (s *Scheduler) exportJournal() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	since := time.Now().Add(-24 * time.Hour)
	records, err := s.repo.ListMutationRecordsSince(ctx, since)
	if err != nil {
		s.logger.Error("failed to load mutation journal", zap.Error(err))
		return
	}
	if len(records) == 0 {
		s.logger.Info("journal export skipped, no records in window")
		return
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []interface{}{
			rec.RecordedAt.Format(time.RFC3339),
			rec.DeviceID,
			rec.IntentID,
			rec.StockLineID,
			rec.ProductName,
			string(rec.Action),
			rec.Quantity,
			rec.QuantityBefore,
			rec.QuantityAfter,
			string(rec.Status),
			rec.Message,
		})
	}

	if err := s.exporter.AppendRows(ctx, rows); err != nil {
		s.logger.Error("failed to export mutation journal", zap.Error(err))
		return
	}

	s.logger.Info("mutation journal exported", zap.Int("rows", len(rows)))
}
