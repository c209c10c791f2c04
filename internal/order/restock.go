package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/logging"
	"github.com/MikeMC777/ecom-ledger/internal/metrics"
)

// applyRestocks applies the pending jobs of one order right after the
// transaction that created them. Failures stay in the outbox for the
// reconciler and are never returned to the caller.
func (s *Service) applyRestocks(ctx context.Context, orderID int64) {
	ctx = context.WithoutCancel(ctx)
	log := logging.FromContext(ctx, s.log)

	jobs, err := s.store.PendingRestocks(ctx, orderID, 0)
	if err != nil {
		metrics.RestockJobs.WithLabelValues("error").Inc()
		log.Error("restock_list_failed", zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	for _, j := range jobs {
		s.applyOne(ctx, log, j)
	}
}

// ApplyPending applies up to batch unapplied jobs across all orders and
// returns how many were applied.
func (s *Service) ApplyPending(ctx context.Context, batch int) (int, error) {
	jobs, err := s.store.PendingRestocks(ctx, 0, batch)
	if err != nil {
		return 0, err
	}
	log := logging.FromContext(ctx, s.log)
	n := 0
	for _, j := range jobs {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if s.applyOne(ctx, log, j) {
			n++
		}
	}
	return n, nil
}

func (s *Service) applyOne(ctx context.Context, log *zap.Logger, j RestockJob) bool {
	applied, err := s.store.ApplyRestock(ctx, j.ID)
	switch {
	case err != nil:
		metrics.RestockJobs.WithLabelValues("error").Inc()
		log.Error("restock_failed",
			zap.Int64("job_id", j.ID),
			zap.Int64("order_id", j.OrderID),
			zap.String("product_id", j.ProductID),
			zap.Int("quantity", j.Quantity),
			zap.Int("attempts", j.Attempts+1),
			zap.Error(err),
		)
		return false
	case !applied:
		metrics.RestockJobs.WithLabelValues("skipped").Inc()
		return false
	default:
		metrics.RestockJobs.WithLabelValues("applied").Inc()
		log.Info("restock_applied",
			zap.Int64("job_id", j.ID),
			zap.Int64("order_id", j.OrderID),
			zap.String("product_id", j.ProductID),
			zap.Int("quantity", j.Quantity),
			zap.String("reason", string(j.Reason)),
		)
		return true
	}
}

// Reconciler retries restock jobs left behind by failed best-effort runs.
type Reconciler struct {
	svc      *Service
	interval time.Duration
	batch    int
	log      *zap.Logger
}

func NewReconciler(svc *Service, interval time.Duration, batch int, log *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{svc: svc, interval: interval, batch: batch, log: log}
}

// Run blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.log.Info("restock_reconciler_started", zap.Duration("interval", r.interval), zap.Int("batch", r.batch))
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("restock_reconciler_stopped")
			return
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick drains pending jobs in batches until a batch comes back short.
func (r *Reconciler) Tick(ctx context.Context) {
	ctx = logging.WithContext(ctx, r.log)
	for {
		n, err := r.svc.ApplyPending(ctx, r.batch)
		if err != nil {
			if ctx.Err() == nil {
				r.log.Error("restock_reconcile_failed", zap.Error(err))
			}
			return
		}
		if n > 0 {
			r.log.Info("restock_reconciled", zap.Int("applied", n))
		}
		if n < r.batch {
			return
		}
	}
}
