package admin

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
)

// ParseDays reads a ?days= value. Anything but a positive integer means
// DefaultDays.
func ParseDays(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultDays
	}
	return n
}

type Service struct {
	repo          Repository
	log           *zap.Logger
	retentionDays int
	now           func() time.Time
	tracer        trace.Tracer
}

func NewService(repo Repository, log *zap.Logger, retentionDays int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if retentionDays <= 0 {
		retentionDays = 365
	}
	return &Service{
		repo:          repo,
		log:           log,
		retentionDays: retentionDays,
		now:           func() time.Time { return time.Now().UTC() },
		tracer:        otel.Tracer("github.com/MikeMC777/ecom-ledger/internal/admin"),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Dashboard computes the admin summary over the last days and records a
// snapshot of it. Snapshot failures are logged only.
func (s *Service) Dashboard(ctx context.Context, adminID string, days int) (*Dashboard, error) {
	if days <= 0 {
		days = DefaultDays
	}
	ctx, span := s.tracer.Start(ctx, "admin.Dashboard", trace.WithAttributes(attribute.Int("period.days", days)))
	defer span.End()

	now := s.now()
	since := now.AddDate(0, 0, -days)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	d := &Dashboard{PeriodDays: days, Timestamp: now}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Summary.UserStats, err = s.repo.UserStats(gctx, today)
		return err
	})
	g.Go(func() (err error) {
		d.Summary.ProductStats, err = s.repo.ProductStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Summary.OrderStats, err = s.repo.OrderStats(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		d.TopProducts, err = s.repo.TopProducts(gctx, since, topN)
		return err
	})
	g.Go(func() (err error) {
		d.TopCustomers, err = s.repo.TopCustomers(gctx, since, topN)
		return err
	})
	g.Go(func() (err error) {
		d.RecentOrders, err = s.repo.RecentOrders(gctx, since, topN)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, apperr.Internal("failed to load dashboard", err)
	}
	d.Summary.ConversionRate = ConversionRate(d.Summary.OrderStats.Total, d.Summary.UserStats.Total)

	s.record(ctx, d, adminID)
	return d, nil
}

func (s *Service) record(ctx context.Context, d *Dashboard, adminID string) {
	log := logging.FromContext(ctx, s.log)
	snap := snapshotOf(d, adminID)
	if err := s.repo.InsertSnapshot(ctx, snap); err != nil {
		log.Warn("analytics_snapshot_failed", zap.Error(err))
		return
	}
	cutoff := d.Timestamp.AddDate(0, 0, -s.retentionDays)
	n, err := s.repo.PruneSnapshots(ctx, cutoff)
	if err != nil {
		log.Warn("analytics_snapshot_prune_failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("analytics_snapshots_pruned", zap.Int64("count", n))
	}
}

// Snapshots lists stored snapshots of the last days, newest first.
func (s *Service) Snapshots(ctx context.Context, days int) ([]Snapshot, error) {
	if days <= 0 {
		days = DefaultDays
	}
	out, err := s.repo.Snapshots(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, apperr.Internal("failed to load analytics", err)
	}
	return out, nil
}

// ConversionRate is orders per hundred users, rounded to 2 places.
func ConversionRate(orders, users int) float64 {
	if users <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(orders)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(users))).
		Round(2).
		InexactFloat64()
}
