package analytics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/storeconsole/internal/analytics/engine"
	"github.com/angelmondragon/storeconsole/internal/analytics/types"
	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/pkg/config"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/logger"
	"github.com/angelmondragon/storeconsole/pkg/metrics"
	"github.com/angelmondragon/storeconsole/pkg/validate"
)

const (
	defaultSLAThreshold        = time.Hour
	defaultChatLookback        = 500
	defaultRecentLookback      = 200
	defaultSubQueryTimeout     = 3 * time.Second
	defaultTopN                = 5
	defaultHighDiscountPercent = 20
)

// OwnerResolver confirms an owner exists. Unknown owners yield CodeNotFound.
type OwnerResolver interface {
	Resolve(ctx context.Context, owner string) error
}

// Service computes derived metrics snapshots from store events.
type Service interface {
	// Snapshot returns the statistics for one owner and domain. Optional
	// statistics that cannot be computed are defaulted and listed in
	// Snapshot.Degraded; only mandatory failures, unknown owners and bad input
	// return an error.
	Snapshot(ctx context.Context, owner string, domain enums.MetricsDomain, opts types.SnapshotOptions) (*types.Snapshot, error)
}

type service struct {
	source  events.Source
	counter *engine.Counter
	owners  OwnerResolver
	cfg     config.MetricsConfig
	metrics *metrics.SnapshotMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the metrics facade.
func NewService(source events.Source, owners OwnerResolver, cfg config.MetricsConfig, m *metrics.SnapshotMetrics, logg *logger.Logger) (Service, error) {
	if source == nil {
		return nil, errors.New("event source required")
	}
	if owners == nil {
		return nil, errors.New("owner resolver required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	counter, err := engine.NewCounter(source)
	if err != nil {
		return nil, err
	}
	return &service{
		source:  source,
		counter: counter,
		owners:  owners,
		cfg:     withDefaults(cfg),
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func withDefaults(cfg config.MetricsConfig) config.MetricsConfig {
	if cfg.SLAThreshold <= 0 {
		cfg.SLAThreshold = defaultSLAThreshold
	}
	if cfg.ChatLookback <= 0 {
		cfg.ChatLookback = defaultChatLookback
	}
	if cfg.RecentLookback <= 0 {
		cfg.RecentLookback = defaultRecentLookback
	}
	if cfg.SubQueryTimeout <= 0 {
		cfg.SubQueryTimeout = defaultSubQueryTimeout
	}
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = defaultTopN
	}
	if cfg.HighDiscountPercent <= 0 {
		cfg.HighDiscountPercent = defaultHighDiscountPercent
	}
	return cfg
}

// request carries the resolved inputs shared by a snapshot's tasks.
type request struct {
	owner   string
	opts    types.SnapshotOptions
	today   time.Time
	todayOK bool
}

func (s *service) Snapshot(ctx context.Context, owner string, domain enums.MetricsDomain, opts types.SnapshotOptions) (*types.Snapshot, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if !domain.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid metrics domain").
			WithDetails(map[string]any{"domain": domain})
	}
	opts, err := s.resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := s.owners.Resolve(ctx, owner); err != nil {
		return nil, err
	}

	started := s.now().UTC()
	ctx = s.logg.WithDomain(s.logg.WithStoreID(ctx, owner), domain.String())

	req := request{owner: owner, opts: opts}
	req.today, req.todayOK = todayStart(started, opts.Window)

	var (
		data  any
		tasks []task
	)
	switch domain {
	case enums.DomainOrders:
		stats := &types.OrderStats{MostCommonType: unknownEventType}
		data, tasks = stats, s.orderTasks(req, stats)
	case enums.DomainCoupons:
		stats := &types.CouponStats{TopCoupons: []types.GroupStat{}}
		data, tasks = stats, s.couponTasks(req, stats)
	case enums.DomainPromotions:
		stats := &types.PromotionStats{}
		data, tasks = stats, s.promotionTasks(req, stats)
	case enums.DomainReviews:
		stats := &types.ReviewStats{RatingHistogram: emptyRatingHistogram(), TopProducts: []types.GroupStat{}}
		data, tasks = stats, s.reviewTasks(req, stats)
	case enums.DomainCommunications:
		stats := &types.CommunicationStats{}
		data, tasks = stats, s.communicationTasks(req, stats)
	}

	degraded, failures, err := s.runTasks(ctx, tasks)
	if err != nil {
		s.metrics.IncFailure(domain.String())
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Unavailable(err, "compute snapshot")
		}
		s.logg.Error(ctx, "snapshot failed", err)
		return nil, err
	}
	if failures != nil {
		for _, field := range degraded {
			s.metrics.IncDegraded(domain.String(), field)
		}
		s.logg.WarnErr(s.logg.WithField(ctx, "degraded", degraded), "snapshot degraded", failures)
	}
	s.metrics.ObserveDuration(domain.String(), s.now().Sub(started))

	return &types.Snapshot{
		Owner:       owner,
		Domain:      domain,
		GeneratedAt: started,
		Window:      opts.Window,
		Degraded:    degraded,
		Data:        data,
	}, nil
}

func (s *service) resolveOptions(opts types.SnapshotOptions) (types.SnapshotOptions, error) {
	if err := validate.Struct(opts); err != nil {
		return opts, err
	}
	if err := (events.Filter{Window: opts.Window}).Validate(); err != nil {
		return opts, err
	}
	if opts.Window != nil {
		opts.Window = &events.Window{From: opts.Window.From.UTC(), To: opts.Window.To.UTC()}
	}
	if opts.TopN == 0 {
		opts.TopN = s.cfg.DefaultTopN
	}
	if opts.Lookback == 0 {
		opts.Lookback = s.cfg.ChatLookback
	}
	if opts.HighDiscountPercent == 0 {
		opts.HighDiscountPercent = s.cfg.HighDiscountPercent
	}
	return opts, nil
}
