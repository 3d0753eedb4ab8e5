package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loan-ledger/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	CacheKey        = "dashboard:stats"
	DefaultSchedule = "@every 30s"
)

// Refresher recomputes Stats on a cron schedule and publishes them to the
// Prometheus gauges and, when a client is set, to a Redis key. The cached
// copy is a convenience for the "last refreshed" view and may be dropped.
type Refresher struct {
	agg      *Aggregator
	metrics  *metrics.Metrics
	rdb      *redis.Client
	log      logrus.FieldLogger
	schedule string
	ttl      time.Duration
}

func NewRefresher(agg *Aggregator, m *metrics.Metrics, rdb *redis.Client, log logrus.FieldLogger, schedule string) *Refresher {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Refresher{agg: agg, metrics: m, rdb: rdb, log: log, schedule: schedule, ttl: 10 * time.Minute}
}

// Refresh computes and publishes one round.
func (r *Refresher) Refresh(ctx context.Context) (Stats, error) {
	st, err := r.agg.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	r.publishGauges(st)
	if r.rdb != nil {
		payload, err := json.Marshal(st)
		if err != nil {
			return st, fmt.Errorf("encode stats: %w", err)
		}
		if err := r.rdb.Set(ctx, CacheKey, payload, r.ttl).Err(); err != nil {
			return st, fmt.Errorf("cache stats: %w", err)
		}
	}
	return st, nil
}

func (r *Refresher) publishGauges(st Stats) {
	if r.metrics == nil {
		return
	}
	set := func(asset string, t Totals) {
		r.metrics.DashboardValue.WithLabelValues("total_deposits", asset).Set(t.TotalDeposits.InexactFloat64())
		r.metrics.DashboardValue.WithLabelValues("active_loan_value", asset).Set(t.ActiveLoanValue.InexactFloat64())
		r.metrics.DashboardValue.WithLabelValues("total_repayments", asset).Set(t.TotalRepayments.InexactFloat64())
		r.metrics.DashboardValue.WithLabelValues("liquidation_value", asset).Set(t.LiquidationValue.InexactFloat64())
	}
	set("all", st.Totals)
	for a, t := range st.ByAsset {
		set(string(a), t)
	}
	for kind, byStatus := range st.Counts {
		for status, n := range byStatus {
			r.metrics.DashboardRecords.WithLabelValues(string(kind), string(status)).Set(float64(n))
		}
	}
	r.metrics.DashboardRefreshed.Set(float64(st.ComputedAt.Unix()))
}

// Cached returns the last published Stats; ok is false when nothing is cached.
func (r *Refresher) Cached(ctx context.Context) (Stats, bool, error) {
	if r.rdb == nil {
		return Stats{}, false, nil
	}
	raw, err := r.rdb.Get(ctx, CacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Stats{}, false, nil
	}
	if err != nil {
		return Stats{}, false, err
	}
	var st Stats
	if err := json.Unmarshal(raw, &st); err != nil {
		return Stats{}, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return st, true, nil
}

// Run refreshes once, then on schedule until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	job := func() {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.log.WithError(err).Warn("dashboard refresh failed")
		}
	}
	if _, err := c.AddFunc(r.schedule, job); err != nil {
		return fmt.Errorf("schedule %q: %w", r.schedule, err)
	}
	job()
	c.Start()
	r.log.WithField("schedule", r.schedule).Info("dashboard refresher started")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
