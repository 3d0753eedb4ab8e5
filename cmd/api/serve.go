package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadp "loan-ledger/internal/adapter/http"
	"loan-ledger/internal/collateral"
	"loan-ledger/internal/config"
	"loan-ledger/internal/dashboard"
	"loan-ledger/internal/infrastructure/cache"
	"loan-ledger/internal/ledger"
	"loan-ledger/internal/metrics"
	"loan-ledger/internal/usecase/approval"
	"loan-ledger/internal/usecase/loan"
	"loan-ledger/internal/verification"
	"loan-ledger/internal/wallet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Replay the journal and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides APP_PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	journal, closeStore, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.WithError(err).Warn("close journal store")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	l := ledger.New(journal, ledger.WithLogger(log), ledger.WithMetrics(m))
	if _, err := l.Replay(ctx); err != nil {
		return err
	}

	rdb, sessionStore, err := openRedis(cfg, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	sessions := wallet.NewSessions([]byte(cfg.SessionSecret), cfg.SessionTTL, sessionStore)
	unsubscribe := sessions.Subscribe(func(ev wallet.Event) {
		log.WithFields(logrus.Fields{"account": ev.Account.Short(), "connected": ev.Connected}).Info("wallet session")
	})
	defer unsubscribe()

	v := collateral.NewVerifier(cfg.MaxDocumentBytes)
	agg := dashboard.NewAggregator(l)
	refresher := dashboard.NewRefresher(agg, m, rdb, log, cfg.StatsSchedule)

	e := httpadp.NewRouter(httpadp.Deps{
		Log:            log,
		Sessions:       sessions,
		Loans:          loan.NewUsecase(l, v),
		Approvals:      approval.NewUsecase(l, v),
		Verification:   verification.NewService(l, v, log, m),
		Aggregator:     agg,
		Refresher:      refresher,
		Redis:          rdb,
		IdempotencyTTL: cfg.IdempotencyTTL(),
		Gatherer:       reg,
		MaxDocument:    cfg.MaxDocumentBytes,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error {
		addr := ":" + cfg.AppPort
		log.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

// openRedis returns a nil client and an in-process session store when Redis
// is disabled.
func openRedis(cfg *config.Config, log logrus.FieldLogger) (*redis.Client, wallet.SessionStore, error) {
	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		log.Warn("redis disabled: sessions are process-local and mutations are not idempotent")
		return nil, wallet.NewMemorySessionStore(), nil
	case err != nil:
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	return rdb, wallet.NewRedisSessionStore(rdb), nil
}
