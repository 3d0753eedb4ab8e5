package http

import (
	"strconv"
	"time"

	mw "loan-ledger/internal/adapter/middleware"
	"loan-ledger/internal/collateral"
	"loan-ledger/internal/dashboard"
	"loan-ledger/internal/usecase/approval"
	"loan-ledger/internal/usecase/loan"
	"loan-ledger/internal/verification"
	"loan-ledger/internal/wallet"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Deps is everything the router mounts. Redis is optional: without it
// mutating routes run without the idempotency guard.
type Deps struct {
	Log            logrus.FieldLogger
	Sessions       *wallet.Sessions
	Loans          *loan.Usecase
	Approvals      *approval.Usecase
	Verification   *verification.Service
	Aggregator     *dashboard.Aggregator
	Refresher      *dashboard.Refresher
	Redis          *redis.Client
	IdempotencyTTL time.Duration
	Gatherer       prometheus.Gatherer
	MaxDocument    int64
}

func NewRouter(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.MaxDocument <= 0 {
		d.MaxDocument = collateral.DefaultMaxBytes
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.Use(middleware.Recover(), requestLogger(d.Log))
	// room for the document plus the rest of the multipart envelope
	e.Use(middleware.BodyLimit(strconv.FormatInt(d.MaxDocument>>10+1024, 10) + "K"))

	base := NewHandler(d.Gatherer)
	e.GET("/health", base.Health)
	e.GET("/metrics", base.Metrics())

	gated := []echo.MiddlewareFunc{mw.SessionAuth(d.Sessions, d.Log)}
	mutating := gated
	if d.Redis != nil {
		mutating = append(append([]echo.MiddlewareFunc{}, gated...), mw.IdempotencyMiddleware(d.Redis, d.IdempotencyTTL, d.Log))
	}

	wh := NewWalletHandler(d.Sessions, d.Log)
	e.POST("/wallet/sessions", wh.Connect)
	e.GET("/wallet/sessions/current", wh.Current, gated...)
	e.DELETE("/wallet/sessions/current", wh.Disconnect, gated...)

	lh := NewLoanHandler(d.Loans, d.Log)
	e.POST("/deposits", lh.Deposit, mutating...)
	e.POST("/borrows", lh.Borrow, mutating...)
	e.GET("/loans", lh.ListLoans)
	e.GET("/loans/:loan_id", lh.GetLoan)
	e.POST("/loans/:loan_id/transitions", lh.Transition, mutating...)

	ah := NewApprovalHandler(d.Approvals, d.Log)
	e.POST("/loans/:loan_id/submit", ah.Submit, mutating...)
	e.POST("/loans/:loan_id/review", ah.Review, mutating...)

	vh := NewVerifyHandler(d.Verification, d.Log)
	e.GET("/verify/loans/:loan_id", vh.ByID)
	e.POST("/verify/documents", vh.ByDocument)

	dh := NewDashboardHandler(d.Aggregator, d.Refresher, d.Log)
	e.GET("/dashboard/stats", dh.Stats)
	e.GET("/dashboard/history", dh.History)

	return e
}

func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}
