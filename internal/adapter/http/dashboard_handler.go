package http

import (
	"net/http"

	"loan-ledger/internal/dashboard"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type DashboardHandler struct {
	agg       *dashboard.Aggregator
	refresher *dashboard.Refresher
	log       logrus.FieldLogger
}

// NewDashboardHandler: refresher may be nil, in which case ?source=cache
// falls back to a live computation.
func NewDashboardHandler(agg *dashboard.Aggregator, r *dashboard.Refresher, log logrus.FieldLogger) *DashboardHandler {
	return &DashboardHandler{agg: agg, refresher: r, log: log}
}

type statsReq struct {
	Source string `query:"source" validate:"omitempty,oneof=live cache"`
}

type historyReq struct {
	Limit  int    `query:"limit"  validate:"gte=0,lte=100"`
	Cursor string `query:"cursor" validate:"omitempty,numeric"`
}

func (h *DashboardHandler) Stats(c echo.Context) error {
	var req statsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	ctx := c.Request().Context()
	if req.Source == "cache" && h.refresher != nil {
		st, ok, err := h.refresher.Cached(ctx)
		if err != nil {
			h.log.WithError(err).Warn("cached stats unavailable")
		}
		if ok {
			return c.JSON(http.StatusOK, st)
		}
	}
	st, err := h.agg.Stats(ctx)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *DashboardHandler) History(c echo.Context) error {
	var req historyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	page, err := h.agg.History(c.Request().Context(), req.Limit, req.Cursor)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, page)
}
