package api

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/service/ratelimit"
	"MarketMinute/internal/usecase"
	xhttp "MarketMinute/pkg/http"
	xlogger "MarketMinute/pkg/logger"
)

// MarketHandler serves snapshots, the dashboard and the session report.
type MarketHandler struct {
	logger    *xlogger.Logger
	guard     *Guard
	snapshots *usecase.SnapshotsUseCase
	dashboard *usecase.DashboardUseCase
	session   *usecase.SessionUseCase
}

func NewMarketHandler(logger *xlogger.Logger, guard *Guard, snapshots *usecase.SnapshotsUseCase, dashboard *usecase.DashboardUseCase, session *usecase.SessionUseCase) *MarketHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &MarketHandler{logger: logger, guard: guard, snapshots: snapshots, dashboard: dashboard, session: session}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.guard.Identify())
	g.GET("/snapshots", h.Snapshots, h.guard.Limit(ratelimit.DataFetch))
	g.GET("/dashboard", h.Dashboard, h.guard.Limit(ratelimit.MarketData))
	g.GET("/session", h.Session, h.guard.Limit(ratelimit.General))
}

func (h *MarketHandler) Snapshots(c echo.Context) error {
	req := &models.SnapshotsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.snapshots.GetSnapshots(c.Request().Context(), req.Symbols)
	if err != nil {
		if errors.Is(err, usecase.ErrNoSymbols) {
			return badRequest(c, err.Error())
		}
		h.logger.Error("snapshots usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	hdr := c.Response().Header()
	hdr.Set("X-Cache-Hits", strconv.Itoa(res.Stats.Hits))
	hdr.Set("X-Cache-Misses", strconv.Itoa(res.Stats.Misses))
	hdr.Set("X-Symbols", strconv.Itoa(len(res.Symbols)))
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Dashboard(c echo.Context) error {
	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.dashboard.Build(c.Request().Context(), req.Symbols)
	if err != nil {
		if errors.Is(err, usecase.ErrNoSymbols) {
			return badRequest(c, err.Error())
		}
		h.logger.Error("dashboard usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Session(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.session.Report())
}
