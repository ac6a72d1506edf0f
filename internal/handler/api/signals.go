package api

import (
	"github.com/labstack/echo/v4"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/service/ratelimit"
	"MarketMinute/internal/usecase"
	xhttp "MarketMinute/pkg/http"
	xlogger "MarketMinute/pkg/logger"
	"MarketMinute/pkg/util"
)

// SignalsHandler serves scored model signals.
type SignalsHandler struct {
	logger     *xlogger.Logger
	guard      *Guard
	signals    *usecase.SignalsUseCase
	maxTickers int
}

func NewSignalsHandler(logger *xlogger.Logger, guard *Guard, signals *usecase.SignalsUseCase, maxTickers int) *SignalsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &SignalsHandler{logger: logger, guard: guard, signals: signals, maxTickers: maxTickers}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/signals", h.guard.Identify(), h.guard.Limit(ratelimit.General))
	g.GET("", h.Top)
	g.POST("/score", h.Score)
}

func (h *SignalsHandler) Top(c echo.Context) error {
	req := &models.TopSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q := models.TopSignalsQuery{
		Tickers:       util.NormalizeSymbols(util.SplitCSV(req.Tickers), h.maxTickers),
		Signal:        req.Signal,
		TradeableOnly: req.Tradeable,
		Limit:         req.Limit,
	}
	res, err := h.signals.TopSignals(c.Request().Context(), q, h.guard.accountOf(c))
	if err != nil {
		h.logger.Error("top signals usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("signals unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *SignalsHandler) Score(c echo.Context) error {
	req := &models.Prediction{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "invalid prediction body")
	}
	if verr := xhttp.ValidateStruct(req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.signals.Score(*req))
}
