package api

import (
	"github.com/labstack/echo/v4"

	"MarketMinute/internal/service/ratelimit"
	"MarketMinute/internal/usecase"
	xhttp "MarketMinute/pkg/http"
	xlogger "MarketMinute/pkg/logger"
)

// AdminHandler exposes cache housekeeping.
type AdminHandler struct {
	logger *xlogger.Logger
	guard  *Guard
	admin  *usecase.CacheAdminUseCase
	token  string
}

func NewAdminHandler(logger *xlogger.Logger, guard *Guard, admin *usecase.CacheAdminUseCase, token string) *AdminHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AdminHandler{logger: logger, guard: guard, admin: admin, token: token}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/admin/cache", h.guard.Identify(), AdminOnly(h.token), h.guard.Limit(ratelimit.Mutation))
	g.GET("/stats", h.Stats)
	g.POST("/clear", h.Clear)
}

func (h *AdminHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.admin.Stats(c.Request().Context()))
}

func (h *AdminHandler) Clear(c echo.Context) error {
	res := h.admin.Clear(c.Request().Context())
	h.logger.Info("snapshot cache cleared",
		xlogger.Int("cleared", res.TotalCleared),
		xlogger.String("identity", identityOf(c)))
	return xhttp.SuccessResponse(c, res)
}
