package api

import (
	"crypto/subtle"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"MarketMinute/internal/domain/models"
	domrepo "MarketMinute/internal/domain/repository"
	svccache "MarketMinute/internal/service/cache"
	"MarketMinute/internal/service/ratelimit"
	xhttp "MarketMinute/pkg/http"
	xlogger "MarketMinute/pkg/logger"
)

const ctxIdentity = "identity"

// Guard provides the per-request middleware shared by every route group.
type Guard struct {
	limiter        *ratelimit.Limiter
	presets        *ratelimit.Presets
	accounts       domrepo.AccountStore
	identityHeader string
	logger         *xlogger.Logger
}

func NewGuard(limiter *ratelimit.Limiter, presets *ratelimit.Presets, accounts domrepo.AccountStore, identityHeader string, logger *xlogger.Logger) *Guard {
	if identityHeader == "" {
		identityHeader = "X-User-Email"
	}
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &Guard{
		limiter:        limiter,
		presets:        presets,
		accounts:       accounts,
		identityHeader: identityHeader,
		logger:         logger,
	}
}

// Identify tags the request with an id and the caller identity, and attaches a
// request-scoped account cache that is cleared when the handler returns.
// The identity header is trusted as sent; it must be set by an authenticating
// proxy when limits are meant to bind a specific user.
func (g *Guard) Identify() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			c.Set(ctxIdentity, ratelimit.Identity(req.Header.Get(g.identityHeader)))

			if g.accounts != nil {
				ac := svccache.NewAccountCache(g.accounts)
				defer ac.Clear()
				c.SetRequest(req.WithContext(svccache.ContextWithAccountCache(req.Context(), ac)))
			}
			return next(c)
		}
	}
}

// Limit enforces the named preset for the caller and always sets the X-RateLimit headers.
func (g *Guard) Limit(preset string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := identityOf(c)
			limit, err := g.presets.For(preset, identity)
			if err != nil {
				g.logger.Error("rate limit preset", xlogger.String("preset", preset), xlogger.Error(err))
				return xhttp.AppErrorResponse(c, xhttp.InternalError("rate limit misconfigured").WithError(err))
			}

			d := g.limiter.Check(preset, identity, limit)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt().Unix(), 10))
			if !d.Allowed {
				h.Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds, 10))
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError(d.RetryAfterSeconds))
			}
			return next(c)
		}
	}
}

// AdminOnly requires X-Admin-Token to match token. An empty token leaves the routes open.
func AdminOnly(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}
			got := c.Request().Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("admin token required"))
			}
			return next(c)
		}
	}
}

func identityOf(c echo.Context) string {
	if id, ok := c.Get(ctxIdentity).(string); ok && id != "" {
		return id
	}
	return ratelimit.Anonymous
}

// accountOf resolves the caller's account through the request cache.
// Anonymous callers and lookups that fail resolve to nil.
func (g *Guard) accountOf(c echo.Context) *models.Account {
	identity := identityOf(c)
	if identity == ratelimit.Anonymous {
		return nil
	}
	ac, ok := svccache.AccountCacheFrom(c.Request().Context())
	if !ok {
		return nil
	}
	acc, err := ac.Get(c.Request().Context(), identity)
	if err != nil {
		g.logger.Warn("account lookup failed", xlogger.String("identity", identity), xlogger.Error(err))
		return nil
	}
	return acc
}

func badRequest(c echo.Context, msg string) error {
	return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_BAD_REQUEST", Message: msg}})
}
