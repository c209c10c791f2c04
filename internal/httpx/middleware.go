package httpx

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
	"github.com/MikeMC777/ecom-ledger/internal/metrics"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"

	ctxPrincipal = "principal"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("rid", rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// Logger logs one line per request and puts a request-scoped logger into
// the request context for services to pick up with logging.FromContext.
func Logger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetString("rid")
		l := base.With(zap.String("request_id", rid))
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), l))

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
		}
		if p, ok := CurrentPrincipal(c); ok {
			fields = append(fields, zap.String("user_id", p.ID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			l.Error("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Principal is the authenticated caller.
type Principal struct {
	ID      string
	Role    string
	Blocked bool
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// IdentityResolver looks up a caller by id. Unknown ids should yield an
// apperr of kind NotFound.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (Principal, error)
}

// Identity authenticates the caller from the X-User-ID header. Token
// issuance happens upstream; this only resolves role and blocked flag.
func Identity(res IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id == "" {
			WriteError(c, apperr.Unauthorized("authentication required"))
			c.Abort()
			return
		}
		p, err := res.Resolve(c.Request.Context(), id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				err = apperr.Unauthorized("unknown user")
			}
			WriteError(c, err)
			c.Abort()
			return
		}
		if p.Blocked {
			WriteError(c, apperr.Forbidden("user is blocked"))
			c.Abort()
			return
		}
		c.Set(ctxPrincipal, p)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			WriteError(c, apperr.Unauthorized("authentication required"))
			c.Abort()
			return
		}
		if !p.IsAdmin() {
			WriteError(c, apperr.Forbidden("admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// SetPrincipal is used by tests and internal callers that bypass Identity.
func SetPrincipal(c *gin.Context, p Principal) { c.Set(ctxPrincipal, p) }
