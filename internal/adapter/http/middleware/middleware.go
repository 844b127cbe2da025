package middleware

import (
	"net/http"
	"strings"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/internal/observability"
	"branch-ledger/pkg/apperror"
	"branch-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderBranch selects the working branch of a bank-level user.
	HeaderBranch    = "X-Branch"
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxActor = "actor"
)

// RequestID tags every request with an id, reusing the client's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// JWTAuth validates the bearer token and stores the actor in the context.
// Bank-level users pick their working branch per request with X-Branch;
// the header must name a known branch or ALL.
func JWTAuth(tokenSvc ports.TokenService, branches ports.BranchDirectory, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.AbortWithError(c, apperror.ErrInvalidToken())
			return
		}

		actor, err := tokenSvc.Validate(authHeader[7:])
		if err != nil {
			log.Debug().Err(err).Msg("rejected session token")
			response.AbortWithError(c, apperror.ErrInvalidToken())
			return
		}

		if selected := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderBranch))); selected != "" && actor.Role == domain.RoleBank {
			if !domain.IsAllBranches(selected) && !branches.BranchExists(selected) {
				response.AbortWithError(c, apperror.ErrBranchNotFound())
				return
			}
			*actor = actor.WithSelectedBranch(selected)
		}

		c.Set(CtxActor, *actor)
		c.Next()
	}
}

// RequireRole rejects actors whose role is not listed. It must run after JWTAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.AbortWithError(c, apperror.ErrInvalidToken())
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		response.AbortWithError(c, apperror.Forbidden("not allowed for "+strings.ToLower(string(actor.Role))+" users"))
	}
}

// ActorFrom returns the actor stored by JWTAuth.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, exists := c.Get(CtxActor)
	if !exists {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event = event.
			Str("request_id", c.GetString(response.RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())
		if actor, ok := ActorFrom(c); ok {
			event = event.Str("user", actor.Username).Str("branch", actor.Branch)
		}
		event.Msg("http request")
	}
}

// Metrics records request latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observability.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(response.RequestIDKey)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				response.AbortWithError(c, apperror.InternalError(nil))
			}
		}()
		c.Next()
	}
}
