package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/securingai/internal/logging"
	"github.com/dmitrijs2005/securingai/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader = "X-Trace-ID"
	SessionCookie = "session"

	traceIDKey = "trace_id"
	userKey    = "current_user"
	tokenKey   = "session_token"
)

// TraceID reuses the caller's X-Trace-ID or generates one, and echoes it
// back.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// RequestLogger writes one access log line per request.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		args := []any{
			"trace_id", c.GetString(traceIDKey),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}

		if len(c.Errors) > 0 {
			l.Error(c.Request.Context(), "request failed", append(args, "errors", c.Errors.String())...)
			return
		}
		l.Info(c.Request.Context(), "request completed", args...)
	}
}

// requireSession resolves the session token to the current user and aborts
// with 401 when there is none. Soft-deleted users are rejected as well.
func (s *HTTPServer) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortUnauthorized(c)
			return
		}

		alt, err := s.sessions.Resolve(token)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		u, err := s.services.User.LoadBySessionID(c.Request.Context(), alt)
		if err != nil || u.Deleted {
			abortUnauthorized(c)
			return
		}

		c.Set(userKey, u)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
}
