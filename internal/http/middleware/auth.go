package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/skillswap-connections/internal/auth"
)

// HeaderUserID carries the acting user when header identity is allowed.
const HeaderUserID = "X-User-ID"

// ctxKeyActor is the Gin context key holding the authenticated user id.
const ctxKeyActor = "userID"

// AuthOptions selects the accepted identity sources.
type AuthOptions struct {
	// JWTSecret verifies "Authorization: Bearer <token>". Empty disables JWT.
	JWTSecret string
	// AllowHeaderIdentity trusts X-User-ID when no bearer token is present.
	AllowHeaderIdentity bool
}

// Authenticate resolves the acting user once per request and stores it for
// ActorFrom. Requests without a usable identity get 401.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, msg := resolveActor(c, opts)
		if actor == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", msg)
			return
		}
		c.Set(ctxKeyActor, actor)

		lg := LoggerFrom(c).With().Str("user_id", actor).Logger()
		attachLogger(c, &lg)

		c.Next()
	}
}

func resolveActor(c *gin.Context, opts AuthOptions) (actor, msg string) {
	if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
		token, found := strings.CutPrefix(authz, "Bearer ")
		if !found || opts.JWTSecret == "" {
			return "", "unsupported authorization"
		}
		claims, err := auth.ValidateToken(strings.TrimSpace(token), opts.JWTSecret)
		if err != nil {
			return "", "invalid token"
		}
		return claims.Subject, ""
	}
	if opts.AllowHeaderIdentity {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			return uid, ""
		}
	}
	return "", "authentication required"
}

// ActorFrom returns the user id set by Authenticate.
func ActorFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyActor)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// abortJSON writes the standard failure envelope and stops the chain.
func abortJSON(c *gin.Context, status int, code, msg string) {
	SetErrorCode(c, code)
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"code":       code,
		"message":    msg,
		"request_id": c.Writer.Header().Get(requestIDHeader),
	})
}
