package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oliehub/backend/internal/infrastructure/auth"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/interfaces/http/dto"
)

const (
	// ActorKey holds the operator identity in the gin context
	ActorKey     = "actor"
	bearerPrefix = "Bearer "
)

// JWTAuthMiddleware guards the operator API. It is mounted on the /api
// group only, so health and webhook routes never see it. A disabled
// verifier lets every request through with an empty actor.
func JWTAuthMiddleware(verifier *auth.JWTVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if header == "" || !strings.HasPrefix(header, bearerPrefix) || token == "" {
			rejectToken(c, nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			rejectToken(c, err)
			return
		}

		actor := claims.Actor()
		c.Set(ActorKey, actor)
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// rejectToken answers 401. A nil err means no bearer token was presented.
func rejectToken(c *gin.Context, err error) {
	logger.GetGinLogger(c).Warn("Operator authentication failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)

	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code, message = dto.ErrCodeTokenInvalid, "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims), errors.Is(err, auth.ErrMissingSubject):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, c.GetString(RequestIDKey)))
}

// GetActor returns the authenticated actor, or "" when auth is disabled
func GetActor(c *gin.Context) string {
	return c.GetString(ActorKey)
}
