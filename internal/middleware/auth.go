package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/models"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

// IdentityResolver turns a bearer token into the calling identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (models.Identity, error)
}

// AbortWithError writes the {kind, message} body for err and stops the chain.
// Uncategorized and internal errors never leak their text.
func AbortWithError(c *gin.Context, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind == apperr.KindInternal {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"kind":    apperr.KindInternal,
			"message": "internal server error",
		})
		return
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(e.Kind), gin.H{"kind": e.Kind, "message": e.Message})
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, apperr.Authentication("Authorization header required"))
			return
		}

		id, err := resolver.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		// Set user info in the context for handlers to use
		c.Set(ctxUserID, id.UserID)
		c.Set(ctxUserRole, id.Role)

		c.Next()
	}
}

// RequireRole rejects callers whose role is not role. Must run after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			AbortWithError(c, apperr.Authentication("not authenticated"))
			return
		}
		if id.Role != role {
			AbortWithError(c, apperr.Authorization("this endpoint is for "+string(role)+"s only"))
			return
		}
		c.Next()
	}
}

// Identity returns the caller stored by AuthMiddleware.
func Identity(c *gin.Context) (models.Identity, bool) {
	uid := c.GetString(ctxUserID)
	role, _ := c.Get(ctxUserRole)
	r, ok := role.(models.Role)
	if uid == "" || !ok {
		return models.Identity{}, false
	}
	return models.Identity{UserID: uid, Role: r}, true
}

// BearerToken reads the Authorization header without resolving it.
func BearerToken(c *gin.Context) string {
	return bearerToken(c)
}
