package handlers

import (
	"net/http"

	"github.com/cfa-prep/study-service/internal/identity"
	"github.com/cfa-prep/study-service/internal/services"
	"github.com/cfa-prep/study-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware authenticates the bearer token, stores the caller in the
// gin context and makes sure the caller has a profile row.
func AuthMiddleware(provider identity.Provider, profiles services.ProfileService, logger utils.Logger) gin.HandlerFunc {
	base := NewBaseHandler(logger)

	return func(c *gin.Context) {
		token, err := identity.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			base.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", err)
			return
		}

		id, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			base.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token", err)
			return
		}

		c.Set(identityContextKey, id)
		c.Set(userIDContextKey, id.UserID)

		if err := profiles.EnsureProfile(c.Request.Context(), id); err != nil {
			base.handleServiceError(c, err)
			return
		}

		c.Next()
	}
}

// AdminMiddleware lets through only identities flagged as administrators
func AdminMiddleware(logger utils.Logger) gin.HandlerFunc {
	base := NewBaseHandler(logger)

	return func(c *gin.Context) {
		id, ok := currentIdentity(c)
		if !ok {
			base.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
			return
		}
		if !id.IsAdmin {
			base.RespondWithError(c, http.StatusForbidden, "Administrator access required", services.ErrForbidden)
			return
		}
		c.Next()
	}
}
