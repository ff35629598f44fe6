package api

import (
	"net/http"

	"storefront/internal/apiclient"
	"storefront/internal/storefront"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	viewHeader    = "X-Current-View"
	storefrontKey = "storefront"
)

// sessionMiddleware resolves the browsing context from the session cookie,
// issuing a new cookie when the request has none.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(h.opts.CookieName)
		if _, perr := uuid.Parse(id); err != nil || perr != nil {
			id = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(h.opts.CookieName, id, 0, "/", "", h.opts.SecureCookie, true)
		}

		if view := c.GetHeader(viewHeader); view != "" {
			c.Request = c.Request.WithContext(apiclient.WithView(c.Request.Context(), view))
		}

		c.Set(storefrontKey, h.registry.Get(id))
		c.Next()
	}
}

// adminOnly lets through only contexts whose cached profile has the admin role.
func (h *Handler) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := current(c).Auth.User(c.Request.Context())
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":          "Login required",
				"login_required": true,
			})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
			})
			return
		}
		c.Next()
	}
}

func current(c *gin.Context) *storefront.Storefront {
	return c.MustGet(storefrontKey).(*storefront.Storefront)
}
