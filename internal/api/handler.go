package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/storefront"
	"storefront/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Options configure the HTTP surface.
type Options struct {
	CookieName   string
	SecureCookie bool
	CORSOrigins  []string
	ReadyChecks  map[string]Checker
}

// Handler contains HTTP handlers
type Handler struct {
	registry *storefront.Registry
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(registry *storefront.Registry, opts Options) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "sf_session"
	}
	return &Handler{
		registry: registry,
		opts:     opts,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	if len(h.opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     h.opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", viewHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/payment/return", h.sessionMiddleware(), h.paymentReturn)

	v1 := router.Group("/api/v1", h.sessionMiddleware())
	{
		v1.POST("/auth/login", h.login)
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/verify", h.verify)
		v1.POST("/auth/forgot-password", h.forgotPassword)
		v1.POST("/auth/reset-password", h.resetPassword)
		v1.POST("/auth/logout", h.logout)
		v1.GET("/auth/me", h.me)

		v1.GET("/profile", h.getProfile)
		v1.PUT("/profile", h.updateProfile)
		v1.POST("/profile/avatar", h.uploadAvatar)
		v1.POST("/contact", h.contact)

		v1.GET("/products", h.listProducts)
		v1.POST("/products/filter", h.commitFilter)
		v1.GET("/products/featured", h.featuredProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/categories", h.categories)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productId", h.updateCartItem)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)

		v1.POST("/checkout", h.checkout)
		v1.GET("/orders", h.myOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id/cancel", h.cancelOrder)
	}

	admin := v1.Group("/admin", h.adminOnly())
	{
		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.DELETE("/products/:id", h.deleteProduct)
		admin.POST("/products/image", h.uploadProductImage)
		admin.GET("/products/stats", h.productStats)
		admin.POST("/categories", h.createCategory)

		admin.GET("/orders", h.allOrders)
		admin.PUT("/orders/:id/status", h.updateOrderStatus)
		admin.GET("/orders/stats", h.orderStats)
		admin.GET("/orders/revenue", h.revenueChart)

		admin.GET("/users", h.allUsers)
		admin.POST("/users", h.createUser)
		admin.GET("/users/stats", h.userStats)
		admin.GET("/users/:id", h.getUser)
		admin.PUT("/users/:id", h.updateUser)
		admin.DELETE("/users/:id", h.deleteUser)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"time":     time.Now().Unix(),
		"contexts": h.registry.Len(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

const genericFailure = "something went wrong, try again"

// respondError maps the error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, cart.ErrAuthRequired) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":          "Login required",
			"details":        err.Error(),
			"login_required": true,
		})
		return
	}

	if errors.Is(err, cart.ErrOutOfStock) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Out of stock",
			"details": err.Error(),
		})
		return
	}

	var reauth *apiclient.ReauthError
	if errors.As(err, &reauth) {
		body := gin.H{
			"error":   "Session expired",
			"details": "please sign in again",
		}
		if reauth.Redirect != "" {
			body["redirect"] = reauth.Redirect
		}
		c.JSON(http.StatusUnauthorized, body)
		return
	}

	var verr *apiclient.ValidationError
	var apiErr *apiclient.APIError
	switch apiclient.Classify(err) {
	case apiclient.KindValidation:
		errors.As(err, &verr)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": verr.Error(),
			"fields":  verr.Fields,
		})
	case apiclient.KindAuthorization:
		details := err.Error()
		if errors.As(err, &apiErr) {
			details = apiErr.Message
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "Not authorized",
			"details": details,
		})
	case apiclient.KindResource:
		errors.As(err, &apiErr)
		c.JSON(apiErr.StatusCode, gin.H{
			"error":   http.StatusText(apiErr.StatusCode),
			"details": apiErr.Message,
		})
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": genericFailure,
		})
	}
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
