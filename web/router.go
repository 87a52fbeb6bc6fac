// Package web wires the storefront HTTP API.
package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-storefront/payment/checkout"
	"go-storefront/web/controllers"
	"go-storefront/web/middleware"
)

type Deps struct {
	DB       *gorm.DB
	Checkout *checkout.Service
	Store    *checkout.Store
	Logger   *zap.Logger

	JWTSecret          string
	AdminKey           string
	CORSAllowOrigins   []string
	RateLimitPerMinute int
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(d.CORSAllowOrigins))

	limiter := middleware.NewRateLimiter(d.RateLimitPerMinute, time.Minute).Middleware()
	auth := middleware.NewAuthenticator(d.DB, d.JWTSecret)

	payments := controllers.NewPaymentController(d.Checkout, d.Store, logger)
	users := controllers.NewAuthController(d.DB, d.JWTSecret, logger)
	admin := controllers.NewAdminController(d.DB, logger)
	health := controllers.NewHealthController(d.DB)

	r.GET("/health", health.Health)

	r.POST("/auth/signup", limiter, users.Signup)
	r.POST("/auth/login", limiter, users.Login)
	r.GET("/auth/me", auth.RequireAuth, users.Me)

	pay := r.Group("/payment")
	pay.POST("/request", limiter, auth.RequireAuth, payments.Request)
	pay.POST("/verify", limiter, payments.Verify)
	pay.GET("/status/:pending_id", auth.RequireAuth, payments.Status)
	pay.GET("/list", auth.RequireAuth, payments.List)
	pay.GET("/qrcode/:pending_id", auth.RequireAuth, payments.QRCode)

	adm := r.Group("/admin", middleware.AdminAuth(d.AdminKey))
	adm.POST("/coupons", admin.CreateCoupon)
	adm.GET("/notifications", admin.Notifications)
	adm.POST("/notifications/:id/read", admin.MarkNotificationRead)

	return r
}
