package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-storefront/web/db"
)

const notificationsPageSize = 50

type AdminController struct {
	conn   *gorm.DB
	logger *zap.Logger
}

func NewAdminController(conn *gorm.DB, logger *zap.Logger) *AdminController {
	return &AdminController{conn: conn, logger: logger}
}

func (ac *AdminController) CreateCoupon(c *gin.Context) {
	var req struct {
		Code            string `json:"code"`
		DiscountPercent int    `json:"discount_percent"`
		MaxUses         int    `json:"max_uses"`
		ExpiresAt       string `json:"expires_at"` // RFC3339, optional
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" || req.DiscountPercent <= 0 || req.DiscountPercent > 100 || req.MaxUses < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon"})
		return
	}

	coupon := db.Coupon{
		ID:              uuid.NewString(),
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		Active:          true,
	}
	if req.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expiration date"})
			return
		}
		coupon.ExpiresAt = &expiresAt
	}

	if err := ac.conn.WithContext(c.Request.Context()).Create(&coupon).Error; err != nil {
		ac.logger.Error("create coupon", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create coupon"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Coupon created successfully", "coupon": coupon})
}

func (ac *AdminController) Notifications(c *gin.Context) {
	q := ac.conn.WithContext(c.Request.Context()).Order("created_at desc").Limit(notificationsPageSize)
	if c.Query("unread") == "true" {
		q = q.Where("is_read = ?", false)
	}

	var out []db.AdminNotification
	if err := q.Find(&out).Error; err != nil {
		ac.logger.Error("list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (ac *AdminController) MarkNotificationRead(c *gin.Context) {
	res := ac.conn.WithContext(c.Request.Context()).
		Model(&db.AdminNotification{}).
		Where("id = ?", c.Param("id")).
		Update("is_read", true)
	if res.Error != nil {
		ac.logger.Error("mark notification read", zap.Error(res.Error))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
