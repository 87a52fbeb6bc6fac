package controllers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"go-storefront/web/db"
	"go-storefront/web/middleware"
)

const (
	tokenTTL          = 30 * 24 * time.Hour
	minPasswordLength = 8
	bcryptCost        = 10
)

type AuthController struct {
	conn   *gorm.DB
	secret string
	logger *zap.Logger
}

func NewAuthController(conn *gorm.DB, secret string, logger *zap.Logger) *AuthController {
	return &AuthController{conn: conn, secret: secret, logger: logger}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (ac *AuthController) Signup(c *gin.Context) {
	var body credentials
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(body.Email))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
		return
	}
	if len(body.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password is too short"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcryptCost)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to hash password."})
		return
	}

	user := db.User{
		ID:       uuid.NewString(),
		Email:    strings.ToLower(addr.Address),
		Password: string(hash),
	}
	if err := ac.conn.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || ac.emailTaken(c, user.Email) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		ac.logger.Error("create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "email": user.Email})
}

func (ac *AuthController) emailTaken(c *gin.Context, email string) bool {
	var n int64
	ac.conn.WithContext(c.Request.Context()).Model(&db.User{}).Where("email = ?", email).Count(&n)
	return n > 0
}

func (ac *AuthController) Login(c *gin.Context) {
	var body credentials
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	var user db.User
	err := ac.conn.WithContext(c.Request.Context()).
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(body.Email))).Error
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := middleware.IssueToken(ac.secret, user.ID, tokenTTL)
	if err != nil {
		ac.logger.Error("issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me returns the authenticated user.
func (ac *AuthController) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}
