package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"go-storefront/web/db"
)

// UserKey is the gin context key holding the authenticated db.User.
const UserKey = "user"

var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves a bearer credential to a user.
type Authenticator struct {
	conn   *gorm.DB
	secret []byte
}

func NewAuthenticator(conn *gorm.DB, secret string) *Authenticator {
	return &Authenticator{conn: conn, secret: []byte(secret)}
}

// Authenticate validates an Authorization header value. Every failure wraps
// ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (db.User, error) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return db.User{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	if len(a.secret) == 0 {
		return db.User{}, fmt.Errorf("%w: signing secret not configured", ErrUnauthorized)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return db.User{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return db.User{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	var user db.User
	err = a.conn.WithContext(ctx).First(&user, "id = ?", claims.Subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.User{}, fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}
	if err != nil {
		return db.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// RequireAuth aborts with 401 unless the request carries a valid bearer token.
func (a *Authenticator) RequireAuth(c *gin.Context) {
	user, err := a.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthorized: " + strings.TrimPrefix(err.Error(), ErrUnauthorized.Error()+": "),
		})
		return
	}

	c.Set(UserKey, user)
	c.Next()
}

// IssueToken signs an HS256 token for userID valid for ttl.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}
