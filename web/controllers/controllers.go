package controllers

import (
	"github.com/gin-gonic/gin"

	"go-storefront/web/db"
	"go-storefront/web/middleware"
)

// currentUser returns the user stored by middleware RequireAuth.
func currentUser(c *gin.Context) (db.User, bool) {
	v, ok := c.Get(middleware.UserKey)
	if !ok {
		return db.User{}, false
	}
	user, ok := v.(db.User)
	return user, ok && user.ID != ""
}
