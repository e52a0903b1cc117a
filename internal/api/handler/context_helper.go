package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"praxihub/backend/internal/api/middleware"
	"praxihub/backend/internal/service"
	"praxihub/backend/pkg/response"
)

// MustGetUserID reads user_id set by JWTAuth. On failure a 401 is written
// and the caller should return.
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "not authenticated")
		return "", false
	}
	return s, true
}

// MustGetCaller builds the service caller from the auth context
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return service.Caller{}, false
	}
	role := c.GetString(middleware.CtxRole)
	if role == "" {
		response.Unauthorized(c, 10002, "not authenticated")
		return service.Caller{}, false
	}
	return service.Caller{UserID: uid, Role: role, Email: c.GetString(middleware.CtxEmail)}, true
}

// tokenIdentity jti and expiry of the access token on the request
func tokenIdentity(c *gin.Context) (string, time.Time) {
	exp, _ := c.Get(middleware.CtxTokenExp)
	t, _ := exp.(time.Time)
	return c.GetString(middleware.CtxTokenID), t
}
