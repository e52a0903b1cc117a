package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/service"
	"praxihub/backend/pkg/response"
)

// UserHandler profile endpoints
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler creates a UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// UpdateProfile
// PUT /api/v1/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	user, err := h.userSvc.UpdateProfile(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateSkills student skill tags
// PUT /api/v1/users/me/skills
func (h *UserHandler) UpdateSkills(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.UpdateSkillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	user, err := h.userSvc.UpdateSkills(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateCompany company profile and wanted skills
// PUT /api/v1/users/me/company
func (h *UserHandler) UpdateCompany(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	user, err := h.userSvc.UpdateCompany(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, user)
}

// ListCompanies
// GET /api/v1/users/companies
func (h *UserHandler) ListCompanies(c *gin.Context) {
	list, err := h.userSvc.ListCompanies(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, list)
}

func (h *UserHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "user not found")
	case errors.Is(err, service.ErrWrongRole):
		response.Forbidden(c, 12002, "operation not available for this role")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 10003, "access denied")
	default:
		response.InternalError(c)
	}
}
