package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/transport/http/middleware"
	"github.com/arklim/skills-audit/internal/usecase"
)

const defaultUserPageSize = 25

// UserHandler serves the caller's profile and the user directory.
type UserHandler struct {
	users *usecase.UserService
}

func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the caller's profile.
func (h *UserHandler) Me(c *gin.Context) {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}
	profile, err := h.users.GetUser(c.Request.Context(), ident.UserID)
	if err != nil {
		respondRecordError(c, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(profile))
}

// UpdateMe applies a self-service profile patch.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}
	req, ok := middleware.Model[UpdateProfileRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	profile, err := h.users.UpdateProfile(c.Request.Context(), ident.UserID, req.patch())
	if err != nil {
		respondRecordError(c, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(profile))
}

// MyStats reports the caller's record counts and profile completion.
func (h *UserHandler) MyStats(c *gin.Context) {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}
	h.respondStats(c, ident.UserID)
}

// Stats reports another user's record counts.
func (h *UserHandler) Stats(c *gin.Context) {
	h.respondStats(c, c.Param("id"))
}

func (h *UserHandler) respondStats(c *gin.Context, uid string) {
	stats, err := h.users.Stats(c.Request.Context(), uid)
	if err != nil {
		respondRecordError(c, err, "failed to load statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Departments lists the departments a profile may belong to.
func (h *UserHandler) Departments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"departments": h.users.Departments()})
}

// List godoc
// @Summary List users
// @Description Pages through active profiles ordered by last name.
// @Tags Users
// @Produce json
// @Param department query string false "Department"
// @Param role query string false "Role"
// @Param includeInactive query bool false "Include deactivated profiles"
// @Param pageSize query int false "Page size"
// @Param cursor query string false "Cursor from the previous page"
// @Success 200 {object} UserListResponse
// @Failure 400 {object} FieldErrorsResponse
// @Router /api/users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := usecase.UserFilter{
		Department:      strings.TrimSpace(c.Query("department")),
		IncludeInactive: queryBool(c, "includeInactive"),
	}
	if raw := c.Query("role"); raw != "" {
		role, ok := domain.ParseRole(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown role"))
			return
		}
		filter.Role = role
	}

	pageSize := defaultUserPageSize
	if raw := c.Query("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "pageSize must be a positive number"))
			return
		}
		pageSize = n
	}

	page, err := h.users.ListUsers(c.Request.Context(), filter, pageSize, c.Query("cursor"))
	if err != nil {
		respondRecordError(c, err, "failed to list users")
		return
	}

	resp := UserListResponse{Users: make([]ProfileResponse, 0, len(page.Users)), NextCursor: page.NextCursor}
	for _, p := range page.Users {
		resp.Users = append(resp.Users, newProfileResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns one profile by id.
func (h *UserHandler) Get(c *gin.Context) {
	profile, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondRecordError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(profile))
}

// UpdateRole assigns a new role to the user in the path.
func (h *UserHandler) UpdateRole(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	req, ok := middleware.Model[UpdateRoleRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	if err := h.users.UpdateRole(c.Request.Context(), ident.UserID, c.Param("id"), req.Role); err != nil {
		respondRecordError(c, err, "failed to update role")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Role updated"})
}

// Activate re-enables the user in the path.
func (h *UserHandler) Activate(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	if err := h.users.Activate(c.Request.Context(), ident.UserID, c.Param("id")); err != nil {
		respondRecordError(c, err, "failed to activate user")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User activated"})
}

// Deactivate soft-deletes the user in the path.
func (h *UserHandler) Deactivate(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	if err := h.users.Deactivate(c.Request.Context(), ident.UserID, c.Param("id")); err != nil {
		respondRecordError(c, err, "failed to deactivate user")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User deactivated"})
}

func queryBool(c *gin.Context, key string) bool {
	raw := c.Query(key)
	return strings.EqualFold(raw, "true") || raw == "1"
}
