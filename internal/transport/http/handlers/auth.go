package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/infra/security"
	"github.com/arklim/skills-audit/internal/transport/http/middleware"
	"github.com/arklim/skills-audit/internal/usecase"
)

const defaultCookieTTL = 8 * time.Hour

// CookieOptions shapes the auth cookie written after login.
type CookieOptions struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth   *usecase.AuthSessionService
	users  *usecase.UserService
	policy *security.PasswordPolicy
	cookie CookieOptions
}

// NewAuthHandler constructs AuthHandler. policy drives the live strength check
// and should match the one the service enforces.
func NewAuthHandler(auth *usecase.AuthSessionService, users *usecase.UserService, policy *security.PasswordPolicy, cookie CookieOptions) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = middleware.DefaultAuthCookie
	}
	if cookie.TTL <= 0 {
		cookie.TTL = defaultCookieTTL
	}
	if policy == nil {
		policy = security.DefaultPasswordPolicy()
	}
	return &AuthHandler{auth: auth, users: users, policy: policy, cookie: cookie}
}

// Login godoc
// @Summary Sign in with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} domain.AuthResult
// @Failure 400 {object} FieldErrorsResponse
// @Failure 401 {object} domain.AuthResult
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 503 {object} domain.AuthResult
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := middleware.Model[LoginRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if !result.Success {
		c.JSON(authStatus(result, http.StatusOK, http.StatusUnauthorized), result)
		return
	}

	h.setAuthCookie(c, result.Token, req.RememberMe)
	c.JSON(http.StatusOK, result)
}

// Register godoc
// @Summary Register a new employee account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} domain.AuthResult
// @Failure 400 {object} FieldErrorsResponse
// @Failure 409 {object} domain.AuthResult
// @Failure 503 {object} domain.AuthResult
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	req, ok := middleware.Model[RegisterRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	if !h.knownDepartment(req.Department) {
		c.JSON(http.StatusBadRequest, FieldErrorsResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  map[string][]string{"department": {"Unknown department"}},
		})
		return
	}

	result := h.auth.Register(c.Request.Context(), req.registration())
	if result.Success {
		h.setAuthCookie(c, result.Token, false)
	}
	c.JSON(authStatus(result, http.StatusCreated, http.StatusBadRequest), result)
}

func (h *AuthHandler) knownDepartment(name string) bool {
	if h.users == nil {
		return true
	}
	for _, d := range h.users.Departments() {
		if d == name {
			return true
		}
	}
	return false
}

// Logout ends the caller's session and clears the auth cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if ident, ok := middleware.CurrentIdentity(c); ok {
		h.auth.Logout(c.Request.Context(), ident.UserID)
	}
	h.clearAuthCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out"})
}

// ResetPassword godoc
// @Summary Send a password reset email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset request"
// @Success 200 {object} domain.AuthResult
// @Failure 400 {object} domain.AuthResult
// @Router /api/auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	req, ok := middleware.Model[ResetPasswordRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	result := h.auth.ResetPassword(c.Request.Context(), req.Email)
	c.JSON(authStatus(result, http.StatusOK, http.StatusBadRequest), result)
}

// ConfirmPasswordReset completes the reset with the code from the email.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	req, ok := middleware.Model[ConfirmResetRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	result := h.auth.ConfirmPasswordReset(c.Request.Context(), req.Code, req.NewPassword)
	c.JSON(authStatus(result, http.StatusOK, http.StatusBadRequest), result)
}

// PasswordStrength scores a candidate password against the policy.
func (h *AuthHandler) PasswordStrength(c *gin.Context) {
	req, ok := middleware.Model[PasswordStrengthRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	resp := PasswordStrengthResponse{
		PasswordStrength: security.EstimateStrength(req.Password, req.Email),
		Valid:            true,
	}
	if err := h.policy.Validate(req.Password, req.Email); err != nil {
		resp.Valid = false
		if violations, ok := security.AsPasswordViolations(err); ok {
			resp.Violations = violations.Messages()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// CheckEmail reports whether an email is already registered.
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	email := c.Query("email")
	if !security.IsValidEmail(email) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid email address format"))
		return
	}
	exists, err := h.auth.IsEmailExists(c.Request.Context(), email)
	if err != nil {
		respondRecordError(c, err, "failed to check email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// CheckEmployeeID reports whether an employee id is already registered.
func (h *AuthHandler) CheckEmployeeID(c *gin.Context) {
	id := c.Query("employeeId")
	if !security.IsValidEmployeeID(id) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Employee ID must be in format EMP followed by 4-6 digits"))
		return
	}
	exists, err := h.auth.IsEmployeeIDExists(c.Request.Context(), id)
	if err != nil {
		respondRecordError(c, err, "failed to check employee id")
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

var accountErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: "Current password is incorrect"},
	{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "Password does not meet complexity requirements"},
	{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "Email already registered"},
	{Err: usecase.ErrEmailOutOfSync, Status: http.StatusInternalServerError, Message: "Email change could not be completed. Please contact support"},
	{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: usecase.MessageProfileNotFound},
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags Account
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "Change password request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/account/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}
	req, ok := middleware.Model[ChangePasswordRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), ident.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.respondProviderAware(c, err, "Failed to change password")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

// UpdateEmail changes the caller's sign-in address at the provider and on the profile.
func (h *AuthHandler) UpdateEmail(c *gin.Context) {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}
	req, ok := middleware.Model[UpdateEmailRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.auth.UpdateEmail(c.Request.Context(), ident.UserID, req.Email); err != nil {
		h.respondProviderAware(c, err, "Failed to update email")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Email updated successfully"})
}

// respondProviderAware maps account errors. Provider failures that no case
// claims are answered with the provider's user-facing message.
func (h *AuthHandler) respondProviderAware(c *gin.Context, err error, fallback string) {
	for _, cs := range accountErrorCases {
		if errors.Is(err, cs.Err) {
			RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, fallback)
			return
		}
	}

	var pErr *domain.ProviderError
	if errors.As(err, &pErr) {
		status := failureStatus(domain.FailureKindOf(pErr.Code), http.StatusBadRequest)
		_ = c.Error(err)
		c.JSON(status, NewErrorResponse(c, usecase.ProviderMessage(pErr.Code)))
		return
	}
	RespondWithMappedError(c, err, accountErrorCases, http.StatusInternalServerError, fallback)
}

func (h *AuthHandler) setAuthCookie(c *gin.Context, token string, persistent bool) {
	if token == "" {
		return
	}
	maxAge := 0
	if persistent {
		maxAge = int(h.cookie.TTL / time.Second)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, maxAge, "/", "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearAuthCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}

// authStatus picks the status for an AuthResult. Rejected is used for bad
// credentials, which differ between sign-in and the other flows.
func authStatus(result domain.AuthResult, success, rejected int) int {
	if result.Success {
		return success
	}
	return failureStatus(result.Failure, rejected)
}

func failureStatus(kind domain.FailureKind, rejected int) int {
	switch kind {
	case domain.FailureCredentials:
		return rejected
	case domain.FailureValidation:
		return http.StatusBadRequest
	case domain.FailureConflict:
		return http.StatusConflict
	case domain.FailureNotFound:
		return http.StatusNotFound
	case domain.FailureRateLimited:
		return http.StatusTooManyRequests
	case domain.FailureUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
