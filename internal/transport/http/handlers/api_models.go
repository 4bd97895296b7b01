package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/infra/security"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// FieldErrorsResponse mirrors the admission filter's validation envelope for
// failures detected after binding.
type FieldErrorsResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

func (f fieldErrors) orNil() map[string][]string {
	if len(f) == 0 {
		return nil
	}
	return f
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	FirstName       string  `json:"firstName" binding:"required,max=50"`
	LastName        string  `json:"lastName" binding:"required,max=50"`
	Email           string  `json:"email" binding:"required,email"`
	Password        string  `json:"password" binding:"required,min=8"`
	ConfirmPassword string  `json:"confirmPassword" binding:"required"`
	EmployeeID      string  `json:"employeeId" binding:"required"`
	Department      string  `json:"department" binding:"required"`
	PhoneNumber     *string `json:"phoneNumber"`
	Position        *string `json:"position" binding:"omitempty,max=100"`
}

func (r RegisterRequest) Validate() map[string][]string {
	errs := fieldErrors{}
	if r.Password != r.ConfirmPassword {
		errs.add("confirmPassword", "The password and confirmation password do not match")
	}
	if !security.IsValidEmployeeID(strings.TrimSpace(r.EmployeeID)) {
		errs.add("employeeId", "Employee ID must be in format EMP followed by 4-6 digits")
	}
	if r.PhoneNumber != nil && !security.IsValidPhoneNumber(strings.TrimSpace(*r.PhoneNumber)) {
		errs.add("phoneNumber", "Invalid phone number format")
	}
	return errs.orNil()
}

func (r RegisterRequest) registration() domain.Registration {
	return domain.Registration{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Password:    r.Password,
		EmployeeID:  r.EmployeeID,
		Department:  strings.TrimSpace(r.Department),
		PhoneNumber: trimmedOrNil(r.PhoneNumber),
		Position:    trimmedOrNil(r.Position),
	}
}

// ResetPasswordRequest starts the password reset flow.
type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ConfirmResetRequest completes a password reset with the emailed code.
type ConfirmResetRequest struct {
	Code            string `json:"code" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (r ConfirmResetRequest) Validate() map[string][]string {
	if r.NewPassword != r.ConfirmPassword {
		return map[string][]string{"confirmPassword": {"The new password and confirmation password do not match"}}
	}
	return nil
}

// ChangePasswordRequest re-authenticates and replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (r ChangePasswordRequest) Validate() map[string][]string {
	errs := fieldErrors{}
	if r.NewPassword != r.ConfirmPassword {
		errs.add("confirmPassword", "The new password and confirmation password do not match")
	}
	if r.NewPassword != "" && r.NewPassword == r.CurrentPassword {
		errs.add("newPassword", "New password must be different from the current password")
	}
	return errs.orNil()
}

// UpdateEmailRequest changes the caller's sign-in address.
type UpdateEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordStrengthRequest asks for a live strength estimate.
type PasswordStrengthRequest struct {
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

// PasswordStrengthResponse reports the estimate and every unmet policy rule.
type PasswordStrengthResponse struct {
	security.PasswordStrength
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	ID           string      `json:"id"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	FullName     string      `json:"fullName"`
	Email        string      `json:"email"`
	EmployeeID   string      `json:"employeeId"`
	Department   string      `json:"department"`
	Role         domain.Role `json:"role"`
	IsActive     bool        `json:"isActive"`
	PhoneNumber  *string     `json:"phoneNumber,omitempty"`
	Position     *string     `json:"position,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	LastActivity *time.Time  `json:"lastActivity,omitempty"`
}

func newProfileResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:           p.ID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		FullName:     p.FullName(),
		Email:        p.Email,
		EmployeeID:   p.EmployeeID,
		Department:   p.Department,
		Role:         p.EffectiveRole(),
		IsActive:     p.IsActive,
		PhoneNumber:  p.PhoneNumber,
		Position:     p.Position,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		LastActivity: p.LastActivity,
	}
}

// UpdateProfileRequest is the self-service profile patch.
type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName" binding:"omitempty,max=50"`
	LastName    *string `json:"lastName" binding:"omitempty,max=50"`
	Department  *string `json:"department"`
	PhoneNumber *string `json:"phoneNumber"`
	Position    *string `json:"position" binding:"omitempty,max=100"`
}

func (r UpdateProfileRequest) patch() domain.ProfilePatch {
	return domain.ProfilePatch{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Department:  r.Department,
		PhoneNumber: r.PhoneNumber,
		Position:    r.Position,
	}
}

// UpdateRoleRequest assigns a role to another user.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin manager employee"`
}

// UserListResponse is one page of the user directory.
type UserListResponse struct {
	Users      []ProfileResponse `json:"users"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// SkillRequest creates a skill.
type SkillRequest struct {
	Name            string  `json:"name" binding:"required,max=100"`
	Category        string  `json:"category" binding:"required"`
	Level           string  `json:"level" binding:"required"`
	Description     *string `json:"description" binding:"omitempty,max=500"`
	YearsExperience int     `json:"yearsExperience" binding:"min=0,max=50"`
}

func (r SkillRequest) Validate() map[string][]string {
	if !domain.SkillLevel(r.Level).Valid() {
		return map[string][]string{"level": {"Level must be one of Beginner, Intermediate, Advanced, Expert"}}
	}
	return nil
}

func (r SkillRequest) skill() domain.Skill {
	return domain.Skill{
		Name:            r.Name,
		Category:        r.Category,
		Level:           domain.SkillLevel(r.Level),
		Description:     trimmedOrNil(r.Description),
		YearsExperience: r.YearsExperience,
	}
}

// SkillPatchRequest edits a skill; absent fields stay unchanged.
type SkillPatchRequest struct {
	Name            *string `json:"name" binding:"omitempty,max=100"`
	Category        *string `json:"category"`
	Level           *string `json:"level"`
	Description     *string `json:"description" binding:"omitempty,max=500"`
	YearsExperience *int    `json:"yearsExperience" binding:"omitempty,min=0,max=50"`
	IsVerified      *bool   `json:"isVerified"`
}

func (r SkillPatchRequest) Validate() map[string][]string {
	if r.Level != nil && !domain.SkillLevel(*r.Level).Valid() {
		return map[string][]string{"level": {"Level must be one of Beginner, Intermediate, Advanced, Expert"}}
	}
	return nil
}

func (r SkillPatchRequest) patch() domain.SkillPatch {
	p := domain.SkillPatch{
		Name:            r.Name,
		Category:        r.Category,
		Description:     r.Description,
		YearsExperience: r.YearsExperience,
		IsVerified:      r.IsVerified,
	}
	if r.Level != nil {
		level := domain.SkillLevel(*r.Level)
		p.Level = &level
	}
	return p
}

// ImportSkillsRequest adds several skills in one atomic write.
type ImportSkillsRequest struct {
	Skills []SkillRequest `json:"skills" binding:"required,min=1,dive"`
}

func (r ImportSkillsRequest) Validate() map[string][]string {
	errs := fieldErrors{}
	for i, s := range r.Skills {
		for field, msgs := range s.Validate() {
			for _, msg := range msgs {
				errs.add(indexedField("skills", i, field), msg)
			}
		}
	}
	return errs.orNil()
}

// SkillResponse is the public view of a skill.
type SkillResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	Level           domain.SkillLevel `json:"level"`
	Description     *string           `json:"description,omitempty"`
	YearsExperience int               `json:"yearsExperience"`
	IsVerified      bool              `json:"isVerified"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func newSkillResponse(s domain.Skill) SkillResponse {
	return SkillResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		Name:            s.Name,
		Category:        s.Category,
		Level:           s.Level,
		Description:     s.Description,
		YearsExperience: s.YearsExperience,
		IsVerified:      s.IsVerified,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func newSkillResponses(skills []domain.Skill) []SkillResponse {
	out := make([]SkillResponse, 0, len(skills))
	for _, s := range skills {
		out = append(out, newSkillResponse(s))
	}
	return out
}

// TrainingRequest records a course.
type TrainingRequest struct {
	Title          string     `json:"title" binding:"required,max=200"`
	Provider       string     `json:"provider" binding:"required,max=100"`
	Category       string     `json:"category"`
	Status         string     `json:"status"`
	StartDate      *time.Time `json:"startDate"`
	EndDate        *time.Time `json:"endDate"`
	Duration       int        `json:"duration" binding:"min=0,max=10000"`
	CertificateURL *string    `json:"certificateUrl" binding:"omitempty,url"`
	Description    *string    `json:"description" binding:"omitempty,max=1000"`
}

func (r TrainingRequest) Validate() map[string][]string {
	errs := fieldErrors{}
	if r.Status != "" && !domain.TrainingStatus(r.Status).Valid() {
		errs.add("status", "Status must be one of Planned, In Progress, Completed, Cancelled")
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		errs.add("endDate", "End date must be on or after the start date")
	}
	return errs.orNil()
}

func (r TrainingRequest) training() domain.Training {
	return domain.Training{
		Title:          r.Title,
		Provider:       r.Provider,
		Category:       strings.TrimSpace(r.Category),
		Status:         domain.TrainingStatus(r.Status),
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Duration:       r.Duration,
		CertificateURL: trimmedOrNil(r.CertificateURL),
		Description:    trimmedOrNil(r.Description),
	}
}

// TrainingPatchRequest edits a training record.
type TrainingPatchRequest struct {
	Title          *string    `json:"title" binding:"omitempty,max=200"`
	Provider       *string    `json:"provider" binding:"omitempty,max=100"`
	Category       *string    `json:"category"`
	Status         *string    `json:"status"`
	StartDate      *time.Time `json:"startDate"`
	EndDate        *time.Time `json:"endDate"`
	Duration       *int       `json:"duration" binding:"omitempty,min=0,max=10000"`
	CertificateURL *string    `json:"certificateUrl" binding:"omitempty,url"`
	Description    *string    `json:"description" binding:"omitempty,max=1000"`
}

func (r TrainingPatchRequest) Validate() map[string][]string {
	if r.Status != nil && !domain.TrainingStatus(*r.Status).Valid() {
		return map[string][]string{"status": {"Status must be one of Planned, In Progress, Completed, Cancelled"}}
	}
	return nil
}

func (r TrainingPatchRequest) patch() domain.TrainingPatch {
	p := domain.TrainingPatch{
		Title:          r.Title,
		Provider:       r.Provider,
		Category:       r.Category,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Duration:       r.Duration,
		CertificateURL: r.CertificateURL,
		Description:    r.Description,
	}
	if r.Status != nil {
		status := domain.TrainingStatus(*r.Status)
		p.Status = &status
	}
	return p
}

// TrainingResponse is the public view of a training record.
type TrainingResponse struct {
	ID             string                `json:"id"`
	UserID         string                `json:"userId"`
	Title          string                `json:"title"`
	Provider       string                `json:"provider"`
	Category       string                `json:"category,omitempty"`
	Status         domain.TrainingStatus `json:"status"`
	StartDate      *time.Time            `json:"startDate,omitempty"`
	EndDate        *time.Time            `json:"endDate,omitempty"`
	Duration       int                   `json:"duration"`
	CertificateURL *string               `json:"certificateUrl,omitempty"`
	Description    *string               `json:"description,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func newTrainingResponse(t domain.Training) TrainingResponse {
	return TrainingResponse{
		ID:             t.ID,
		UserID:         t.UserID,
		Title:          t.Title,
		Provider:       t.Provider,
		Category:       t.Category,
		Status:         t.Status,
		StartDate:      t.StartDate,
		EndDate:        t.EndDate,
		Duration:       t.Duration,
		CertificateURL: t.CertificateURL,
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func newTrainingResponses(trainings []domain.Training) []TrainingResponse {
	out := make([]TrainingResponse, 0, len(trainings))
	for _, t := range trainings {
		out = append(out, newTrainingResponse(t))
	}
	return out
}

// NotificationResponse is the public view of an in-app notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Kind      domain.NotificationKind `json:"kind"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	RelatedID string                  `json:"relatedId,omitempty"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"createdAt"`
}

func newNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Kind:      n.Kind,
			Title:     n.Title,
			Body:      n.Body,
			RelatedID: n.RelatedID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// ReminderRunResponse reports a manual reminder run.
type ReminderRunResponse struct {
	Job       string    `json:"job"`
	Triggered time.Time `json:"triggeredAt"`
}

// HealthResponse describes service health information.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func indexedField(prefix string, i int, field string) string {
	return prefix + "[" + strconv.Itoa(i) + "]." + field
}
