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

// SkillHandler serves skill records. Every route expects an authenticated caller.
type SkillHandler struct {
	skills *usecase.SkillService
}

func NewSkillHandler(skills *usecase.SkillService) *SkillHandler {
	return &SkillHandler{skills: skills}
}

// ListMine returns the caller's skills ordered by name.
func (h *SkillHandler) ListMine(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	skills, err := h.skills.ListUserSkills(c.Request.Context(), ident.UserID)
	if err != nil {
		respondRecordError(c, err, "failed to list skills")
		return
	}
	c.JSON(http.StatusOK, newSkillResponses(skills))
}

// ListForUser returns the skills of the user in the path.
func (h *SkillHandler) ListForUser(c *gin.Context) {
	skills, err := h.skills.ListUserSkills(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondRecordError(c, err, "failed to list skills")
		return
	}
	c.JSON(http.StatusOK, newSkillResponses(skills))
}

// ListByCategory returns every user's skills in one category.
func (h *SkillHandler) ListByCategory(c *gin.Context) {
	skills, err := h.skills.ListByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		respondRecordError(c, err, "failed to list skills")
		return
	}
	c.JSON(http.StatusOK, newSkillResponses(skills))
}

// Categories lists the categories in use.
func (h *SkillHandler) Categories(c *gin.Context) {
	categories, err := h.skills.Categories(c.Request.Context())
	if err != nil {
		respondRecordError(c, err, "failed to list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Search matches skills by name or description. Employees search their own
// skills; managers and admins search everyone's unless userId narrows it.
func (h *SkillHandler) Search(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	uid := ident.UserID
	if ident.Role.Privileged() {
		uid = strings.TrimSpace(c.Query("userId"))
	}

	skills, err := h.skills.Search(c.Request.Context(), uid, c.Query("q"))
	if err != nil {
		respondRecordError(c, err, "failed to search skills")
		return
	}
	c.JSON(http.StatusOK, newSkillResponses(skills))
}

// Stats summarises the caller's skills.
func (h *SkillHandler) Stats(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	stats, err := h.skills.Stats(c.Request.Context(), ident.UserID)
	if err != nil {
		respondRecordError(c, err, "failed to load skill statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Top returns the caller's most experienced skills.
func (h *SkillHandler) Top(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	skills, err := h.skills.TopSkills(c.Request.Context(), ident.UserID, limit)
	if err != nil {
		respondRecordError(c, err, "failed to load top skills")
		return
	}
	c.JSON(http.StatusOK, newSkillResponses(skills))
}

// Get returns one skill the caller may see.
func (h *SkillHandler) Get(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	skill, err := h.skills.ValidateOwnership(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		respondRecordError(c, err, "failed to load skill")
		return
	}
	c.JSON(http.StatusOK, newSkillResponse(skill))
}

// Create godoc
// @Summary Add a skill to the caller's record
// @Tags Skills
// @Accept json
// @Produce json
// @Param request body SkillRequest true "Skill"
// @Success 201 {object} SkillResponse
// @Failure 400 {object} FieldErrorsResponse
// @Router /api/skills [post]
func (h *SkillHandler) Create(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	req, ok := middleware.Model[SkillRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid skill payload"))
		return
	}

	skill, err := h.skills.AddSkill(c.Request.Context(), ident.UserID, req.skill())
	if err != nil {
		respondRecordError(c, err, "failed to add skill")
		return
	}
	c.JSON(http.StatusCreated, newSkillResponse(skill))
}

// Update applies a partial edit.
func (h *SkillHandler) Update(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	req, ok := middleware.Model[SkillPatchRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid skill payload"))
		return
	}

	skill, err := h.skills.UpdateSkill(c.Request.Context(), ident, c.Param("id"), req.patch())
	if err != nil {
		respondRecordError(c, err, "failed to update skill")
		return
	}
	c.JSON(http.StatusOK, newSkillResponse(skill))
}

// Delete removes a skill.
func (h *SkillHandler) Delete(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	if err := h.skills.DeleteSkill(c.Request.Context(), ident, c.Param("id")); err != nil {
		respondRecordError(c, err, "failed to delete skill")
		return
	}
	c.Status(http.StatusNoContent)
}

// Import adds several skills to the caller's record in one atomic write.
func (h *SkillHandler) Import(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	req, ok := middleware.Model[ImportSkillsRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid import payload"))
		return
	}

	input := make([]domain.Skill, 0, len(req.Skills))
	for _, s := range req.Skills {
		input = append(input, s.skill())
	}
	imported, err := h.skills.ImportSkills(c.Request.Context(), ident.UserID, input)
	if err != nil {
		respondRecordError(c, err, "failed to import skills")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(imported), "skills": newSkillResponses(imported)})
}
