package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/api/middleware"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

// ============================================
// Family Handler
// ============================================

type FamilyHandler struct {
	familyService service.FamilyService
}

type createGroupRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Settings    *models.GroupSettings `json:"settings"`
}

func (h *FamilyHandler) Create(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	group, err := h.familyService.CreateGroup(c.Request.Context(), principal, req.Name, req.Description, req.Settings)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, group)
}

func (h *FamilyHandler) MyGroups(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	groups, err := h.familyService.ListMyGroups(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, groups)
}

func (h *FamilyHandler) Get(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	group, err := h.familyService.GetGroup(c.Request.Context(), principal, c.Param("group_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, group)
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Settings    *struct {
		MaxMembers         *int  `json:"max_members"`
		AllowMemberInvites *bool `json:"allowMemberInvites"`
	} `json:"settings"`
}

func (h *FamilyHandler) Update(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	patch := service.UpdateGroupInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Settings != nil {
		patch.MaxMembers = req.Settings.MaxMembers
		patch.AllowMemberInvites = req.Settings.AllowMemberInvites
	}

	group, err := h.familyService.UpdateSettings(c.Request.Context(), principal, c.Param("group_id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, group)
}

type inviteRequest struct {
	Email string           `json:"email"`
	Role  models.GroupRole `json:"role"`
}

func (h *FamilyHandler) Invite(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	invitation, err := h.familyService.Invite(c.Request.Context(), principal, c.Param("group_id"), req.Email, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, invitation)
}

func (h *FamilyHandler) Accept(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	group, err := h.familyService.Accept(c.Request.Context(), principal, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, group)
}

func (h *FamilyHandler) Reject(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	if err := h.familyService.Reject(c.Request.Context(), principal, c.Param("token")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": "rejected"})
}

func (h *FamilyHandler) CancelInvitation(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	err := h.familyService.CancelInvitation(c.Request.Context(), principal, c.Param("group_id"), c.Param("invitation_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *FamilyHandler) ResendInvitation(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	invitation, err := h.familyService.ResendInvitation(c.Request.Context(), principal, c.Param("group_id"), c.Param("invitation_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, invitation)
}

func (h *FamilyHandler) PendingInvitations(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	inbox, err := h.familyService.PendingInvitations(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, inbox)
}

func (h *FamilyHandler) RemoveMember(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	err := h.familyService.RemoveMember(c.Request.Context(), principal, c.Param("group_id"), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": "removed"})
}

type updateRoleRequest struct {
	Role models.GroupRole `json:"role"`
}

func (h *FamilyHandler) UpdateRole(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	err := h.familyService.UpdateRole(c.Request.Context(), principal, c.Param("group_id"), c.Param("user_id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": "updated"})
}

func (h *FamilyHandler) Archive(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	if err := h.familyService.Archive(c.Request.Context(), principal, c.Param("group_id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": "archived"})
}
