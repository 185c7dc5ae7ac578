package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"photovault/internal/models"
	"photovault/internal/repository"
	"photovault/internal/service"
)

func (h HandlerSet) AdminListImages(c *gin.Context) {
	page, perPage := pageParams(c)
	views, err := h.images.ListAll(c.Request.Context(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("admin list images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, v := range views {
		items = append(items, gin.H{
			"userId": v.Image.UserID,
			"image":  toImageResponse(v),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit, offset := service.Paginate(pageParams(c))
	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("admin list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type updateStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required"`
}

// AdminUpdateUserStatus suspends or reactivates a user. Suspension also
// revokes every session.
func (h HandlerSet) AdminUpdateUserStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	id := c.Param("id")
	if id == actor.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_change_self"})
		return
	}

	if err := h.users.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", id).Msg("update user status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	if req.Status == models.UserStatusSuspended {
		if err := h.sessions.DeleteByUser(c.Request.Context(), id); err != nil {
			h.log.Error().Err(err).Str("user_id", id).Msg("revoke sessions failed")
		}
	}

	h.log.Info().Str("user_id", id).Str("actor_id", actor.ID).Str("status", string(req.Status)).Msg("user status changed")
	c.Status(http.StatusNoContent)
}

type createInviteRequest struct {
	Code           string `json:"code"`
	MaxUses        int    `json:"maxUses"`
	ExpiresInHours int    `json:"expiresInHours"`
}

type inviteResponse struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	MaxUses   int        `json:"maxUses"`
	UsedCount int        `json:"usedCount"`
	ExpiresAt *time.Time `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toInviteResponse(invite models.InviteCode) inviteResponse {
	return inviteResponse{
		ID:        invite.ID,
		Code:      invite.Code,
		MaxUses:   invite.MaxUses,
		UsedCount: invite.UsedCount,
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
	}
}

func (h HandlerSet) AdminCreateInvite(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	invite, err := h.invites.Create(c.Request.Context(), actor, service.CreateInviteInput{
		Code:    req.Code,
		MaxUses: req.MaxUses,
		TTL:     time.Duration(req.ExpiresInHours) * time.Hour,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidInvite) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_invite"})
			return
		}
		h.log.Error().Err(err).Msg("create invite failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"invite": toInviteResponse(invite)})
}

func (h HandlerSet) AdminListInvites(c *gin.Context) {
	page, perPage := pageParams(c)
	invites, err := h.invites.List(c.Request.Context(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("list invites failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	items := make([]inviteResponse, 0, len(invites))
	for _, inv := range invites {
		items = append(items, toInviteResponse(inv))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
