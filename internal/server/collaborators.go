package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
)

type createCollaboratorRequest struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	InvitedBy string `json:"invited_by"`
}

func (s *Server) CreateCollaborator(c *gin.Context) {
	eventID := strings.TrimSpace(c.Param("event_id"))
	if eventID == "" {
		AbortWithError(c, domain.ErrInvalidEvent)
		return
	}

	var req createCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.collabSvc.Invite(c.Request.Context(), domain.InviteRequest{
		EventID:   eventID,
		Email:     strings.TrimSpace(req.Email),
		Role:      strings.TrimSpace(req.Role),
		InvitedBy: strings.TrimSpace(req.InvitedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// SendInvite renders and mails the invite. It never changes invite state.
func (s *Server) SendInvite(c *gin.Context) {
	inviteID := strings.TrimSpace(c.Param("id"))
	if inviteID == "" {
		AbortWithError(c, domain.ErrInviteNotFound)
		return
	}

	if err := s.issuer.Issue(c.Request.Context(), inviteID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
