package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventcrew/internal/identity"
	"go.uber.org/zap"
)

type sessionEventRequest struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
	Type     string `json:"type"`
}

// RelaySessionEvent records a sign-in or sign-out reported by the identity
// provider bridge and notifies the client's open pages.
func (s *Server) RelaySessionEvent(c *gin.Context) {
	var req sessionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	typ, err := identity.ParseEventType(req.Type)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.identity.Apply(req.ClientID, req.UserID, typ)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.log.Debug("session event relayed",
		zap.String("client_id", event.ClientID),
		zap.String("type", string(event.Type)),
	)

	c.Status(http.StatusAccepted)
}
