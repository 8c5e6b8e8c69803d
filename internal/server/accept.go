package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventcrew/internal/collab/acceptance"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"go.uber.org/zap"
)

// OpenAcceptPage mounts the client's page for the token and runs the
// initial load. Reopening the same page returns its current snapshot.
func (s *Server) OpenAcceptPage(c *gin.Context) {
	flow, err := s.pages.Open(clientIDFrom(c), tokenParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshot, err := flow.Load(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

func (s *Server) DeclineInvite(c *gin.Context) {
	flow, err := s.pages.Lookup(clientIDFrom(c), tokenParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshot, err := flow.Decline(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrInviteAlreadyResolved) || errors.Is(err, acceptance.ErrActionNotAllowed) {
			s.log.Info("decline refused",
				zap.String("client_id", flow.ClientID()),
				zap.String("step", string(snapshot.Step)),
			)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// AcceptInvite returns where the browser goes next. Signed-out clients are
// sent to sign-in and come back through the page's listener.
func (s *Server) AcceptInvite(c *gin.Context) {
	flow, err := s.pages.Lookup(clientIDFrom(c), tokenParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	nav, err := flow.Accept(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": nav})
}

func (s *Server) CloseAcceptPage(c *gin.Context) {
	if err := s.pages.Close(clientIDFrom(c), tokenParam(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func tokenParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("token"))
}
