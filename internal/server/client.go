package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/eventcrew/internal/config"
	obscontext "github.com/smallbiznis/eventcrew/internal/observability/context"
)

const (
	DefaultClientCookieName = "_cid"
	clientCookieMaxAge      = 365 * 24 * time.Hour
	contextClientIDKey      = "client_id"
)

// ClientManager issues the browser client context cookie. Pending-token
// markers and sign-in notifications are keyed by this id.
type ClientManager struct {
	cookieName string
	secure     bool
}

func NewClientManager(cfg config.Config) *ClientManager {
	return &ClientManager{
		cookieName: DefaultClientCookieName,
		secure:     cfg.AuthCookieSecure,
	}
}

func (m *ClientManager) CookieName() string {
	return m.cookieName
}

func (m *ClientManager) Read(c *gin.Context) (string, bool) {
	id, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (m *ClientManager) Set(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, id, int(clientCookieMaxAge.Seconds()), "/", "", m.secure, true)
}

// ClientContext resolves the client id, minting a cookie on first visit.
func (s *Server) ClientContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.clients.Read(c)
		if !ok {
			id = uuid.NewString()
			s.clients.Set(c, id)
		}

		c.Set(contextClientIDKey, id)
		c.Request = c.Request.WithContext(obscontext.WithClientID(c.Request.Context(), id))
		c.Next()
	}
}

func clientIDFrom(c *gin.Context) string {
	return c.GetString(contextClientIDKey)
}
