package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextServiceKey = "service_caller"

// InternalTokenRequired authenticates organizer and internal callers with
// the configured internal API token.
func (s *Server) InternalTokenRequired() gin.HandlerFunc {
	return bearerTokenRequired("internal", s.cfg.InternalAPIToken)
}

// SessionRelayTokenRequired authenticates the identity provider bridge.
func (s *Server) SessionRelayTokenRequired() gin.HandlerFunc {
	return bearerTokenRequired("session_relay", s.cfg.SessionRelayToken)
}

// bearerTokenRequired rejects every request when expected is empty.
func bearerTokenRequired(caller, expected string) gin.HandlerFunc {
	expected = strings.TrimSpace(expected)
	want := sha256.Sum256([]byte(expected))

	return func(c *gin.Context) {
		if expected == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		got := sha256.Sum256([]byte(parts[1]))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextServiceKey, caller)
		c.Next()
	}
}
