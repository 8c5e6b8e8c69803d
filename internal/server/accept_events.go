package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventcrew/internal/collab/acceptance"
)

const defaultHeartbeat = 15 * time.Second

// StreamAcceptPage streams snapshot and navigate events of a mounted page.
// The stream ends when the page is unmounted.
func (s *Server) StreamAcceptPage(c *gin.Context) {
	flow, err := s.pages.Lookup(clientIDFrom(c), tokenParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	watch := flow.Watch()
	defer watch.Close()

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watch.Events():
			if !ok {
				_, _ = io.WriteString(writer, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if err := writePageEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writePageEvent(w io.Writer, event acceptance.PageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
