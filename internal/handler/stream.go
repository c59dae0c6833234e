package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"scanbridge/internal/notifier"
)

// StreamHandler serves the authenticated fallback event stream. Each client
// gets its own notifier loop; the loop ends on disconnect or when the
// runtime budget is spent, after which the client reconnects.
type StreamHandler struct {
	Notifier *notifier.Notifier
}

type sseSink struct {
	w gin.ResponseWriter
}

func (s *sseSink) Event(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (s *sseSink) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (h *StreamHandler) Serve(c *gin.Context) {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// Run returns when the client goes away, ctx is cancelled, or the
	// stream's lifetime budget is spent; none of those are reportable to
	// the client anymore.
	_ = h.Notifier.Run(c.Request.Context(), &sseSink{w: c.Writer})
}
