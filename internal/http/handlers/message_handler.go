// Message streaming handler.
//
// POST /chat/sessions/{id}/messages answers with text/event-stream. Every
// generated fragment becomes one event; a multi-line fragment is sent as one
// "data:" line per line so clients reassemble it with newlines. A turn that
// completes ends with "data: [DONE]". Failures before the first fragment are
// returned as a JSON error envelope; later failures end the stream with an
// "error" event and no [DONE].
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const sseDone = "[DONE]"

// SendMessageRequest is the payload of a chat turn.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required" example:"What does the onboarding guide say about VPN access?"`
}

// sseWriter writes headers lazily so errors raised before the first token
// can still use a normal JSON response.
type sseWriter struct {
	c       *gin.Context
	started bool
}

func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true
	h := w.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.c.Status(http.StatusOK)
	w.c.Writer.WriteHeaderNow()
}

func (w *sseWriter) write(event, data string) error {
	w.start()
	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if _, err := w.c.Writer.WriteString(b.String()); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// token is the services.EmitFunc of a turn.
func (w *sseWriter) token(t string) error { return w.write("", t) }

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a chat message
// @Description Persists the user message, retrieves grounding chunks and streams the assistant reply as server-sent events terminated by [DONE].
// @Tags        Sessions
// @Accept      json
// @Produce     text/event-stream
// @Param       id    path  string  true  "Session ID (UUID)"  format(uuid)
// @Param       body  body  handlers.SendMessageRequest  true  "Message"
// @Success     200  {string} string "data: <token> frames, then data: [DONE]"
// @Failure     400  {object} handlers.ErrorResponse "Unknown provider"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     422  {object} handlers.ErrorResponse "Empty message"
// @Failure     502  {object} handlers.ErrorResponse "Retrieval or generation failed"
// @Router      /chat/sessions/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	ctx := c.Request.Context()
	sw := &sseWriter{c: c}
	_, err := h.chat.Send(ctx, c.Param("id"), req.Content, sw.token)
	switch {
	case err == nil:
		_ = sw.write("", sseDone)
	case ctx.Err() != nil:
		// client went away; nothing left to deliver
		c.Abort()
	case !sw.started:
		failErr(c, err)
	default:
		status, code := statusOf(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
			msg = "internal server error"
		}
		payload, _ := json.Marshal(ErrorResponse{
			RequestID: c.Writer.Header().Get("X-Request-ID"),
			Code:      code,
			Message:   msg,
		})
		_ = sw.write("error", string(payload))
		c.Abort()
	}
}
