// Chat session HTTP handlers.
//
//   - POST   /chat/sessions        (create, idempotent)
//   - GET    /chat/sessions        (list, skip/limit, ETag support)
//   - GET    /chat/sessions/{id}   (detail with messages)
//   - PATCH  /chat/sessions/{id}   (rename)
//   - DELETE /chat/sessions/{id}
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-backend/internal/services"
)

// CreateSessionRequest is the payload for creating a session. All fields
// are optional.
type CreateSessionRequest struct {
	Title       string  `json:"title" example:"Onboarding questions"`
	PersonaID   *string `json:"persona_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	LLMProvider string  `json:"llm_provider" example:"ollama"`
}

// RenameSessionRequest is the payload for renaming a session.
type RenameSessionRequest struct {
	// Title is the new session name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Billing FAQ"`
}

// ListSessionsResponse wraps a page of sessions.
type ListSessionsResponse struct {
	Sessions   []domain.ChatSession `json:"sessions"`
	Pagination Pagination           `json:"pagination"`
}

// SessionDetail is a session with its messages in conversation order.
type SessionDetail struct {
	domain.ChatSession
	Messages []domain.ChatMessage `json:"messages"`
}

// CreateSession godoc
// @ID          createSession
// @Summary     Create a chat session
// @Description Creates a session bound to a generator backend and an optional persona. A repeated Idempotency-Key returns the first session.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key"
// @Param       body  body  handlers.CreateSessionRequest  false  "Session options"
// @Success     201  {object} domain.ChatSession
// @Success     200  {object} domain.ChatSession "Replayed"
// @Failure     400  {object} handlers.ErrorResponse "Unknown provider"
// @Failure     404  {object} handlers.ErrorResponse "Persona not found"
// @Router      /chat/sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	key, _ := middleware.GetIdempotencyKey(c)
	sess, replayed, err := h.sessions.Create(c.Request.Context(), services.CreateSessionInput{
		Title:       strings.TrimSpace(req.Title),
		PersonaID:   req.PersonaID,
		LLMProvider: strings.TrimSpace(req.LLMProvider),
	}, key)
	if err != nil {
		failErr(c, err)
		return
	}
	markReplayed(c, replayed)
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	ok(c, status, sess)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List chat sessions
// @Description Returns sessions most recently active first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       skip           query   int     false "Rows to skip"   minimum(0) default(0)
// @Param       limit          query   int     false "Rows to return" minimum(1) maximum(100) default(50)
// @Success     200  {object} handlers.ListSessionsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Router      /chat/sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	skip, limit := clampWindow(c)
	if notModified(c, "sessions", h.sessions.Stats, skip, limit) {
		return
	}
	items, total, err := h.sessions.ListPage(c.Request.Context(), skip, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListSessionsResponse{
		Sessions: items,
		Pagination: Pagination{
			Skip:    skip,
			Limit:   limit,
			Total:   total,
			HasNext: int64(skip+len(items)) < total,
		},
	})
}

// GetSession godoc
// @ID          getSession
// @Summary     Get a chat session
// @Tags        Sessions
// @Produce     json
// @Param       id   path  string  true  "Session ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.SessionDetail
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /chat/sessions/{id} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	sess, msgs, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	ok(c, http.StatusOK, SessionDetail{ChatSession: *sess, Messages: msgs})
}

// RenameSession godoc
// @ID          renameSession
// @Summary     Rename a chat session
// @Description Sets the title explicitly; the session is no longer auto-titled.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Session ID (UUID)"  format(uuid)
// @Param       body  body  handlers.RenameSessionRequest  true  "New title"
// @Success     200  {object} domain.ChatSession
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /chat/sessions/{id} [patch]
func (h *Handlers) RenameSession(c *gin.Context) {
	var req RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}
	sess, err := h.sessions.Rename(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// DeleteSession godoc
// @ID          deleteSession
// @Summary     Delete a chat session
// @Tags        Sessions
// @Produce     json
// @Param       id   path  string  true  "Session ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.MessageResponse
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Router      /chat/sessions/{id} [delete]
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Session deleted"})
}
