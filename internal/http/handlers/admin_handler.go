// Administration HTTP handlers: personas, runtime settings, read-only SQL
// and dependency health.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/services"
)

// PersonaRequest is the payload for creating or updating a persona. On
// update, omitted fields keep their value.
type PersonaRequest struct {
	Name         *string `json:"name" example:"Support agent"`
	Description  *string `json:"description" example:"Answers product questions"`
	SystemPrompt *string `json:"system_prompt" example:"You are a concise support agent."`
	IsDefault    *bool   `json:"is_default" example:"false"`
}

func (r PersonaRequest) input() services.PersonaInput {
	return services.PersonaInput{
		Name:         r.Name,
		Description:  r.Description,
		SystemPrompt: r.SystemPrompt,
		IsDefault:    r.IsDefault,
	}
}

// SettingUpdateRequest sets a new value for a setting.
type SettingUpdateRequest struct {
	Value *string `json:"value" example:"0.35"`
}

// QueryRequest carries one read-only SQL statement.
type QueryRequest struct {
	SQL string `json:"sql" example:"SELECT filename, status FROM documents"`
}

// ListPersonas godoc
// @ID          listPersonas
// @Summary     List personas
// @Tags        Admin
// @Produce     json
// @Success     200  {array}  domain.Persona
// @Router      /admin/personas [get]
func (h *Handlers) ListPersonas(c *gin.Context) {
	items, err := h.personas.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Persona{}
	}
	ok(c, http.StatusOK, items)
}

// GetPersona godoc
// @ID          getPersona
// @Summary     Get a persona
// @Tags        Admin
// @Produce     json
// @Param       id   path  string  true  "Persona ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Persona
// @Failure     404  {object} handlers.ErrorResponse "Persona not found"
// @Router      /admin/personas/{id} [get]
func (h *Handlers) GetPersona(c *gin.Context) {
	p, err := h.personas.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// CreatePersona godoc
// @ID          createPersona
// @Summary     Create a persona
// @Description Creating a default persona clears the flag on every other persona.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.PersonaRequest  true  "Persona"
// @Success     201  {object} domain.Persona
// @Failure     409  {object} handlers.ErrorResponse "Name already exists"
// @Failure     422  {object} handlers.ErrorResponse "Missing name or prompt"
// @Router      /admin/personas [post]
func (h *Handlers) CreatePersona(c *gin.Context) {
	var req PersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.personas.Create(c.Request.Context(), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// UpdatePersona godoc
// @ID          updatePersona
// @Summary     Update a persona
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Persona ID (UUID)"  format(uuid)
// @Param       body  body  handlers.PersonaRequest  true  "Fields to change"
// @Success     200  {object} domain.Persona
// @Failure     404  {object} handlers.ErrorResponse "Persona not found"
// @Failure     409  {object} handlers.ErrorResponse "Name already exists"
// @Router      /admin/personas/{id} [put]
func (h *Handlers) UpdatePersona(c *gin.Context) {
	var req PersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.personas.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePersona godoc
// @ID          deletePersona
// @Summary     Delete a persona
// @Description Sessions using the persona fall back to the default prompt.
// @Tags        Admin
// @Produce     json
// @Param       id   path  string  true  "Persona ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.MessageResponse
// @Failure     404  {object} handlers.ErrorResponse "Persona not found"
// @Router      /admin/personas/{id} [delete]
func (h *Handlers) DeletePersona(c *gin.Context) {
	if err := h.personas.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Persona deleted"})
}

// ListSettings godoc
// @ID          listSettings
// @Summary     List settings
// @Tags        Admin
// @Produce     json
// @Success     200  {array}  domain.SystemSetting
// @Router      /admin/settings [get]
func (h *Handlers) ListSettings(c *gin.Context) {
	items, err := h.settings.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.SystemSetting{}
	}
	ok(c, http.StatusOK, items)
}

// UpdateSetting godoc
// @ID          updateSetting
// @Summary     Update a setting
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       key   path  string  true  "Setting key"  example(similarity_threshold)
// @Param       body  body  handlers.SettingUpdateRequest  true  "New value"
// @Success     200  {object} domain.SystemSetting
// @Failure     404  {object} handlers.ErrorResponse "Setting not found"
// @Router      /admin/settings/{key} [put]
func (h *Handlers) UpdateSetting(c *gin.Context) {
	var req SettingUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value required")
		return
	}
	s, err := h.settings.Update(c.Request.Context(), c.Param("key"), *req.Value)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}

// RunQuery godoc
// @ID          runQuery
// @Summary     Run a read-only SQL query
// @Description Statements that start with a write or DDL keyword are rejected; the rest run on a query-only connection.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.QueryRequest  true  "SQL"
// @Success     200  {object} repo.QueryResult
// @Failure     422  {object} handlers.ErrorResponse "Forbidden or failing query"
// @Router      /admin/db/query [post]
func (h *Handlers) RunQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.query.Run(c.Request.Context(), req.SQL)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// AdminHealth godoc
// @ID          adminHealth
// @Summary     Dependency health
// @Description Checks the database, every configured generator and the embedding model. Always 200; inspect the values.
// @Tags        Admin
// @Produce     json
// @Success     200  {object} map[string]string
// @Router      /admin/health [get]
func (h *Handlers) AdminHealth(c *gin.Context) {
	ok(c, http.StatusOK, h.health.Check(c.Request.Context()))
}
