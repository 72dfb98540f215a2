package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-backend/internal/search"
)

// SearchRequest is the payload of POST /search. Omitted knobs use the
// configured defaults.
type SearchRequest struct {
	Query     string   `json:"query" example:"How do I rotate the API key?"`
	TopK      *int     `json:"top_k,omitempty" example:"5"`
	Threshold *float64 `json:"threshold,omitempty" example:"0.3"`
}

// SearchResponse lists ranked chunks.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
	Total   int             `json:"total"`
}

// Search godoc
// @ID          searchChunks
// @Summary     Similarity search
// @Description Embeds the query and returns the most similar chunks of completed documents.
// @Tags        Search
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SearchRequest  true  "Search payload"
// @Success     200  {object} handlers.SearchResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     422  {object} handlers.ErrorResponse "Invalid query, top_k or threshold"
// @Failure     502  {object} handlers.ErrorResponse "Embedding backend failed"
// @Router      /search [post]
func (h *Handlers) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	results, err := h.search.Search(c.Request.Context(), req.Query, req.TopK, req.Threshold)
	if err != nil {
		failErr(c, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	ok(c, http.StatusOK, SearchResponse{Query: req.Query, Results: results, Total: len(results)})
}
