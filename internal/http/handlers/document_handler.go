// Document HTTP handlers.
//
// This file exposes REST endpoints for documents:
//   - POST   /documents/upload          (multipart, idempotent)
//   - GET    /documents                 (list, skip/limit, ETag support)
//   - GET    /documents/{id}            (detail with chunks)
//   - DELETE /documents/{id}
//   - POST   /documents/{id}/reprocess
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-backend/internal/services"
)

// formFiles is the multipart field carrying uploads.
const formFiles = "files"

// ListDocumentsResponse wraps a page of documents.
type ListDocumentsResponse struct {
	Documents  []domain.Document `json:"documents"`
	Pagination Pagination        `json:"pagination"`
}

// DocumentDetail is a document together with its chunks in index order.
type DocumentDetail struct {
	domain.Document
	Chunks []domain.Chunk `json:"chunks"`
}

// MessageResponse acknowledges a deletion.
type MessageResponse struct {
	Message string `json:"message" example:"Document deleted"`
}

func uploadsOf(headers []*multipart.FileHeader) []services.Upload {
	out := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		out = append(out, services.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return out
}

// UploadDocuments godoc
// @ID          uploadDocuments
// @Summary     Upload documents
// @Description Stores one or more txt, pdf or md files and queues them for ingestion. A repeated Idempotency-Key returns the documents of the first request.
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       Idempotency-Key  header    string  false "Idempotency key"  example(upload-7f3c)
// @Param       files            formData  file    true  "Files to ingest"
//
// @Success     201  {array}   domain.Document
// @Success     200  {array}   domain.Document "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse "Unsupported file type or bad form"
// @Failure     413  {object}  handlers.ErrorResponse "Upload too large"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /documents/upload [post]
func (h *Handlers) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart form with field \"files\" required")
		return
	}
	headers := form.File[formFiles]
	if len(headers) == 0 {
		failErr(c, services.ErrNoFiles)
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	docs, replayed, err := h.docs.Upload(c.Request.Context(), uploadsOf(headers), key)
	if err != nil {
		failErr(c, err)
		return
	}
	markReplayed(c, replayed)
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	ok(c, status, docs)
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List documents
// @Description Returns documents newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Documents
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       skip           query   int     false "Rows to skip"   minimum(0) default(0)
// @Param       limit          query   int     false "Rows to return" minimum(1) maximum(100) default(50)
//
// @Success     200  {object} handlers.ListDocumentsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	skip, limit := clampWindow(c)
	if notModified(c, "documents", h.docs.Stats, skip, limit) {
		return
	}
	items, total, err := h.docs.ListPage(c.Request.Context(), skip, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListDocumentsResponse{
		Documents: items,
		Pagination: Pagination{
			Skip:    skip,
			Limit:   limit,
			Total:   total,
			HasNext: int64(skip+len(items)) < total,
		},
	})
}

// GetDocument godoc
// @ID          getDocument
// @Summary     Get a document
// @Tags        Documents
// @Produce     json
// @Param       id   path  string  true  "Document ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.DocumentDetail
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Router      /documents/{id} [get]
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, chunks, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	ok(c, http.StatusOK, DocumentDetail{Document: *doc, Chunks: chunks})
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Description Removes the stored upload and the document; chunks go with it.
// @Tags        Documents
// @Produce     json
// @Param       id   path  string  true  "Document ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.MessageResponse
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	if err := h.docs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Document deleted"})
}

// ReprocessDocument godoc
// @ID          reprocessDocument
// @Summary     Reprocess a document
// @Description Resets the document to pending and queues it again. Rejected while an ingestion of the same document runs.
// @Tags        Documents
// @Produce     json
// @Param       id   path  string  true  "Document ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Document
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     409  {object} handlers.ErrorResponse "Ingestion already running"
// @Router      /documents/{id}/reprocess [post]
func (h *Handlers) ReprocessDocument(c *gin.Context) {
	doc, err := h.docs.Reprocess(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, doc)
}
