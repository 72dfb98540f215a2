// Package handlers implements the HTTP endpoints of the API.
//
// This file holds the stable error codes of the error envelope and the
// mapping from service error kinds to HTTP statuses.
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "session not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeValidation       = "validation_error"
	ErrCodeUnsupportedInput = "unsupported_input"
	ErrCodeExtractionEmpty  = "extraction_empty"
	ErrCodeUpstream         = "upstream_failure"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// statusOf maps a service error to status and code.
func statusOf(err error) (int, string) {
	switch services.KindOf(err) {
	case services.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case services.KindUnsupportedInput:
		return http.StatusBadRequest, ErrCodeUnsupportedInput
	case services.KindValidation:
		return http.StatusUnprocessableEntity, ErrCodeValidation
	case services.KindExtractionEmpty:
		return http.StatusUnprocessableEntity, ErrCodeExtractionEmpty
	case services.KindConflict:
		return http.StatusConflict, ErrCodeConflict
	case services.KindUpstreamFailure:
		return http.StatusBadGateway, ErrCodeUpstream
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// failErr writes the envelope for a service error. Internal errors are not
// echoed to the client.
func failErr(c *gin.Context, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	fail(c, status, code, msg)
}
