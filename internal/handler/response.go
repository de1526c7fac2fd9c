package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gstrecon/internal/domain"
	"gstrecon/internal/middleware"
)

var errorLog logrus.FieldLogger = logrus.StandardLogger()

// SetErrorLogger sets the logger HandleError reports internal errors to.
func SetErrorLogger(log logrus.FieldLogger) {
	errorLog = log
}

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound, "RUN_NOT_FOUND", "reconciliation run not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrInvalidExportFormat):
		return http.StatusBadRequest, "INVALID_EXPORT_FORMAT", "unsupported export format; allowed: csv, xlsx"
	case errors.Is(err, domain.ErrArchiveDisabled):
		return http.StatusNotImplemented, "ARCHIVE_DISABLED", "report archiving is not configured"
	case errors.Is(err, domain.ErrReportNotArchived):
		return http.StatusNotFound, "REPORT_NOT_ARCHIVED", "no archived report for this run"
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict, "RUN_IN_PROGRESS", "an identical batch is already being reconciled"
	case errors.Is(err, domain.ErrBatchTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE", "batch exceeds maximum allowed size"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "RUN_TIMEOUT", "reconciliation did not finish in time"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		errorLog.WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.RequestIDKey),
			"path":       c.FullPath(),
		}).Errorf("internal error: %v", err)
	}
	RespondError(c, status, code, msg)
}
