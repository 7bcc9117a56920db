package handlers

import (
	"errors"
	"net/http"

	"WarrenBot/internal/operations/snapshot"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	CodeDataMissing     = "data_missing"
	CodeDataError       = "data_error"
	CodeRefreshFailed   = "refresh_failed"
	CodeSnapshotsFailed = "snapshots_failed"
	CodeInternal        = "error"
)

func abortWithError(c *gin.Context, status int, code, message string, details map[string]any) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeError maps service errors onto status codes.
func writeError(c *gin.Context, err error) {
	var (
		missing    *snapshot.DataMissingError
		dataErr    *snapshot.DataError
		refreshErr *snapshot.RefreshFailedError
		snapErr    *snapshot.SnapshotsFailedError
	)

	switch {
	case errors.As(err, &missing):
		abortWithError(c, http.StatusServiceUnavailable, CodeDataMissing, err.Error(), map[string]any{
			"resource": missing.Resource,
			"symbol":   missing.Symbol,
			"interval": missing.Interval,
		})
	case errors.As(err, &dataErr):
		abortWithError(c, http.StatusUnprocessableEntity, CodeDataError, dataErr.Message, nil)
	case errors.As(err, &refreshErr):
		abortWithError(c, http.StatusServiceUnavailable, CodeRefreshFailed, err.Error(), map[string]any{
			"refresh": refreshErr.Result,
		})
	case errors.As(err, &snapErr):
		abortWithError(c, http.StatusServiceUnavailable, CodeSnapshotsFailed, err.Error(), map[string]any{
			"errors":  snapErr.Errors,
			"refresh": snapErr.Refresh,
		})
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
	}
}
