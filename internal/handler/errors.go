package handler

import (
	"net/http"

	"approvalflow/internal/workflow"
	"approvalflow/pkg/response"

	"github.com/gin-gonic/gin"
)

var statusByKind = map[string]int{
	"validation":         http.StatusBadRequest,
	"not_found":          http.StatusNotFound,
	"not_owner":          http.StatusForbidden,
	"conflict":           http.StatusConflict,
	"not_active":         http.StatusUnprocessableEntity,
	"already_decided":    http.StatusUnprocessableEntity,
	"invalid_state":      http.StatusUnprocessableEntity,
	"irreversible_state": http.StatusUnprocessableEntity,
	"window_expired":     http.StatusUnprocessableEntity,
}

// statusFor maps an engine error to its HTTP status
func statusFor(err error) int {
	if status, ok := statusByKind[workflow.Kind(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// abortWithError writes the error envelope for err. Internal errors are not
// echoed to the client.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	kind := workflow.Kind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "Internal server error"
	}
	if workflow.Retryable(err) {
		c.Header("Retry-After", "0")
	}
	c.AbortWithStatusJSON(status, response.ErrorWithCode(status, kind, msg))
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "validation", "Invalid request payload: "+err.Error()))
}
