package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"approvalflow/internal/workflow"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{workflow.ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("%w: approval request x", workflow.ErrNotFound), http.StatusNotFound},
		{workflow.ErrNotOwner, http.StatusForbidden},
		{workflow.ErrConflict, http.StatusConflict},
		{workflow.ErrNotActive, http.StatusUnprocessableEntity},
		{workflow.ErrAlreadyDecided, http.StatusUnprocessableEntity},
		{workflow.ErrWindowExpired, http.StatusUnprocessableEntity},
		{workflow.ErrIrreversibleState, http.StatusUnprocessableEntity},
		{workflow.ErrInvalidState, http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
