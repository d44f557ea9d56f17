package service

import (
	"context"
	"testing"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAuditRejectsUnencodableDetails(t *testing.T) {
	store := memory.New()
	approval := &model.ApprovalRequest{ID: uuid.New(), Title: "Rotate signing keys"}

	err := recordAudit(context.Background(), store.Audit(), time.Now(), nil, model.ActionAddComment, approval,
		map[string]interface{}{"callback": func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode audit details")

	_, total, err := store.Audit().List(context.Background(), approval.ID.String(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}
