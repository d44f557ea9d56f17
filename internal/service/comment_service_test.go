package service_test

import (
	"testing"
	"time"

	"approvalflow/internal/model"
	"approvalflow/internal/service"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentsAreOrderedAndFiltered(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	add := func(author uuid.UUID, content string, internal bool) {
		t.Helper()
		_, err := h.comments.AddComment(h.ctx, req.ID, service.AddCommentDTO{Content: content, IsInternal: internal, AuthorID: author.String()})
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}
	add(h.requester, "ready for review", false)
	add(h.alice, "security team should look at this", true)
	add(h.bob, "looks good once CI is green", false)

	public, err := h.comments.ListComments(h.ctx, req.ID, false)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "ready for review", public[0].Content)
	assert.Equal(t, "looks good once CI is green", public[1].Content)

	all, err := h.comments.ListComments(h.ctx, req.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[1].IsInternal)

	// Comments do not touch decision state
	detail, err := h.approval.GetRequestDetail(h.ctx, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.Request.Version)
	assert.Equal(t, model.StatusPending, detail.Request.Status)
	assert.Len(t, detail.Comments, 3)

	logs, total, err := h.audit.GetAuditLogs(h.ctx, req.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, model.ActionAddComment, logs[0].Action)
}

func TestAddCommentValidation(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	_, err := h.comments.AddComment(h.ctx, req.ID, service.AddCommentDTO{Content: "  ", AuthorID: h.alice.String()})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = h.comments.AddComment(h.ctx, uuid.NewString(), service.AddCommentDTO{Content: "hello", AuthorID: h.alice.String()})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	_, err = h.comments.ListComments(h.ctx, uuid.NewString(), true)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestInternalCommentContentIsNotBroadcast(t *testing.T) {
	h := newHarness(t)
	req := h.twoLevel(t)

	created, err := h.comments.AddComment(h.ctx, req.ID, service.AddCommentDTO{
		Content: "secret reviewer note", IsInternal: true, AuthorID: h.alice.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "secret reviewer note", created.Content)

	_, err = h.comments.AddComment(h.ctx, req.ID, service.AddCommentDTO{Content: "public note", AuthorID: h.bob.String()})
	require.NoError(t, err)

	var payloads []service.CommentResponse
	h.events.mu.Lock()
	for _, e := range h.events.events {
		if e.event == service.EventCommentAdded {
			payloads = append(payloads, e.payload.(service.CommentResponse))
		}
	}
	h.events.mu.Unlock()

	require.Len(t, payloads, 2)
	assert.Equal(t, created.ID, payloads[0].ID)
	assert.Equal(t, req.ID, payloads[0].RequestID)
	assert.True(t, payloads[0].IsInternal)
	assert.Empty(t, payloads[0].Content)
	assert.Equal(t, "public note", payloads[1].Content)
}
