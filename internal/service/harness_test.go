package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"approvalflow/internal/clock"
	"approvalflow/internal/directory"
	"approvalflow/internal/model"
	"approvalflow/internal/repository/memory"
	"approvalflow/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type published struct {
	event   string
	payload interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload})
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

type harness struct {
	ctx      context.Context
	store    *memory.Store
	clock    *clock.Manual
	events   *recorder
	approval service.ApprovalService
	comments service.CommentService
	monitor  service.MonitorService
	audit    service.AuditService
	deps     service.ApprovalDeps

	requester uuid.UUID
	alice     uuid.UUID // reviewer
	bob       uuid.UUID // reviewer
	carol     uuid.UUID // reviewer, never in a chain
	dave      uuid.UUID // deactivated reviewer
	eve       uuid.UUID // engineer, cannot decide
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:       context.Background(),
		store:     memory.New(),
		clock:     clock.NewManual(t0),
		events:    &recorder{},
		requester: uuid.New(),
		alice:     uuid.New(),
		bob:       uuid.New(),
		carol:     uuid.New(),
		dave:      uuid.New(),
		eve:       uuid.New(),
	}

	reviewer := []string{model.PermApprovalsRead, model.PermApprovalsDecide}
	dir := directory.Static{
		h.alice: {ID: h.alice, Username: "alice", Role: model.RoleReviewer, Active: true, Permissions: reviewer},
		h.bob:   {ID: h.bob, Username: "bob", Role: model.RoleReviewer, Active: true, Permissions: reviewer},
		h.carol: {ID: h.carol, Username: "carol", Role: model.RoleReviewer, Active: true, Permissions: reviewer},
		h.dave:  {ID: h.dave, Username: "dave", Role: model.RoleReviewer, Active: false, Permissions: reviewer},
		h.eve:   {ID: h.eve, Username: "eve", Role: model.RoleEngineer, Active: true, Permissions: []string{model.PermApprovalsRead}},
	}

	deps := service.ApprovalDeps{
		Requests:  h.store.Approvals(),
		Comments:  h.store.Comments(),
		Audit:     h.store.Audit(),
		Tx:        h.store,
		Directory: dir,
		Clock:     h.clock,
		Events:    h.events,
	}
	h.deps = deps
	h.approval = service.NewApprovalService(deps)
	h.comments = service.NewCommentService(deps)
	h.audit = service.NewAuditService(h.store.Audit())
	h.monitor = service.NewMonitorService(service.MonitorDeps{
		Requests: h.store.Approvals(),
		Clock:    h.clock,
		Events:   h.events,
	})
	return h
}

func approver(id uuid.UUID, level int, timeoutHours float64) service.ApproverInput {
	return service.ApproverInput{ApproverID: id.String(), Level: level, TimeoutHours: timeoutHours}
}

// create submits a request with the given chain and fails the test on error
func (h *harness) create(t *testing.T, chain ...service.ApproverInput) service.ApprovalRequestResponse {
	t.Helper()
	resp, err := h.approval.CreateRequest(h.ctx, service.CreateApprovalRequestDTO{
		Title:       "Deploy payments service v2",
		Type:        model.RequestTypeSolutionDeployment,
		Priority:    model.PriorityHigh,
		Approvers:   chain,
		RequesterID: h.requester.String(),
	})
	require.NoError(t, err)
	return resp
}

// twoLevel creates alice at level 1 and bob at level 2
func (h *harness) twoLevel(t *testing.T) service.ApprovalRequestResponse {
	t.Helper()
	return h.create(t, approver(h.alice, 1, 8), approver(h.bob, 2, 8))
}

func (h *harness) respond(id string, who uuid.UUID, action string) (service.ApprovalRequestResponse, error) {
	return h.approval.Respond(h.ctx, id, who.String(), service.RespondDTO{Action: action})
}

func strPtr(s string) *string { return &s }
