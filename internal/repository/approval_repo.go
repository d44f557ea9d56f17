package repository

import (
	"context"
	"errors"
	"fmt"

	"approvalflow/internal/model"
	"approvalflow/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows List; zero values mean "any"
type RequestFilter struct {
	Status      string
	Type        string
	RequesterID *uuid.UUID
	ApproverID  *uuid.UUID
	Page        int
	Limit       int
}

// ApprovalRepository persists the request aggregate together with its approver chain
type ApprovalRepository interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]model.ApprovalRequest, int64, error)
	ListActive(ctx context.Context) ([]model.ApprovalRequest, error)
	// Update writes the aggregate only if its stored version still equals
	// expectedVersion, then sets req.Version to the new version.
	Update(ctx context.Context, req *model.ApprovalRequest, expectedVersion int64) error
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func preloadChain(db *gorm.DB) *gorm.DB {
	return db.Preload("Assignments", func(q *gorm.DB) *gorm.DB {
		return q.Order("level ASC")
	})
}

func (r *approvalRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	var req model.ApprovalRequest
	if err := preloadChain(GetDB(ctx, r.db)).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: approval request %s", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return &req, nil
}

func (r *approvalRepository) List(ctx context.Context, filter RequestFilter) ([]model.ApprovalRequest, int64, error) {
	var requests []model.ApprovalRequest
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if filter.RequesterID != nil {
			q = q.Where("requester_id = ?", *filter.RequesterID)
		}
		if filter.ApproverID != nil {
			q = q.Where("id IN (?)", db.Model(&model.ApproverAssignment{}).
				Select("request_id").Where("approver_id = ?", *filter.ApproverID))
		}
		return q
	}

	if err := db.Model(&model.ApprovalRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := preloadChain(db).Scopes(scope).
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// ListActive is a plain snapshot read with no row locks, used by the monitor.
func (r *approvalRepository) ListActive(ctx context.Context) ([]model.ApprovalRequest, error) {
	var requests []model.ApprovalRequest
	if err := preloadChain(GetDB(ctx, r.db)).
		Where("status IN ?", []string{model.StatusPending, model.StatusInReview}).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *approvalRepository) Update(ctx context.Context, req *model.ApprovalRequest, expectedVersion int64) error {
	db := GetDB(ctx, r.db)

	res := db.Model(&model.ApprovalRequest{}).
		Where("id = ? AND version = ?", req.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":      req.Status,
			"consumed_at": req.ConsumedAt,
			"version":     expectedVersion + 1,
			"updated_at":  req.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: approval request %s changed since version %d", workflow.ErrConflict, req.ID, expectedVersion)
	}

	for i := range req.Assignments {
		if err := db.Omit(clause.Associations).Save(&req.Assignments[i]).Error; err != nil {
			return fmt.Errorf("failed to save assignment level %d: %w", req.Assignments[i].Level, err)
		}
	}

	req.Version = expectedVersion + 1
	return nil
}
