package repository

import (
	"context"

	"approvalflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentRepository is append-only: there is deliberately no update or delete.
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	ListByRequest(ctx context.Context, requestID uuid.UUID, includeInternal bool) ([]model.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return GetDB(ctx, r.db).Create(comment).Error
}

func (r *commentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID, includeInternal bool) ([]model.Comment, error) {
	var comments []model.Comment
	query := GetDB(ctx, r.db).Where("request_id = ?", requestID)
	if !includeInternal {
		query = query.Where("is_internal = ?", false)
	}
	if err := query.Order("created_at ASC").Order("id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
