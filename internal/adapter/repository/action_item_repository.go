package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	repo "github.com/johnquangdev/meetingmind/internal/domain/repositories"
)

// ActionItemRepository handles action item reads
type ActionItemRepository struct {
	db *gorm.DB
}

var _ repo.ActionItemRepository = (*ActionItemRepository)(nil)

// NewActionItemRepository creates a new action item repository
func NewActionItemRepository(db *gorm.DB) *ActionItemRepository {
	return &ActionItemRepository{db: db}
}

// ListByMeeting returns up to limit action items, highest priority first
func (r *ActionItemRepository) ListByMeeting(ctx context.Context, meetingID uuid.UUID, limit int) ([]*entities.ActionItem, error) {
	query := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []*entities.ActionItem
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
