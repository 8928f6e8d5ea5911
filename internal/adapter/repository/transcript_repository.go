package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	repo "github.com/johnquangdev/meetingmind/internal/domain/repositories"
)

// TranscriptRepository handles transcript segment persistence
type TranscriptRepository struct {
	db *gorm.DB
}

var _ repo.TranscriptRepository = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// ReplaceForMeeting deletes rows left by an earlier attempt and inserts segments
func (r *TranscriptRepository) ReplaceForMeeting(ctx context.Context, meetingID uuid.UUID, segments []*entities.Transcript) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", meetingID).Delete(&entities.Transcript{}).Error; err != nil {
			return err
		}
		if len(segments) == 0 {
			return nil
		}
		return tx.CreateInBatches(segments, 500).Error
	})
}

// ListByMeeting returns a meeting's segments ordered by start time, then insertion order
func (r *TranscriptRepository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*entities.Transcript, error) {
	var segments []*entities.Transcript
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("start_time ASC").
		Order("sequence ASC").
		Find(&segments).Error; err != nil {
		return nil, err
	}
	return segments, nil
}
