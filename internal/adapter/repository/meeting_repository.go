package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	repo "github.com/johnquangdev/meetingmind/internal/domain/repositories"
)

// MeetingRepository handles meeting state and analysis persistence
type MeetingRepository struct {
	db *gorm.DB
}

var _ repo.MeetingRepository = (*MeetingRepository)(nil)

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// CreateMeeting creates a new meeting
func (r *MeetingRepository) CreateMeeting(ctx context.Context, m *entities.Meeting) error {
	if m == nil {
		return errors.New("meeting cannot be nil")
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// GetMeeting retrieves a meeting by ID
func (r *MeetingRepository) GetMeeting(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&meeting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// UpdateTranscriptStatus sets transcript_status and last_error
func (r *MeetingRepository) UpdateTranscriptStatus(ctx context.Context, id uuid.UUID, status entities.StageStatus, lastErr *string) error {
	return r.updateStage(ctx, id, "transcript_status", status, lastErr)
}

// UpdateAnalysisStatus sets analysis_status and last_error
func (r *MeetingRepository) UpdateAnalysisStatus(ctx context.Context, id uuid.UUID, status entities.StageStatus, lastErr *string) error {
	return r.updateStage(ctx, id, "analysis_status", status, lastErr)
}

func (r *MeetingRepository) updateStage(ctx context.Context, id uuid.UUID, column string, status entities.StageStatus, lastErr *string) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid stage status %q", status)
	}
	return r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       status,
			"last_error": lastErr,
			"updated_at": time.Now(),
		}).Error
}

// UpdateMeetingStatus sets the lifecycle status
func (r *MeetingRepository) UpdateMeetingStatus(ctx context.Context, id uuid.UUID, status entities.MeetingStatus) error {
	return r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// MarkAnalysisProcessing claims the analysis stage; it only succeeds while the transcript is completed
func (r *MeetingRepository) MarkAnalysisProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ? AND transcript_status = ? AND analysis_status <> ?", id, entities.StageStatusCompleted, entities.StageStatusCompleted).
		Updates(map[string]interface{}{
			"analysis_status": entities.StageStatusProcessing,
			"last_error":      nil,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ResetStage moves a stage back to pending when its current status is one of from
func (r *MeetingRepository) ResetStage(ctx context.Context, id uuid.UUID, stage entities.Stage, from ...entities.StageStatus) (bool, error) {
	var column string
	switch stage {
	case entities.StageTranscription:
		column = "transcript_status"
	case entities.StageAnalysis:
		column = "analysis_status"
	default:
		return false, fmt.Errorf("stage %q cannot be reset", stage)
	}
	if len(from) == 0 {
		return false, nil
	}

	result := r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id = ?", id).
		Where(column+" IN ?", from).
		Updates(map[string]interface{}{
			column:       entities.StageStatusPending,
			"last_error": nil,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveAnalysis writes the analysis result and its action items in one transaction
func (r *MeetingRepository) SaveAnalysis(ctx context.Context, id uuid.UUID, result *entities.AnalysisResult) error {
	if result == nil {
		return errors.New("analysis result cannot be nil")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		score := result.Sentiment.Score
		update := tx.Model(&entities.Meeting{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"summary":         result.Summary,
				"key_topics":      datatypes.JSONSlice[string](result.KeyTopics),
				"sentiment_score": score,
				"sentiment_label": result.Sentiment.Label,
				"insights":        datatypes.NewJSONType(result.Insights()),
				"analysis_status": entities.StageStatusCompleted,
				"status":          entities.MeetingStatusCompleted,
				"last_error":      nil,
				"updated_at":      time.Now(),
			})
		if update.Error != nil {
			return fmt.Errorf("failed to update meeting: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			return entities.ErrMeetingNotFound
		}

		// A redelivered run replaces the items of an earlier attempt
		if err := tx.Where("meeting_id = ?", id).Delete(&entities.ActionItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear action items: %w", err)
		}

		if len(result.ActionItems) == 0 {
			return nil
		}
		items := make([]*entities.ActionItem, 0, len(result.ActionItems))
		for _, item := range result.ActionItems {
			items = append(items, entities.NewActionItem(id, item))
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create action items: %w", err)
		}
		return nil
	})
}

// RecentCompleted lists completed meetings with a summary, newest first
func (r *MeetingRepository) RecentCompleted(ctx context.Context, organizationID, excludeID uuid.UUID, limit int) ([]*entities.Meeting, error) {
	if limit <= 0 {
		limit = 3
	}
	var meetings []*entities.Meeting
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND id <> ?", organizationID, excludeID).
		Where("status = ? AND summary <> ''", entities.MeetingStatusCompleted).
		Order("created_at DESC").
		Limit(limit).
		Find(&meetings).Error; err != nil {
		return nil, err
	}
	return meetings, nil
}
