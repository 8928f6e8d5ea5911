package presenter

import (
	"github.com/google/uuid"

	"github.com/johnquangdev/meetingmind/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meetingmind/internal/domain/entities"
	"github.com/johnquangdev/meetingmind/internal/infrastructure/queue"
	aiuse "github.com/johnquangdev/meetingmind/internal/usecase/ai"
)

// ToStatusResponse converts a Meeting and its dead jobs to StatusResponse DTO
func ToStatusResponse(m *entities.Meeting, dead []queue.DeadLetter) *meeting.StatusResponse {
	if m == nil {
		return nil
	}

	resp := &meeting.StatusResponse{
		MeetingID:        m.ID.String(),
		Title:            m.Title,
		Status:           string(m.Status),
		TranscriptStatus: string(m.TranscriptStatus),
		AnalysisStatus:   string(m.AnalysisStatus),
		LastError:        m.LastError,
		DeadJobs:         make([]meeting.DeadJobResponse, 0),
		UpdatedAt:        m.UpdatedAt,
	}
	for _, d := range dead {
		if d.Job.MeetingID == m.ID {
			resp.DeadJobs = append(resp.DeadJobs, ToDeadJobResponse(d))
		}
	}
	return resp
}

// ToDeadJobResponse converts a dead letter to DeadJobResponse DTO
func ToDeadJobResponse(d queue.DeadLetter) meeting.DeadJobResponse {
	meetingID := ""
	if d.Job.MeetingID != uuid.Nil {
		meetingID = d.Job.MeetingID.String()
	}
	return meeting.DeadJobResponse{
		JobID:     d.Job.ID.String(),
		JobName:   string(d.Job.Name),
		MeetingID: meetingID,
		// attempt is zero based
		Attempts: d.Job.Attempt + 1,
		Reason:   d.Reason,
		FailedAt: d.FailedAt,
	}
}

// ToDeadJobListResponse converts dead letters to a list of DeadJobResponse
func ToDeadJobListResponse(dead []queue.DeadLetter) []meeting.DeadJobResponse {
	out := make([]meeting.DeadJobResponse, len(dead))
	for i, d := range dead {
		out[i] = ToDeadJobResponse(d)
	}
	return out
}

// ToEnqueueResponse converts a queued Job to EnqueueResponse DTO
func ToEnqueueResponse(job *entities.Job) *meeting.EnqueueResponse {
	return &meeting.EnqueueResponse{
		JobID:     job.ID.String(),
		JobName:   string(job.Name),
		MeetingID: job.MeetingID.String(),
		RunAt:     job.RunAt,
	}
}

// ToQuizResponse converts generated questions to QuizResponse DTO
func ToQuizResponse(meetingID uuid.UUID, questions []aiuse.QuizQuestion) *meeting.QuizResponse {
	resp := &meeting.QuizResponse{
		MeetingID: meetingID.String(),
		Questions: make([]meeting.QuizQuestionResponse, len(questions)),
	}
	for i, q := range questions {
		resp.Questions[i] = meeting.QuizQuestionResponse{
			Question:    q.Question,
			Type:        q.Type,
			Options:     q.Options,
			Answer:      q.Answer,
			Explanation: q.Explanation,
		}
	}
	return resp
}
