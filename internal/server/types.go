package server

import (
	"time"

	"podium/internal/session"
	"podium/internal/store"
)

// RecordingView is the wire representation of a recording.
type RecordingView struct {
	ID            string    `json:"id"`
	UserRef       string    `json:"user_ref"`
	SessionToken  string    `json:"session_token,omitempty"`
	Question      string    `json:"question,omitempty"`
	Scenario      string    `json:"scenario,omitempty"`
	Status        string    `json:"status"`
	Duration      float64   `json:"duration,omitempty"`
	MinDuration   float64   `json:"min_duration,omitempty"`
	MaxDuration   float64   `json:"max_duration,omitempty"`
	ReferenceRef  string    `json:"reference_ref,omitempty"`
	ReferenceType string    `json:"reference_type,omitempty"`
	SizeBytes     int64     `json:"size_bytes,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func recordingView(rec *store.Recording) RecordingView {
	return RecordingView{
		ID:            rec.ID,
		UserRef:       rec.UserRef,
		SessionToken:  rec.SessionToken,
		Question:      rec.Question,
		Scenario:      rec.Scenario,
		Status:        string(rec.Status),
		Duration:      rec.Duration,
		MinDuration:   rec.MinDuration,
		MaxDuration:   rec.MaxDuration,
		ReferenceRef:  rec.ReferenceRef,
		ReferenceType: rec.ReferenceType,
		SizeBytes:     rec.SizeBytes,
		Error:         rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// StatusResponse is the polling payload: the status plus whichever artifacts
// exist so far.
type StatusResponse struct {
	Recording  RecordingView         `json:"recording"`
	Transcript *store.Transcript     `json:"transcript,omitempty"`
	Report     *store.FeedbackReport `json:"report,omitempty"`
}

// OutcomeResponse reports a processing run.
type OutcomeResponse struct {
	Transcript *store.Transcript     `json:"transcript,omitempty"`
	Report     *store.FeedbackReport `json:"report,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// SessionMemberView is one recording inside a session view.
type SessionMemberView struct {
	Position  int                   `json:"position"`
	Recording RecordingView         `json:"recording"`
	Report    *store.FeedbackReport `json:"report,omitempty"`
}

// SessionResponse is the aggregated session payload.
type SessionResponse struct {
	Token          string              `json:"token"`
	Members        []SessionMemberView `json:"members"`
	Representative RecordingView       `json:"representative"`
	Aggregate      *int                `json:"aggregate,omitempty"`
}

func sessionResponse(view *session.View) SessionResponse {
	members := make([]SessionMemberView, len(view.Members))
	for i, member := range view.Members {
		members[i] = SessionMemberView{
			Position:  member.Position,
			Recording: recordingView(member.Recording),
			Report:    member.Report,
		}
	}
	return SessionResponse{
		Token:          view.Token,
		Members:        members,
		Representative: recordingView(view.Representative),
		Aggregate:      view.Aggregate,
	}
}

// QuestionsRequest asks for generated interview questions.
type QuestionsRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// QuestionsResponse carries the generated questions.
type QuestionsResponse struct {
	Questions []string `json:"questions"`
}

// ReferenceRequest uploads a reference document as opaque text.
type ReferenceRequest struct {
	UserRef string `json:"user_ref"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ReferenceResponse carries the stored document's identity.
type ReferenceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaResponse carries a signed temporary media URL.
type MediaResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// HealthResponse summarizes store counts and stage availability.
type HealthResponse struct {
	Healthy    bool            `json:"healthy"`
	Recordings map[string]int  `json:"recordings"`
	Stages     map[string]bool `json:"stages"`
}
