package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"podium/internal/services"
)

// SaveTranscript persists the transcript artifact for a recording, replacing
// any previous one.
func (s *Store) SaveTranscript(ctx context.Context, transcript *Transcript) error {
	if transcript == nil {
		return errors.New("transcript is nil")
	}
	if transcript.RecordingID == "" {
		return errors.New("transcript recording id is empty")
	}
	wordsJSON, err := json.Marshal(transcript.Words)
	if err != nil {
		return fmt.Errorf("marshal words: %w", err)
	}
	metricsJSON, err := json.Marshal(transcript.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if transcript.CreatedAt.IsZero() {
		transcript.CreatedAt = time.Now().UTC()
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO transcripts (recording_id, text, words_json, duration, metrics_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(recording_id) DO UPDATE SET
             text = excluded.text, words_json = excluded.words_json,
             duration = excluded.duration, metrics_json = excluded.metrics_json,
             created_at = excluded.created_at`,
		transcript.RecordingID,
		transcript.Text,
		string(wordsJSON),
		transcript.Duration,
		string(metricsJSON),
		transcript.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// GetTranscript fetches the transcript for a recording. Returns nil when absent.
func (s *Store) GetTranscript(ctx context.Context, recordingID string) (*Transcript, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT recording_id, text, words_json, duration, metrics_json, created_at
         FROM transcripts WHERE recording_id = ?`,
		recordingID,
	)

	var (
		transcript  Transcript
		wordsJSON   string
		metricsJSON string
		createdRaw  string
	)
	err := row.Scan(&transcript.RecordingID, &transcript.Text, &wordsJSON, &transcript.Duration, &metricsJSON, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(wordsJSON), &transcript.Words); err != nil {
		return nil, fmt.Errorf("unmarshal words: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &transcript.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		transcript.CreatedAt = created
	}
	return &transcript, nil
}

// SaveReport persists the feedback report for a recording, replacing any
// previous one.
func (s *Store) SaveReport(ctx context.Context, report *FeedbackReport) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if report.RecordingID == "" {
		return errors.New("report recording id is empty")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO feedback_reports (recording_id, model, overall, report_json, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(recording_id) DO UPDATE SET
             model = excluded.model, overall = excluded.overall,
             report_json = excluded.report_json, created_at = excluded.created_at`,
		report.RecordingID,
		nullableString(report.Model),
		report.Overall,
		string(reportJSON),
		report.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport fetches the feedback report for a recording. Returns nil when absent.
func (s *Store) GetReport(ctx context.Context, recordingID string) (*FeedbackReport, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT report_json FROM feedback_reports WHERE recording_id = ?`,
		recordingID,
	)
	var reportJSON string
	err := row.Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	var report FeedbackReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// GetReports fetches feedback reports for a set of recordings in one query.
// The result maps recording id to report; absent reports have no entry.
func (s *Store) GetReports(ctx context.Context, recordingIDs []string) (map[string]*FeedbackReport, error) {
	reports := make(map[string]*FeedbackReport, len(recordingIDs))
	if len(recordingIDs) == 0 {
		return reports, nil
	}

	placeholders := makePlaceholders(len(recordingIDs))
	args := make([]any, len(recordingIDs))
	for i, id := range recordingIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT recording_id, report_json FROM feedback_reports WHERE recording_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get reports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, reportJSON string
		if err := rows.Scan(&id, &reportJSON); err != nil {
			return nil, err
		}
		var report FeedbackReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			return nil, fmt.Errorf("unmarshal report %s: %w", id, err)
		}
		reports[id] = &report
	}
	return reports, rows.Err()
}

// SaveBiometrics persists the biometric artifact for a recording. Series
// whose lengths disagree with the timestamp axis are rejected.
func (s *Store) SaveBiometrics(ctx context.Context, artifact *BiometricArtifact) error {
	if artifact == nil {
		return errors.New("artifact is nil")
	}
	if artifact.RecordingID == "" {
		return errors.New("artifact recording id is empty")
	}
	if !artifact.Aligned() {
		return services.Wrap(services.ErrValidation, "store", "save biometrics", "series lengths disagree with timestamp axis", nil)
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	seriesJSON, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal biometric series: %w", err)
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO biometric_artifacts (recording_id, series_json, sample_count, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(recording_id) DO UPDATE SET
             series_json = excluded.series_json, sample_count = excluded.sample_count,
             created_at = excluded.created_at`,
		artifact.RecordingID,
		string(seriesJSON),
		len(artifact.Timestamps),
		artifact.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save biometrics: %w", err)
	}
	return nil
}

// GetBiometrics fetches the biometric artifact for a recording. Returns nil when absent.
func (s *Store) GetBiometrics(ctx context.Context, recordingID string) (*BiometricArtifact, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT series_json FROM biometric_artifacts WHERE recording_id = ?`,
		recordingID,
	)
	var seriesJSON string
	err := row.Scan(&seriesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get biometrics: %w", err)
	}
	var artifact BiometricArtifact
	if err := json.Unmarshal([]byte(seriesJSON), &artifact); err != nil {
		return nil, fmt.Errorf("unmarshal biometric series: %w", err)
	}
	return &artifact, nil
}

// SaveReferenceDocument persists an uploaded reference document.
func (s *Store) SaveReferenceDocument(ctx context.Context, doc *ReferenceDocument) (*ReferenceDocument, error) {
	if doc == nil {
		return nil, errors.New("document is nil")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO reference_documents (id, user_ref, name, type, content, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID,
		nullableString(doc.UserRef),
		doc.Name,
		doc.Type,
		doc.Content,
		doc.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("save reference document: %w", err)
	}
	return doc, nil
}

// GetReferenceDocument fetches a reference document by id. Returns nil when absent.
func (s *Store) GetReferenceDocument(ctx context.Context, id string) (*ReferenceDocument, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_ref, name, type, content, created_at FROM reference_documents WHERE id = ?`,
		id,
	)
	var (
		doc        ReferenceDocument
		userRef    sql.NullString
		createdRaw string
	)
	err := row.Scan(&doc.ID, &userRef, &doc.Name, &doc.Type, &doc.Content, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reference document: %w", err)
	}
	doc.UserRef = userRef.String
	if created, err := parseTimeString(createdRaw); err == nil {
		doc.CreatedAt = created
	}
	return &doc, nil
}

// ListReferenceDocuments returns a user's reference documents newest first.
func (s *Store) ListReferenceDocuments(ctx context.Context, userRef string) ([]*ReferenceDocument, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_ref, name, type, content, created_at FROM reference_documents
         WHERE user_ref = ? ORDER BY created_at DESC`,
		userRef,
	)
	if err != nil {
		return nil, fmt.Errorf("list reference documents: %w", err)
	}
	defer rows.Close()

	var docs []*ReferenceDocument
	for rows.Next() {
		var (
			doc        ReferenceDocument
			ref        sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&doc.ID, &ref, &doc.Name, &doc.Type, &doc.Content, &createdRaw); err != nil {
			return nil, err
		}
		doc.UserRef = ref.String
		if created, err := parseTimeString(createdRaw); err == nil {
			doc.CreatedAt = created
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}
