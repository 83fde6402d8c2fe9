package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRecordingParams carries the caller-supplied fields for a new recording.
type NewRecordingParams struct {
	UserRef          string
	SessionToken     string
	Question         string
	Scenario         string
	ReferenceRef     string
	ReferenceType    string
	DeclaredDuration float64
	MinDuration      float64
	MaxDuration      float64
}

// NewRecording inserts a recording in the uploading state and returns it.
func (s *Store) NewRecording(ctx context.Context, params NewRecordingParams) (*Recording, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO recordings (
            id, user_ref, session_token, question, scenario,
            media_locator, content_type, size_bytes,
            reference_ref, reference_type,
            declared_duration, duration, min_duration, max_duration,
            status, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(params.UserRef),
		nullableString(params.SessionToken),
		nullableString(params.Question),
		nullableString(params.Scenario),
		nil,
		nil,
		0,
		nullableString(params.ReferenceRef),
		nullableString(params.ReferenceType),
		params.DeclaredDuration,
		0.0,
		params.MinDuration,
		params.MaxDuration,
		StatusUploading,
		nil,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a recording by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// Update persists changes to an existing recording.
func (s *Store) Update(ctx context.Context, rec *Recording) error {
	if rec == nil {
		return errors.New("recording is nil")
	}
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE recordings
         SET user_ref = ?, session_token = ?, question = ?, scenario = ?,
             media_locator = ?, content_type = ?, size_bytes = ?,
             reference_ref = ?, reference_type = ?,
             declared_duration = ?, duration = ?, min_duration = ?, max_duration = ?,
             status = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(rec.UserRef),
		nullableString(rec.SessionToken),
		nullableString(rec.Question),
		nullableString(rec.Scenario),
		nullableString(rec.MediaLocator),
		nullableString(rec.ContentType),
		rec.SizeBytes,
		nullableString(rec.ReferenceRef),
		nullableString(rec.ReferenceType),
		rec.DeclaredDuration,
		rec.Duration,
		rec.MinDuration,
		rec.MaxDuration,
		rec.Status,
		nullableString(rec.ErrorMessage),
		rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return nil
}

// Transition moves a recording from one status to another only when the
// current status still matches. Returns false when the guard did not hold.
func (s *Store) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE recordings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetStatus unconditionally sets a recording's status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE recordings SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// MarkFailed sets failed status together with the error message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE recordings SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// AttachMedia records the stored blob for an uploaded recording.
func (s *Store) AttachMedia(ctx context.Context, id, locator, contentType string, sizeBytes int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE recordings SET media_locator = ?, content_type = ?, size_bytes = ?, updated_at = ? WHERE id = ?`,
		nullableString(locator),
		nullableString(contentType),
		sizeBytes,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("attach media: %w", err)
	}
	return nil
}

// SetDuration persists the canonical duration after post-hoc correction.
func (s *Store) SetDuration(ctx context.Context, id string, duration float64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE recordings SET duration = ?, updated_at = ? WHERE id = ?`,
		duration,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set duration: %w", err)
	}
	return nil
}

// ListByUser returns a user's recordings ordered newest first.
func (s *Store) ListByUser(ctx context.Context, userRef string) ([]*Recording, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE user_ref = ? ORDER BY created_at DESC`,
		userRef,
	)
	if err != nil {
		return nil, fmt.Errorf("list by user: %w", err)
	}
	return collectRecordings(rows)
}

// ListBySession returns the session's recordings ordered oldest first, so the
// first member is the representative.
func (s *Store) ListBySession(ctx context.Context, token string) ([]*Recording, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE session_token = ? ORDER BY created_at, id`,
		token,
	)
	if err != nil {
		return nil, fmt.Errorf("list by session: %w", err)
	}
	return collectRecordings(rows)
}

// List returns recordings filtered by status set (or all when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Recording, error) {
	baseQuery := `SELECT ` + recordingColumns + ` FROM recordings`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return collectRecordings(rows)
}

// Stats returns a count of recordings grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM recordings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("recording stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates recording state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusUploading:
			health.Uploading += count
		case StatusComplete:
			health.Complete += count
		case StatusFailed:
			health.Failed += count
		default:
			if IsProcessingStatus(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes a recording and its artifacts.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const recordingColumns = "id, user_ref, session_token, question, scenario, media_locator, content_type, size_bytes, reference_ref, reference_type, declared_duration, duration, min_duration, max_duration, status, error_message, created_at, updated_at"

func scanRecording(scanner interface{ Scan(dest ...any) error }) (*Recording, error) {
	var (
		id            string
		userRef       sql.NullString
		sessionToken  sql.NullString
		question      sql.NullString
		scenario      sql.NullString
		mediaLocator  sql.NullString
		contentType   sql.NullString
		sizeBytes     sql.NullInt64
		referenceRef  sql.NullString
		referenceType sql.NullString
		declared      sql.NullFloat64
		duration      sql.NullFloat64
		minDuration   sql.NullFloat64
		maxDuration   sql.NullFloat64
		statusStr     string
		errorMessage  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userRef,
		&sessionToken,
		&question,
		&scenario,
		&mediaLocator,
		&contentType,
		&sizeBytes,
		&referenceRef,
		&referenceType,
		&declared,
		&duration,
		&minDuration,
		&maxDuration,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Recording{
		ID:               id,
		UserRef:          userRef.String,
		SessionToken:     sessionToken.String,
		Question:         question.String,
		Scenario:         scenario.String,
		MediaLocator:     mediaLocator.String,
		ContentType:      contentType.String,
		SizeBytes:        sizeBytes.Int64,
		ReferenceRef:     referenceRef.String,
		ReferenceType:    referenceType.String,
		DeclaredDuration: declared.Float64,
		Duration:         duration.Float64,
		MinDuration:      minDuration.Float64,
		MaxDuration:      maxDuration.Float64,
		Status:           Status(statusStr),
		ErrorMessage:     errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func collectRecordings(rows *sql.Rows) ([]*Recording, error) {
	defer rows.Close()
	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
