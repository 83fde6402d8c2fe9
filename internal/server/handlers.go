package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"podium/internal/logging"
	"podium/internal/media"
	"podium/internal/services"
	"podium/internal/store"
)

// handleRecordings serves POST /api/recordings (multipart upload) and
// GET /api/recordings?user= (listing).
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRecording(w, r)
	case http.MethodGet:
		s.listRecordings(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.media.MaxBytes()+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "parse upload: "+err.Error())
		return
	}
	userRef := strings.TrimSpace(r.FormValue("user_ref"))
	if userRef == "" {
		s.writeError(w, http.StatusBadRequest, "user_ref is required")
		return
	}

	params := store.NewRecordingParams{
		UserRef:          userRef,
		SessionToken:     strings.TrimSpace(r.FormValue("session_token")),
		Question:         strings.TrimSpace(r.FormValue("question")),
		Scenario:         strings.TrimSpace(r.FormValue("scenario")),
		ReferenceRef:     strings.TrimSpace(r.FormValue("reference_ref")),
		ReferenceType:    strings.TrimSpace(r.FormValue("reference_type")),
		DeclaredDuration: formFloat(r, "declared_duration"),
		MinDuration:      formFloat(r, "min_duration"),
		MaxDuration:      formFloat(r, "max_duration"),
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "media file is required")
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")

	ctx := r.Context()
	rec, err := s.store.NewRecording(ctx, params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	locator, size, err := s.media.Put(file, contentType)
	if err != nil {
		if removeErr := s.store.MarkFailed(ctx, rec.ID, "upload rejected: "+err.Error()); removeErr != nil {
			s.logger.Error("mark rejected upload failed", logging.Error(removeErr))
		}
		s.writeServiceError(w, err)
		return
	}
	if err := s.store.AttachMedia(ctx, rec.ID, locator, contentType, size); err != nil {
		s.writeServiceError(w, err)
		return
	}
	if _, err := s.store.Transition(ctx, rec.ID, store.StatusUploading, store.StatusProcessing); err != nil {
		s.writeServiceError(w, err)
		return
	}

	rec, err = s.store.GetByID(ctx, rec.ID)
	if err != nil || rec == nil {
		s.writeError(w, http.StatusInternalServerError, "reload recording after upload")
		return
	}
	s.writeJSON(w, http.StatusCreated, recordingView(rec))
}

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	userRef := strings.TrimSpace(r.URL.Query().Get("user"))
	if userRef == "" {
		s.writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	recordings, err := s.store.ListByUser(r.Context(), userRef)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	views := make([]RecordingView, len(recordings))
	for i, rec := range recordings {
		views[i] = recordingView(rec)
	}
	s.writeJSON(w, http.StatusOK, map[string][]RecordingView{"recordings": views})
}

// handleRecording routes /api/recordings/{id}[/subresource].
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(sub, "/") {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.describeRecording(w, r, id)
	case sub == "status" && r.Method == http.MethodGet:
		s.recordingStatus(w, r, id)
	case sub == "process" && r.Method == http.MethodPost:
		s.processRecording(w, r, id)
	case sub == "biometrics" && r.Method == http.MethodPost:
		s.triggerBiometrics(w, r, id)
	case sub == "media" && r.Method == http.MethodGet:
		s.mediaAccess(w, r, id)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) describeRecording(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	s.writeJSON(w, http.StatusOK, recordingView(rec))
}

func (s *Server) recordingStatus(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	transcript, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Recording:  recordingView(rec),
		Transcript: transcript,
		Report:     report,
	})
}

func (s *Server) processRecording(w http.ResponseWriter, r *http.Request, id string) {
	scenario := strings.TrimSpace(r.URL.Query().Get("scenario"))
	outcome := s.pipeline.Process(r.Context(), id, scenario)
	resp := OutcomeResponse{Transcript: outcome.Transcript, Report: outcome.Report}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
		switch {
		case services.IsNotFound(outcome.Err):
			s.writeJSON(w, http.StatusNotFound, resp)
		case services.IsNotReady(outcome.Err):
			s.writeJSON(w, http.StatusConflict, resp)
		case services.IsValidation(outcome.Err):
			s.writeJSON(w, http.StatusBadRequest, resp)
		default:
			s.writeJSON(w, http.StatusBadGateway, resp)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) triggerBiometrics(w http.ResponseWriter, r *http.Request, id string) {
	// Advisory stage: kick it off and answer immediately. The request
	// context dies with the response, so the extraction runs on its own.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.pipeline.ProcessBiometrics(ctx, id); err != nil {
			s.logger.Warn("biometric extraction", logging.String(logging.FieldRecordingID, id), logging.Error(err))
		}
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) mediaAccess(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec == nil || rec.MediaLocator == "" {
		s.writeError(w, http.StatusNotFound, "no media for recording")
		return
	}
	url, expires := s.signedMediaURL(rec.MediaLocator)
	s.writeJSON(w, http.StatusOK, MediaResponse{URL: url, ExpiresAt: expires})
}

// MediaURL renders a signed, externally reachable URL for a locator.
func (s *Server) MediaURL(locator string) string {
	url, _ := s.signedMediaURL(locator)
	return url
}

func (s *Server) signedMediaURL(locator string) (string, int64) {
	expires, sig := s.media.SignedQuery(locator, time.Now())
	host := s.Addr()
	if host == "" {
		host = strings.TrimSpace(s.cfg.Paths.APIBind)
	}
	return fmt.Sprintf("http://%s/media/%s?expires=%d&sig=%s", host, locator, expires, sig), expires
}

// handleMedia serves the stored blob when the signed query checks out.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	locator := strings.TrimPrefix(r.URL.Path, "/media/")
	query := r.URL.Query()
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusForbidden, "invalid access token")
		return
	}
	if err := s.media.VerifySignedQuery(locator, expires, query.Get("sig"), time.Now()); err != nil {
		s.writeError(w, http.StatusForbidden, "invalid access token")
		return
	}
	reader, err := s.media.Open(locator)
	if err != nil {
		if services.IsNotFound(err) {
			s.writeError(w, http.StatusNotFound, "media not found")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	defer reader.Close()
	w.Header().Set("Content-Type", media.ContentTypeFor(locator))
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Warn("stream media", logging.Error(err))
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if token == "" || strings.Contains(token, "/") {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	view, err := s.sessions.View(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse(view))
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.questions == nil {
		s.writeError(w, http.StatusServiceUnavailable, "question generation not configured")
		return
	}
	var req QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	questions, err := s.questions.GenerateQuestions(r.Context(), req.Topic, req.Count)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, QuestionsResponse{Questions: questions})
}

func (s *Server) handleReferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.UserRef) == "" || strings.TrimSpace(req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "user_ref and content are required")
		return
	}
	doc, err := s.store.SaveReferenceDocument(r.Context(), &store.ReferenceDocument{
		UserRef: strings.TrimSpace(req.UserRef),
		Name:    strings.TrimSpace(req.Name),
		Type:    strings.TrimSpace(req.Type),
		Content: req.Content,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ReferenceResponse{
		ID:        doc.ID,
		Name:      doc.Name,
		Type:      doc.Type,
		CreatedAt: doc.CreatedAt,
	})
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.notifier == nil {
		s.writeError(w, http.StatusServiceUnavailable, "notifications not configured")
		return
	}
	if err := s.notifier.TestNotification(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.store.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	stages := map[string]bool{
		"speech":     s.cfg.Speech.APIKey != "",
		"feedback":   s.cfg.Feedback.APIKey != "" && len(s.cfg.Feedback.Models) > 0,
		"biometrics": s.cfg.Biometrics.Enabled && s.cfg.Biometrics.APIKey != "",
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Healthy: true,
		Recordings: map[string]int{
			"total":      summary.Total,
			"uploading":  summary.Uploading,
			"processing": summary.Processing,
			"complete":   summary.Complete,
			"failed":     summary.Failed,
		},
		Stages: stages,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case services.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case services.IsConfiguration(err):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case services.IsNotReady(err):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func formFloat(r *http.Request, field string) float64 {
	value := strings.TrimSpace(r.FormValue(field))
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}
