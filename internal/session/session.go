// Package session reconstructs practice sessions from their member
// recordings. Sessions have no table of their own: a session is the set of
// recordings sharing a token, rebuilt on every read.
package session

import (
	"context"
	"fmt"
	"math"
	"strings"

	"podium/internal/services"
	"podium/internal/store"
)

// Member pairs a recording with its report, when one exists. Position is the
// 1-based slot within the session for question-N-of-M traversal.
type Member struct {
	Recording *store.Recording
	Report    *store.FeedbackReport
	Position  int
}

// View is the aggregated read model for a session. Members are ordered by
// creation time ascending; the representative is the oldest member.
// Aggregate is the rounded mean of the overall scores of members that have a
// report, nil when none do.
type View struct {
	Token          string
	Members        []Member
	Representative *store.Recording
	Aggregate      *int
}

// Service aggregates sessions from the record store.
type Service struct {
	store *store.Store
}

// NewService returns a session service backed by the given store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// View rebuilds the session for a token. Member reports are fetched with a
// single batched lookup.
func (s *Service) View(ctx context.Context, token string) (*View, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, services.Wrap(services.ErrValidation, "session", "view", "session token required", nil)
	}

	recordings, err := s.store.ListBySession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("session view: list members: %w", err)
	}
	if len(recordings) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "session", "view", token, nil)
	}

	ids := make([]string, len(recordings))
	for i, rec := range recordings {
		ids[i] = rec.ID
	}
	reports, err := s.store.GetReports(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("session view: load reports: %w", err)
	}

	members := make([]Member, len(recordings))
	var sum float64
	var scored int
	for i, rec := range recordings {
		member := Member{Recording: rec, Position: i + 1}
		if report, ok := reports[rec.ID]; ok {
			member.Report = report
			sum += float64(report.Overall)
			scored++
		}
		members[i] = member
	}

	view := &View{
		Token:          token,
		Members:        members,
		Representative: recordings[0],
	}
	if scored > 0 {
		aggregate := int(math.Round(sum / float64(scored)))
		view.Aggregate = &aggregate
	}
	return view, nil
}
