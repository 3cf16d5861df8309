package domain

import (
	"fmt"
	"time"
)

// RecommendationStatus is the lifecycle state of a stored recommendation.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationAccepted RecommendationStatus = "accepted"
	RecommendationRejected RecommendationStatus = "rejected"
)

// IsValid checks if the status is a recognized value.
func (s RecommendationStatus) IsValid() bool {
	switch s {
	case RecommendationPending, RecommendationAccepted, RecommendationRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s RecommendationStatus) IsTerminal() bool {
	return s == RecommendationAccepted || s == RecommendationRejected
}

// Recommendation is a book suggested to a user. BookID is empty when the
// suggestion could not be matched to a catalog book.
type Recommendation struct {
	Entity
	UserID      string               `json:"user_id"`
	BookID      string               `json:"book_id,omitempty"`
	BatchID     string               `json:"batch_id"` // Generation call that produced it
	Reason      string               `json:"reason"`
	Status      RecommendationStatus `json:"status"`
	RespondedAt *time.Time           `json:"responded_at,omitempty"`
	Title       string               `json:"title"` // Canonical title when matched, else the suggested one
}

// Transition moves a pending recommendation to a terminal status.
// Only pending -> accepted and pending -> rejected are allowed.
func (r *Recommendation) Transition(to RecommendationStatus, at time.Time) error {
	if r.Status != RecommendationPending {
		return fmt.Errorf("recommendation already %s", r.Status)
	}
	if !to.IsTerminal() {
		return fmt.Errorf("cannot transition to %q", to)
	}
	r.Status = to
	r.RespondedAt = &at
	r.UpdatedAt = at
	return nil
}
