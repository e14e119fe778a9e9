// Package model contains the core domain types for review status
// synchronization: reviews, discussion threads, comments, and the document
// paths that locate them in the store.
package model

import "time"

// Status is the aggregate review status derived from thread and approval
// state. It is the value mirrored to the hosting service.
type Status string

const (
	StatusPending          Status = "pending"
	StatusApproved         Status = "approved"
	StatusChangesRequested Status = "changes_requested"
)

// ReviewEvent is the hosting-service review event kind used when submitting
// a formal pull request review.
type ReviewEvent string

const (
	ReviewEventApprove        ReviewEvent = "APPROVE"
	ReviewEventRequestChanges ReviewEvent = "REQUEST_CHANGES"
)

// ReviewMetadata is the immutable identity of a review: the owning account,
// repository, and external pull request number.
type ReviewMetadata struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// ReviewState is the mutable state of a review. The review reconciler's
// trigger guard compares whole states, so every field that must cause a
// status recomputation lives here, including the reviewer approval map.
type ReviewState struct {
	// Closed freezes Status permanently once true.
	Closed bool `json:"closed"`

	Status Status `json:"status"`

	// Reviewers maps reviewer identity to has-approved.
	Reviewers map[string]bool `json:"reviewers"`

	// ChangesRequested marks an explicit outstanding change request. It is
	// sticky: only the ingestion layer clears it, never an approval count.
	ChangesRequested bool `json:"changes_requested"`

	// Unresolved counts open non-draft threads under this review.
	Unresolved int `json:"unresolved"`

	// LastComment is the timestamp of the most recent non-draft comment seen
	// by the status pipeline. Monotonically non-decreasing.
	LastComment time.Time `json:"last_comment"`
}

// Review is the aggregate document tracking one pull request's discussion
// and approval state.
type Review struct {
	Metadata ReviewMetadata `json:"metadata"`
	State    ReviewState    `json:"state"`
}

// StatesEqual reports structural equality of two review states across all
// fields. It is the primary guard against the review reconciler re-triggering
// itself: the reconciler's own status-setting write produces a state that
// differs only in Status, and the follow-up invocation sees equal states
// and stops.
func StatesEqual(a, b ReviewState) bool {
	if a.Closed != b.Closed ||
		a.Status != b.Status ||
		a.ChangesRequested != b.ChangesRequested ||
		a.Unresolved != b.Unresolved ||
		!a.LastComment.Equal(b.LastComment) {
		return false
	}
	if len(a.Reviewers) != len(b.Reviewers) {
		return false
	}
	for login, approved := range a.Reviewers {
		got, ok := b.Reviewers[login]
		if !ok || got != approved {
			return false
		}
	}
	return true
}
