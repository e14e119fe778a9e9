// Package application contains the reconcilers and the dispatcher that keep
// review status, unresolved-thread counts, and the hosting-service mirror
// consistent after document writes.
package application

import "github.com/codeapprove/reviewsync/internal/domain/model"

// ComputeStatus derives the aggregate status of a review from its state.
// Pure and deterministic so it can be tested against literal fixtures.
//
// A closed review keeps its current status. An explicit change request
// dominates everything else until the ingestion layer clears it. Otherwise
// the review is approved exactly when every reviewer has approved, at least
// one reviewer exists, and no non-draft thread remains unresolved.
func ComputeStatus(state model.ReviewState) model.Status {
	if state.Closed {
		return state.Status
	}
	if state.ChangesRequested {
		return model.StatusChangesRequested
	}
	if state.Unresolved > 0 || len(state.Reviewers) == 0 {
		return model.StatusPending
	}
	for _, approved := range state.Reviewers {
		if !approved {
			return model.StatusPending
		}
	}
	return model.StatusApproved
}
