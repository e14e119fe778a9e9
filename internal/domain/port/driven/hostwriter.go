package driven

import (
	"context"

	"github.com/codeapprove/reviewsync/internal/domain/model"
)

// HostWriter defines the driven port for the hosting service's review API.
// Implementations are authorized as an application identity scoped to the
// target repository. The core is write-only toward the hosting service.
type HostWriter interface {
	// ReviewPullRequest submits a formal review on the given pull request.
	// Errors are returned unmodified; retry policy belongs to the caller.
	ReviewPullRequest(ctx context.Context, owner, repo string, number int, event model.ReviewEvent, body string) error
}
