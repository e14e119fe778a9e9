package model

import (
	"fmt"
	"strings"
)

// ReviewPath locates a review document in the store hierarchy:
// orgs/{org}/repos/{repo}/reviews/{reviewId}. Change-event routing depends
// on this layout, so the rendered form is part of the store contract.
type ReviewPath struct {
	Org      string
	Repo     string
	ReviewID string
}

func (p ReviewPath) String() string {
	return fmt.Sprintf("orgs/%s/repos/%s/reviews/%s", p.Org, p.Repo, p.ReviewID)
}

// Thread returns the path of a thread document nested under this review.
func (p ReviewPath) Thread(threadID string) ThreadPath {
	return ThreadPath{ReviewPath: p, ThreadID: threadID}
}

// ThreadPath locates a thread document nested under its review:
// orgs/{org}/repos/{repo}/reviews/{reviewId}/threads/{threadId}.
type ThreadPath struct {
	ReviewPath
	ThreadID string
}

func (p ThreadPath) String() string {
	return p.ReviewPath.String() + "/threads/" + p.ThreadID
}

// ParseReviewPath parses the rendered form of a ReviewPath.
func ParseReviewPath(s string) (ReviewPath, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 6 || parts[0] != "orgs" || parts[2] != "repos" || parts[4] != "reviews" {
		return ReviewPath{}, fmt.Errorf("malformed review path %q", s)
	}
	p := ReviewPath{Org: parts[1], Repo: parts[3], ReviewID: parts[5]}
	if p.Org == "" || p.Repo == "" || p.ReviewID == "" {
		return ReviewPath{}, fmt.Errorf("review path %q has empty segment", s)
	}
	return p, nil
}

// ParseThreadPath parses the rendered form of a ThreadPath.
func ParseThreadPath(s string) (ThreadPath, error) {
	idx := strings.LastIndex(s, "/threads/")
	if idx < 0 {
		return ThreadPath{}, fmt.Errorf("malformed thread path %q", s)
	}

	review, err := ParseReviewPath(s[:idx])
	if err != nil {
		return ThreadPath{}, fmt.Errorf("malformed thread path %q: %w", s, err)
	}

	threadID := s[idx+len("/threads/"):]
	if threadID == "" || strings.Contains(threadID, "/") {
		return ThreadPath{}, fmt.Errorf("thread path %q has invalid thread segment", s)
	}

	return review.Thread(threadID), nil
}
