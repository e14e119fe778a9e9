// Package github implements the HostWriter port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HostWriter = (*Client)(nil)

// Client implements the driven.HostWriter port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client)
//
// The token is expected to carry per-repository review permissions; token
// minting and refresh belong to the deployment's auth layer, not this client.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ReviewPullRequest submits a formal review on the given pull request.
// event must be APPROVE or REQUEST_CHANGES; the body always accompanies the
// event so reviewers see why the status changed. Errors are propagated
// without retry; redelivery of the triggering event is the caller's concern.
func (c *Client) ReviewPullRequest(ctx context.Context, owner, repo string, number int, event model.ReviewEvent, body string) error {
	review := &gh.PullRequestReviewRequest{
		Event: gh.Ptr(string(event)),
		Body:  gh.Ptr(body),
	}

	_, _, err := c.gh.PullRequests.CreateReview(ctx, owner, repo, number, review)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("review submission rejected for %s/%s#%d (PR state changed upstream): %w", owner, repo, number, err)
		}
		return fmt.Errorf("submitting review for %s/%s#%d: %w", owner, repo, number, err)
	}

	return nil
}
