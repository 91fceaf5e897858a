package bitbucket

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FirstPullRequestPageURL builds the seed URL for one (repository, lifecycle
// state) pull request stream. A non-zero updatedSince narrows the listing to
// pull requests touched at or after that instant; continuation links carry
// the filter forward on their own.
func (c *Client) FirstPullRequestPageURL(workspace, repoSlug, state string, updatedSince time.Time) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("pagelen", strconv.Itoa(pullRequestPageLen))
	if !updatedSince.IsZero() {
		q.Set("q", fmt.Sprintf("updated_on >= %s", updatedSince.UTC().Format(time.RFC3339)))
	}
	return c.endpoint(fmt.Sprintf("/repositories/%s/%s/pullrequests", workspace, repoSlug), q)
}

// ListPullRequestPage fetches exactly one page of a pull request stream,
// given a seed or continuation URL. The caller owns the returned next link;
// pull request pages are the unit of resumable progress across invocations,
// so this method never follows them.
func (c *Client) ListPullRequestPage(ctx context.Context, pageURL string) ([]PullRequest, string, error) {
	prs, next, err := fetchPage[PullRequest](ctx, c, pageURL)
	if err != nil {
		return nil, "", fmt.Errorf("list pull requests: %w", err)
	}
	c.log.Debug("fetched pull request page", "url", pageURL, "count", len(prs), "has_next", next != "")
	return prs, next, nil
}

// GetPullRequest fetches the single-pull-request detail record via its
// embedded self link. The detail record is the only place the upstream
// exposes participants.
func (c *Client) GetPullRequest(ctx context.Context, selfURL string) (*PullRequest, error) {
	var pr PullRequest
	if err := c.getJSON(ctx, selfURL, &pr); err != nil {
		return nil, fmt.Errorf("get pull request: %w", err)
	}
	return &pr, nil
}

// RepositoryFromPageURL extracts the repository slug from a pull request
// page URL (seed or continuation), whose path is always
// /repositories/{workspace}/{slug}/pullrequests[...].
func RepositoryFromPageURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "repositories" && i+2 < len(segments) {
			return segments[i+2]
		}
	}
	return ""
}
