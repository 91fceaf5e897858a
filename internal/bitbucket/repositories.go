package bitbucket

import (
	"context"
	"fmt"
	"net/url"
)

// ListRepositories drains the workspace repository listing. Used only when
// no explicit repository slugs are configured.
func (c *Client) ListRepositories(ctx context.Context, workspace string) ([]Repository, error) {
	q := url.Values{}
	q.Set("pagelen", "100")
	first := c.endpoint(fmt.Sprintf("/repositories/%s", workspace), q)

	repos, err := fetchAllPages[Repository](ctx, c, first)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	c.log.Debug("fetched workspace repositories", "workspace", workspace, "count", len(repos))
	return repos, nil
}
