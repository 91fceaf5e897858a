package bitbucket

import (
	"context"
	"fmt"
)

// ListActivity drains one pull request's activity feed via its embedded
// link and returns the raw variant events.
func (c *Client) ListActivity(ctx context.Context, activityURL string) ([]Activity, error) {
	activities, err := fetchAllPages[Activity](ctx, c, activityURL)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return activities, nil
}
