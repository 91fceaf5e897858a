package bitbucket

import (
	"context"
	"fmt"
)

// membershipType marks entries in the members feed that are actual
// workspace memberships; anything else is filtered out.
const membershipType = "workspace_membership"

// ListMembers drains the workspace member listing and returns the users
// behind its membership entries.
func (c *Client) ListMembers(ctx context.Context, workspace string) ([]User, error) {
	first := c.endpoint(fmt.Sprintf("/workspaces/%s/members", workspace), nil)
	members, err := fetchAllPages[Member](ctx, c, first)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	users := make([]User, 0, len(members))
	for _, m := range members {
		if m.Type != membershipType {
			continue
		}
		users = append(users, m.User)
	}
	c.log.Debug("fetched workspace members", "workspace", workspace, "count", len(users))
	return users, nil
}
