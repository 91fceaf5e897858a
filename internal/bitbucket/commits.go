package bitbucket

import (
	"context"
	"time"
)

// FirstCommitTime walks a pull request's commit pages to the last one and
// returns the date of its final entry, which is the chronologically earliest
// commit (the feed is reverse-chronological). ok is false when the history
// is empty or any request fails; a missing first-commit timestamp is
// non-fatal and callers fall back to the pull request's created timestamp.
func (c *Client) FirstCommitTime(ctx context.Context, commitsURL string) (firstCommit time.Time, ok bool) {
	next := withPageLen(commitsURL, commitPageLen)

	var last []Commit
	for next != "" {
		values, n, err := fetchPage[Commit](ctx, c, next)
		if err != nil {
			c.log.Warn("commit history fetch failed", "url", commitsURL, "error", err)
			return time.Time{}, false
		}
		if len(values) > 0 {
			last = values
		}
		next = n
	}

	if len(last) == 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, last[len(last)-1].Date)
	if err != nil {
		c.log.Warn("unparseable commit date", "url", commitsURL, "date", last[len(last)-1].Date)
		return time.Time{}, false
	}
	return t, true
}
