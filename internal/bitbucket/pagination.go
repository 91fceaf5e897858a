package bitbucket

import "context"

// fetchPage retrieves a single page from an absolute page URL and returns
// its values plus the link to the next page ("" when the listing is
// exhausted).
func fetchPage[T any](ctx context.Context, c *Client, pageURL string) ([]T, string, error) {
	var p page[T]
	if err := c.getJSON(ctx, pageURL, &p); err != nil {
		return nil, "", err
	}
	return p.Values, p.Next, nil
}

// fetchAllPages follows next links until none remains and returns the
// concatenation of every page's values in page order. Only bounded listings
// (members, repositories, commits, activity) are drained this way; the
// potentially unbounded pull request stream is consumed one page at a time
// via fetchPage so that a page is the unit of resumable progress.
func fetchAllPages[T any](ctx context.Context, c *Client, firstURL string) ([]T, error) {
	var all []T
	next := firstURL
	for next != "" {
		values, n, err := fetchPage[T](ctx, c, next)
		if err != nil {
			return nil, err
		}
		all = append(all, values...)
		next = n
	}
	return all, nil
}
