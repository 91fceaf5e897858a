// Package cursor owns the resumable crawl state carried between
// invocations: either a watermark timestamp (incremental mode) or the set of
// outstanding page links (initial backfill mode), never both.
package cursor

import (
	"errors"
	"fmt"
	"time"

	"github.com/mailbutler/fivetran-bitbucket-connector/internal/fivetran"
)

// Mode is the crawl mode of a run.
type Mode int

const (
	// ModeBackfill is the initial full-history crawl, paced one page per
	// stream per invocation.
	ModeBackfill Mode = iota
	// ModeIncremental fetches only records updated at or after the
	// watermark, fully drained within the run.
	ModeIncremental
)

func (m Mode) String() string {
	if m == ModeIncremental {
		return "incremental"
	}
	return "backfill"
}

var (
	// ErrMixedState indicates a persisted state carrying both a watermark
	// and outstanding page links.
	ErrMixedState = errors.New("cursor: state carries both a watermark and page links")

	// ErrInvalidSince indicates an unparseable watermark timestamp.
	ErrInvalidSince = errors.New("cursor: invalid watermark timestamp")
)

// Cursor is the decoded crawl state at the start of a run.
type Cursor struct {
	since time.Time
	links []string
}

// FromState decodes and validates the persisted state.
func FromState(s fivetran.State) (*Cursor, error) {
	if s.Since != "" && len(s.NextPageLinks) > 0 {
		return nil, ErrMixedState
	}

	c := &Cursor{links: s.NextPageLinks}
	if s.Since != "" {
		t, err := time.Parse(time.RFC3339, s.Since)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSince, s.Since)
		}
		c.since = t
	}
	return c, nil
}

// Mode returns the crawl mode: backfill until a watermark exists.
func (c *Cursor) Mode() Mode {
	if c.since.IsZero() {
		return ModeBackfill
	}
	return ModeIncremental
}

// Since returns the watermark, zero in backfill mode.
func (c *Cursor) Since() time.Time {
	return c.since
}

// Links returns the outstanding page links, nil on the first backfill run
// and in incremental mode.
func (c *Cursor) Links() []string {
	return c.links
}

// Builder accumulates the next run's state while the current run consumes
// pages.
type Builder struct {
	links []string
}

// NewBuilder creates an empty state builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddLink records a stream's continuation link. Empty links (exhausted
// streams) are ignored.
func (b *Builder) AddLink(link string) {
	if link != "" {
		b.links = append(b.links, link)
	}
}

// HasMore reports whether any continuation link is still outstanding. This
// is exactly the hasMore flag of the response envelope.
func (b *Builder) HasMore() bool {
	return len(b.links) > 0
}

// Next returns the state to persist. While links remain outstanding the
// watermark stays unset; once every stream is drained the watermark is
// stamped with startedAt, the wall-clock time the completing run began.
// Stamping the run start rather than the latest record timestamp avoids
// missing records that became visible upstream during the run.
func (b *Builder) Next(startedAt time.Time) fivetran.State {
	if len(b.links) > 0 {
		return fivetran.State{NextPageLinks: b.links}
	}
	return fivetran.State{Since: startedAt.UTC().Format(time.RFC3339)}
}
