// Package sync drives one end-to-end connector run: it decides the crawl
// mode, fans out over repository streams and nested pull request fetches,
// merges the per-entity batches, and assembles the response envelope.
package sync

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mailbutler/fivetran-bitbucket-connector/internal/bitbucket"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/config"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/cursor"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/domain"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/fivetran"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/normalize"
)

// Ensure Syncer implements the invocation contract.
var _ fivetran.Runner = (*Syncer)(nil)

// pollStates are the lifecycle states polled each run. DECLINED pull
// requests are not re-synced.
var pollStates = []string{"OPEN", "MERGED"}

// Syncer executes connector runs against a configured workspace.
type Syncer struct {
	cfg        *config.Config
	log        *slog.Logger
	now        func() time.Time
	clientOpts []bitbucket.Option
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock overrides the wall clock. Useful for testing watermarks.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithClientOptions passes options through to the upstream client built for
// each run.
func WithClientOptions(opts ...bitbucket.Option) Option {
	return func(s *Syncer) { s.clientOpts = opts }
}

// New creates a Syncer on top of the baseline configuration; each run
// overlays the invocation's secrets before validating.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		cfg: cfg,
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// streamResult is the outcome of one pull request stream: its immutable
// batch and, in backfill mode, the stream's continuation link.
type streamResult struct {
	batches domain.Batches
	next    string
}

// Run executes one sync and returns the success envelope. Any returned
// error aborts the whole invocation; recoverable conditions are handled
// below this level and never surface here.
func (s *Syncer) Run(ctx context.Context, req fivetran.Request) (*fivetran.SuccessResponse, error) {
	startedAt := s.now()

	cfg := *s.cfg
	cfg.ApplySecrets(req.Secrets)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cur, err := cursor.FromState(req.State)
	if err != nil {
		return nil, err
	}

	client := bitbucket.NewClient(ctx, cfg.Credentials(), s.log, s.clientOpts...)

	if req.SetupTest {
		return s.setupTest(ctx, client, &cfg, req.State)
	}

	s.log.Info("sync started",
		"mode", cur.Mode().String(),
		"workspace", cfg.Workspace,
		"sync_id", req.SyncID)

	rawUsers, err := client.ListMembers(ctx, cfg.Workspace)
	if err != nil {
		return nil, err
	}
	batches := domain.Batches{Users: normalize.Users(rawUsers)}

	links, err := s.seedLinks(ctx, client, &cfg, cur)
	if err != nil {
		return nil, err
	}

	// Streams are independent; fetch them concurrently and merge the
	// immutable results once all of them settle.
	results := make([]streamResult, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.FanOutLimit)
	for i, link := range links {
		g.Go(func() error {
			var res streamResult
			var err error
			if cur.Mode() == cursor.ModeBackfill {
				res.batches, res.next, err = s.syncPage(gctx, client, cfg.FanOutLimit, link)
			} else {
				res.batches, err = s.syncStream(gctx, client, cfg.FanOutLimit, link)
			}
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	next := cursor.NewBuilder()
	for _, res := range results {
		batches.Merge(res.batches)
		next.AddLink(res.next)
	}

	s.log.Info("sync finished",
		"users", len(batches.Users),
		"pull_requests", len(batches.PullRequests),
		"activities", len(batches.Activities),
		"participants", len(batches.Participants),
		"has_more", next.HasMore())

	return &fivetran.SuccessResponse{
		State:   next.Next(startedAt),
		Insert:  batches.Inserts(),
		Schema:  schema(),
		HasMore: next.HasMore(),
	}, nil
}

// setupTest proves the credentials can read the workspace and returns an
// empty envelope. The persisted state is left untouched; a connection test
// must not advance the cursor.
func (s *Syncer) setupTest(ctx context.Context, client *bitbucket.Client, cfg *config.Config, state fivetran.State) (*fivetran.SuccessResponse, error) {
	if _, err := client.ListMembers(ctx, cfg.Workspace); err != nil {
		return nil, err
	}
	empty := domain.Batches{}
	return &fivetran.SuccessResponse{
		State:   state,
		Insert:  empty.Inserts(),
		Schema:  schema(),
		HasMore: false,
	}, nil
}

// seedLinks resolves the pull request streams this run will consume: the
// outstanding backfill links if any remain, otherwise a fresh seed per
// (repository, state) pair, filtered by the watermark in incremental mode.
func (s *Syncer) seedLinks(ctx context.Context, client *bitbucket.Client, cfg *config.Config, cur *cursor.Cursor) ([]string, error) {
	if links := cur.Links(); len(links) > 0 {
		return links, nil
	}

	slugs := cfg.Slugs()
	if len(slugs) == 0 {
		repos, err := client.ListRepositories(ctx, cfg.Workspace)
		if err != nil {
			return nil, err
		}
		slugs = make([]string, 0, len(repos))
		for _, r := range repos {
			slugs = append(slugs, r.Slug)
		}
	}

	links := make([]string, 0, len(slugs)*len(pollStates))
	for _, slug := range slugs {
		for _, state := range pollStates {
			links = append(links, client.FirstPullRequestPageURL(cfg.Workspace, slug, state, cur.Since()))
		}
	}
	return links, nil
}

// syncPage consumes exactly one page of a pull request stream and returns
// its batch plus the continuation link ("" when the stream is exhausted).
// One page per stream per run bounds an invocation's work regardless of
// backlog size; a forced cutoff between runs loses at most one page of
// progress.
func (s *Syncer) syncPage(ctx context.Context, client *bitbucket.Client, fanOut int, pageURL string) (domain.Batches, string, error) {
	repo := bitbucket.RepositoryFromPageURL(pageURL)

	prs, next, err := client.ListPullRequestPage(ctx, pageURL)
	if err != nil {
		return domain.Batches{}, "", err
	}

	batches, err := s.expandPullRequests(ctx, client, fanOut, repo, prs)
	if err != nil {
		return domain.Batches{}, "", err
	}
	return batches, next, nil
}

// syncStream drains a pull request stream to exhaustion within the run.
// Only incremental mode does this; the watermark filter keeps its volume
// small.
func (s *Syncer) syncStream(ctx context.Context, client *bitbucket.Client, fanOut int, firstURL string) (domain.Batches, error) {
	var all domain.Batches
	next := firstURL
	for next != "" {
		batches, n, err := s.syncPage(ctx, client, fanOut, next)
		if err != nil {
			return domain.Batches{}, err
		}
		all.Merge(batches)
		next = n
	}
	return all, nil
}

// expandPullRequests resolves the nested fetches for a page of pull
// requests: first-commit timestamp, activity feed, and participants.
// Different pull requests are expanded concurrently with a bounded fan-out;
// each task fills its own slot and the slots are merged after the group
// settles, so no batch is touched by more than one goroutine.
func (s *Syncer) expandPullRequests(ctx context.Context, client *bitbucket.Client, fanOut int, repo string, prs []bitbucket.PullRequest) (domain.Batches, error) {
	results := make([]domain.Batches, len(prs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, pr := range prs {
		g.Go(func() error {
			batches, err := s.expandOne(gctx, client, repo, pr)
			if err != nil {
				return err
			}
			results[i] = batches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Batches{}, err
	}

	var merged domain.Batches
	for _, b := range results {
		merged.Merge(b)
	}
	return merged, nil
}

// expandOne builds the full batch for a single pull request. The
// first-commit lookup is the only tolerated failure; activity and
// participant fetches abort the run.
func (s *Syncer) expandOne(ctx context.Context, client *bitbucket.Client, repo string, pr bitbucket.PullRequest) (domain.Batches, error) {
	firstCommit, _ := client.FirstCommitTime(ctx, pr.Links.Commits.Href)

	batches := domain.Batches{
		PullRequests: []domain.PullRequest{normalize.PullRequest(repo, pr, firstCommit)},
	}

	raw, err := client.ListActivity(ctx, pr.Links.Activity.Href)
	if err != nil {
		return domain.Batches{}, err
	}
	batches.Activities = normalize.Activities(repo, raw, s.log)

	detail, err := client.GetPullRequest(ctx, pr.Links.Self.Href)
	if err != nil {
		return domain.Batches{}, err
	}
	batches.Participants = normalize.Participants(repo, *detail)

	return batches, nil
}

// schema declares the fixed destination tables and their primary keys.
func schema() map[string]fivetran.TableSchema {
	tables := make(map[string]fivetran.TableSchema, 4)
	for entity, pk := range domain.PrimaryKeys() {
		tables[entity] = fivetran.TableSchema{PrimaryKey: pk}
	}
	return tables
}
