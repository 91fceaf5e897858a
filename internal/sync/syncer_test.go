package sync_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailbutler/fivetran-bitbucket-connector/internal/bitbucket"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/config"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/cursor"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/domain"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/fivetran"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/sync"
)

var runStart = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// safeBuffer is a goroutine-safe log sink; nested fetches log concurrently.
type safeBuffer struct {
	mu  stdsync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeUpstream is a scriptable Bitbucket API double.
type fakeUpstream struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fakeUpstream{t: t, mux: mux, srv: srv}
}

func (f *fakeUpstream) url(path string) string {
	return f.srv.URL + path
}

type listPage[T any] struct {
	Next   string `json:"next,omitempty"`
	Values []T    `json:"values"`
}

func (f *fakeUpstream) respond(w http.ResponseWriter, v any) {
	f.t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func (f *fakeUpstream) serveMembers(users ...bitbucket.User) {
	f.mux.HandleFunc("/workspaces/acme/members", func(w http.ResponseWriter, _ *http.Request) {
		members := make([]bitbucket.Member, len(users))
		for i, u := range users {
			members[i] = bitbucket.Member{Type: "workspace_membership", User: u}
		}
		f.respond(w, listPage[bitbucket.Member]{Values: members})
	})
}

// pullRequest builds a raw pull request whose embedded links point back at
// the fake server.
func (f *fakeUpstream) pullRequest(id int, state string) bitbucket.PullRequest {
	base := fmt.Sprintf("/repositories/acme/website/pullrequests/%d", id)
	return bitbucket.PullRequest{
		ID:        id,
		Title:     fmt.Sprintf("PR %d", id),
		State:     state,
		Author:    bitbucket.User{UUID: "{author}"},
		CreatedOn: "2024-05-01T00:00:00+00:00",
		UpdatedOn: "2024-05-02T00:00:00+00:00",
		Links: bitbucket.PullRequestLinks{
			Self:     bitbucket.Link{Href: f.url(base)},
			HTML:     bitbucket.Link{Href: "https://bitbucket.org/acme/website/pull-requests/" + fmt.Sprint(id)},
			Activity: bitbucket.Link{Href: f.url(base + "/activity")},
			Commits:  bitbucket.Link{Href: f.url(base + "/commits")},
		},
	}
}

// serveNestedEndpoints answers the per-pull-request detail, activity and
// commit fetches for any pull request id.
func (f *fakeUpstream) serveNestedEndpoints(activities map[int][]bitbucket.Activity) {
	f.mux.HandleFunc("/repositories/acme/website/pullrequests/{id}/activity", func(w http.ResponseWriter, r *http.Request) {
		var id int
		fmt.Sscanf(r.PathValue("id"), "%d", &id)
		f.respond(w, listPage[bitbucket.Activity]{Values: activities[id]})
	})
	f.mux.HandleFunc("/repositories/acme/website/pullrequests/{id}/commits", func(w http.ResponseWriter, _ *http.Request) {
		f.respond(w, listPage[bitbucket.Commit]{})
	})
	f.mux.HandleFunc("/repositories/acme/website/pullrequests/{id}", func(w http.ResponseWriter, r *http.Request) {
		var id int
		fmt.Sscanf(r.PathValue("id"), "%d", &id)
		pr := f.pullRequest(id, "OPEN")
		pr.Participants = []bitbucket.Participant{
			{User: bitbucket.User{UUID: "{reviewer}"}, Role: "REVIEWER", Approved: true, State: "approved", ParticipatedOn: "2024-05-02T01:00:00+00:00"},
		}
		f.respond(w, pr)
	})
}

func newSyncer(f *fakeUpstream, log *slog.Logger) *sync.Syncer {
	cfg := &config.Config{FanOutLimit: 4}
	return sync.New(cfg, log,
		sync.WithClock(func() time.Time { return runStart }),
		sync.WithClientOptions(
			bitbucket.WithBaseURL(f.srv.URL),
			bitbucket.WithRateLimit(bitbucket.RateLimitConfig{RequestsPerSecond: 10000, BurstSize: 10000}),
		),
	)
}

func baseRequest() fivetran.Request {
	return fivetran.Request{
		Secrets: fivetran.Secrets{
			Workspace:       "acme",
			Username:        "robot",
			Password:        "app-password",
			RepositorySlugs: "website",
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRun_InitialBackfill(t *testing.T) {
	f := newFakeUpstream(t)
	f.serveMembers(bitbucket.User{UUID: "{u1}", Nickname: "jdoe"})

	openPage2 := f.url("/repositories/acme/website/pullrequests?state=OPEN&page=2")
	f.mux.HandleFunc("/repositories/acme/website/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("state") {
		case "OPEN":
			require.Empty(t, r.URL.Query().Get("page"), "backfill must not follow continuation links within a run")
			f.respond(w, listPage[bitbucket.PullRequest]{
				Next:   openPage2,
				Values: []bitbucket.PullRequest{f.pullRequest(1, "OPEN"), f.pullRequest(2, "OPEN"), f.pullRequest(3, "OPEN")},
			})
		case "MERGED":
			f.respond(w, listPage[bitbucket.PullRequest]{})
		default:
			t.Errorf("unexpected state %q", r.URL.Query().Get("state"))
		}
	})
	f.serveNestedEndpoints(map[int][]bitbucket.Activity{
		1: {{
			PullRequest: bitbucket.ActivityPullRequest{ID: 1},
			Approval:    &bitbucket.ApprovalPayload{Date: "2024-05-02T00:30:00+00:00", User: bitbucket.User{UUID: "{u1}"}},
		}},
	})

	resp, err := newSyncer(f, discard()).Run(context.Background(), baseRequest())

	require.NoError(t, err)
	assert.True(t, resp.HasMore)
	assert.Empty(t, resp.State.Since, "watermark must not appear while pages are outstanding")
	assert.Equal(t, []string{openPage2}, resp.State.NextPageLinks, "only the OPEN stream has pages left")

	prs := resp.Insert[domain.EntityPullRequests].([]domain.PullRequest)
	require.Len(t, prs, 3)
	for _, pr := range prs {
		assert.Equal(t, "website", pr.Repository)
		assert.True(t, pr.FirstCommitOn.Equal(pr.CreatedOn), "empty commit history falls back to created_on")
	}

	users := resp.Insert[domain.EntityUsers].([]domain.User)
	require.Len(t, users, 1)
	assert.Equal(t, "{u1}", users[0].UUID)

	activities := resp.Insert[domain.EntityActivities].([]domain.Activity)
	require.Len(t, activities, 1)
	assert.Equal(t, domain.ActivityApproval, activities[0].Kind)

	participants := resp.Insert[domain.EntityParticipants].([]domain.Participant)
	assert.Len(t, participants, 3, "one reviewer per fetched pull request")

	assert.Equal(t, []string{"repository", "id"}, resp.Schema[domain.EntityPullRequests].PrimaryKey)
}

func TestRun_ResumedBackfill(t *testing.T) {
	f := newFakeUpstream(t)
	f.serveMembers()

	f.mux.HandleFunc("/repositories/acme/website/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"), "only the persisted link may be consumed")
		f.respond(w, listPage[bitbucket.PullRequest]{
			Values: []bitbucket.PullRequest{f.pullRequest(4, "OPEN")},
		})
	})
	f.serveNestedEndpoints(nil)

	req := baseRequest()
	req.State = fivetran.State{
		NextPageLinks: []string{f.url("/repositories/acme/website/pullrequests?state=OPEN&page=2")},
	}

	resp, err := newSyncer(f, discard()).Run(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, resp.HasMore)
	assert.Equal(t, "2024-06-01T10:00:00Z", resp.State.Since, "drained backfill switches to the watermark form")
	assert.Empty(t, resp.State.NextPageLinks)
	assert.Len(t, resp.Insert[domain.EntityPullRequests].([]domain.PullRequest), 1)
}

func TestRun_IncrementalEmpty(t *testing.T) {
	f := newFakeUpstream(t)
	f.serveMembers()

	f.mux.HandleFunc("/repositories/acme/website/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "updated_on >= 2024-01-01T00:00:00Z", r.URL.Query().Get("q"))
		f.respond(w, listPage[bitbucket.PullRequest]{})
	})

	req := baseRequest()
	req.State = fivetran.State{Since: "2024-01-01T00:00:00Z"}

	resp, err := newSyncer(f, discard()).Run(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, resp.HasMore)
	assert.Empty(t, resp.Insert[domain.EntityPullRequests].([]domain.PullRequest))
	assert.Empty(t, resp.Insert[domain.EntityActivities].([]domain.Activity))
	assert.Equal(t, "2024-06-01T10:00:00Z", resp.State.Since, "watermark advances to the run start, not the old value")
}

func TestRun_IncrementalDrainsWithinRun(t *testing.T) {
	f := newFakeUpstream(t)
	f.serveMembers()

	f.mux.HandleFunc("/repositories/acme/website/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != "OPEN" {
			f.respond(w, listPage[bitbucket.PullRequest]{})
			return
		}
		if r.URL.Query().Get("page") == "2" {
			f.respond(w, listPage[bitbucket.PullRequest]{
				Values: []bitbucket.PullRequest{f.pullRequest(2, "OPEN")},
			})
			return
		}
		f.respond(w, listPage[bitbucket.PullRequest]{
			Next:   f.url("/repositories/acme/website/pullrequests?state=OPEN&page=2"),
			Values: []bitbucket.PullRequest{f.pullRequest(1, "OPEN")},
		})
	})
	f.serveNestedEndpoints(nil)

	req := baseRequest()
	req.State = fivetran.State{Since: "2024-01-01T00:00:00Z"}

	resp, err := newSyncer(f, discard()).Run(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, resp.HasMore, "incremental runs drain fully")
	assert.Len(t, resp.Insert[domain.EntityPullRequests].([]domain.PullRequest), 2)
}

func TestRun_UnknownActivityIsDroppedNotFatal(t *testing.T) {
	f := newFakeUpstream(t)
	f.serveMembers()

	f.mux.HandleFunc("/repositories/acme/website/pullrequests", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != "OPEN" {
			f.respond(w, listPage[bitbucket.PullRequest]{})
			return
		}
		f.respond(w, listPage[bitbucket.PullRequest]{
			Values: []bitbucket.PullRequest{f.pullRequest(1, "OPEN")},
		})
	})
	f.serveNestedEndpoints(map[int][]bitbucket.Activity{
		1: {
			{
				PullRequest: bitbucket.ActivityPullRequest{ID: 1},
				Approval:    &bitbucket.ApprovalPayload{Date: "2024-05-02T00:30:00+00:00", User: bitbucket.User{UUID: "{u1}"}},
			},
			{PullRequest: bitbucket.ActivityPullRequest{ID: 1}},
		},
	})

	var buf safeBuffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	resp, err := newSyncer(f, log).Run(context.Background(), baseRequest())

	require.NoError(t, err)
	activities := resp.Insert[domain.EntityActivities].([]domain.Activity)
	require.Len(t, activities, 1)
	assert.Equal(t, domain.ActivityApproval, activities[0].Kind)
	assert.Contains(t, buf.String(), "unknown activity payload")
}

func TestRun_SetupTest(t *testing.T) {
	t.Run("valid credentials yield an empty envelope", func(t *testing.T) {
		f := newFakeUpstream(t)
		f.serveMembers(bitbucket.User{UUID: "{u1}"})
		f.mux.HandleFunc("/repositories/", func(_ http.ResponseWriter, r *http.Request) {
			t.Errorf("setup test must not crawl: %s", r.URL)
		})

		req := baseRequest()
		req.SetupTest = true
		req.State = fivetran.State{Since: "2024-01-01T00:00:00Z"}

		resp, err := newSyncer(f, discard()).Run(context.Background(), req)

		require.NoError(t, err)
		assert.False(t, resp.HasMore)
		assert.Equal(t, req.State, resp.State, "a connection test must not advance the cursor")
		assert.Empty(t, resp.Insert[domain.EntityUsers].([]domain.User))
	})

	t.Run("bad credentials fail", func(t *testing.T) {
		f := newFakeUpstream(t)
		f.mux.HandleFunc("/workspaces/acme/members", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
		})

		req := baseRequest()
		req.SetupTest = true

		_, err := newSyncer(f, discard()).Run(context.Background(), req)

		require.Error(t, err)
		assert.True(t, bitbucket.IsUnauthorized(err))
	})
}

func TestRun_Failures(t *testing.T) {
	t.Run("missing workspace", func(t *testing.T) {
		f := newFakeUpstream(t)
		req := baseRequest()
		req.Secrets.Workspace = ""

		_, err := newSyncer(f, discard()).Run(context.Background(), req)

		assert.ErrorIs(t, err, config.ErrMissingWorkspace)
	})

	t.Run("mixed cursor state", func(t *testing.T) {
		f := newFakeUpstream(t)
		req := baseRequest()
		req.State = fivetran.State{
			Since:         "2024-01-01T00:00:00Z",
			NextPageLinks: []string{f.url("/repositories/acme/website/pullrequests?page=2")},
		}

		_, err := newSyncer(f, discard()).Run(context.Background(), req)

		assert.ErrorIs(t, err, cursor.ErrMixedState)
	})

	t.Run("member listing failure aborts the run", func(t *testing.T) {
		f := newFakeUpstream(t)
		f.mux.HandleFunc("/workspaces/acme/members", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		_, err := newSyncer(f, discard()).Run(context.Background(), baseRequest())

		require.Error(t, err)
	})

	t.Run("activity failure aborts the run", func(t *testing.T) {
		f := newFakeUpstream(t)
		f.serveMembers()
		f.mux.HandleFunc("/repositories/acme/website/pullrequests", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("state") != "OPEN" {
				f.respond(w, listPage[bitbucket.PullRequest]{})
				return
			}
			f.respond(w, listPage[bitbucket.PullRequest]{
				Values: []bitbucket.PullRequest{f.pullRequest(1, "OPEN")},
			})
		})
		f.mux.HandleFunc("/repositories/acme/website/pullrequests/{id}/activity", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		f.mux.HandleFunc("/repositories/acme/website/pullrequests/{id}/commits", func(w http.ResponseWriter, _ *http.Request) {
			f.respond(w, listPage[bitbucket.Commit]{})
		})

		_, err := newSyncer(f, discard()).Run(context.Background(), baseRequest())

		require.Error(t, err)
	})
}

func TestRun_DiscoversRepositories(t *testing.T) {
	f := newFakeUpstream(t)
	f.serveMembers()

	f.mux.HandleFunc("/repositories/acme", func(w http.ResponseWriter, _ *http.Request) {
		f.respond(w, listPage[bitbucket.Repository]{Values: []bitbucket.Repository{
			{Slug: "website"},
		}})
	})
	f.mux.HandleFunc("/repositories/acme/website/pullrequests", func(w http.ResponseWriter, _ *http.Request) {
		f.respond(w, listPage[bitbucket.PullRequest]{})
	})

	req := baseRequest()
	req.Secrets.RepositorySlugs = ""

	resp, err := newSyncer(f, discard()).Run(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, resp.HasMore)
}
