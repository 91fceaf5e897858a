// Package normalize converts raw Bitbucket payloads into the connector's
// output records.
package normalize

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mailbutler/fivetran-bitbucket-connector/internal/bitbucket"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/domain"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/identity"
)

// Users maps raw workspace members to user rows.
func Users(raw []bitbucket.User) []domain.User {
	users := make([]domain.User, 0, len(raw))
	for _, u := range raw {
		users = append(users, domain.User{
			UUID:        u.UUID,
			AccountID:   u.AccountID,
			Nickname:    u.Nickname,
			DisplayName: u.DisplayName,
		})
	}
	return users
}

// PullRequest maps one raw pull request to its output row. firstCommit is
// zero when the commit history was empty or unavailable; the row then falls
// back to the created timestamp.
func PullRequest(repo string, raw bitbucket.PullRequest, firstCommit time.Time) domain.PullRequest {
	created := parseTime(raw.CreatedOn)
	if firstCommit.IsZero() {
		firstCommit = created
	}
	return domain.PullRequest{
		Repository:    repo,
		ID:            raw.ID,
		URL:           raw.Links.HTML.Href,
		Title:         raw.Title,
		Author:        raw.Author.UUID,
		State:         domain.PullRequestState(raw.State),
		CommentCount:  raw.CommentCount,
		TaskCount:     raw.TaskCount,
		CreatedOn:     created,
		UpdatedOn:     parseTime(raw.UpdatedOn),
		FirstCommitOn: firstCommit,
	}
}

// Participants maps the reviewer/participant entries of a pull request
// detail record to participant rows.
func Participants(repo string, pr bitbucket.PullRequest) []domain.Participant {
	participants := make([]domain.Participant, 0, len(pr.Participants))
	for _, p := range pr.Participants {
		participants = append(participants, domain.Participant{
			Repository:     repo,
			PullRequestID:  pr.ID,
			UserID:         p.User.UUID,
			Role:           domain.ParticipantRole(p.Role),
			Approved:       p.Approved,
			ReviewState:    p.State,
			ParticipatedOn: parseTime(p.ParticipatedOn),
		})
	}
	return participants
}

// Activity classifies one raw variant event into a normalized activity.
// Exactly one of the four payloads is populated in practice; a record with
// none of them is upstream schema drift, logged as a warning and dropped.
func Activity(repo string, raw bitbucket.Activity, log *slog.Logger) (domain.Activity, bool) {
	prID := raw.PullRequest.ID
	switch {
	case raw.Approval != nil:
		return activity(repo, prID, domain.ActivityApproval, "approval", raw.Approval.Date, raw.Approval.User), true
	case raw.Comment != nil:
		return activity(repo, prID, domain.ActivityComment, "comment", raw.Comment.CreatedOn, raw.Comment.User), true
	case raw.Update != nil:
		kind := domain.ActivityKind(strings.ToLower(raw.Update.State))
		// The hash input uses the verbatim upstream state string, so ids
		// stay stable with the ones generated historically.
		return activity(repo, prID, kind, raw.Update.State, raw.Update.Date, raw.Update.Author), true
	case raw.ChangesRequested != nil:
		return activity(repo, prID, domain.ActivityChangeRequest, "changeRequest", raw.ChangesRequested.Date, raw.ChangesRequested.User), true
	default:
		log.Warn("unknown activity payload, dropping record", "repository", repo, "pull_request_id", prID)
		return domain.Activity{}, false
	}
}

// Activities classifies a whole activity feed, dropping unknown records.
func Activities(repo string, raw []bitbucket.Activity, log *slog.Logger) []domain.Activity {
	activities := make([]domain.Activity, 0, len(raw))
	for _, r := range raw {
		a, ok := Activity(repo, r, log)
		if !ok {
			continue
		}
		activities = append(activities, a)
	}
	return activities
}

func activity(repo string, prID int, kind domain.ActivityKind, discriminant, rawDate string, user bitbucket.User) domain.Activity {
	return domain.Activity{
		// The raw upstream timestamp string goes into the hash; parsing
		// and reformatting it would change the id across runs.
		UUID:          identity.StableID(strconv.Itoa(prID), discriminant, rawDate),
		Kind:          kind,
		Date:          parseTime(rawDate),
		UserID:        user.UUID,
		Repository:    repo,
		PullRequestID: prID,
	}
}

// parseTime parses an upstream RFC 3339 timestamp, zero when malformed.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
