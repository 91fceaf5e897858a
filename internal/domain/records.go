// Package domain defines the normalized output records the connector emits
// and the destination table schemas they load into.
package domain

import "time"

// Entity table names as they appear in the destination warehouse.
const (
	EntityUsers        = "users"
	EntityPullRequests = "pull_requests"
	EntityActivities   = "pull_request_activities"
	EntityParticipants = "pull_request_participants"
)

// PrimaryKeys declares the destination primary key per entity. The shape is
// fixed; the platform uses it to upsert rows.
func PrimaryKeys() map[string][]string {
	return map[string][]string{
		EntityUsers:        {"uuid"},
		EntityPullRequests: {"repository", "id"},
		EntityActivities:   {"uuid"},
		EntityParticipants: {"repository", "pull_request_id", "user_id"},
	}
}

// User is one workspace member. Full replace on each run.
type User struct {
	UUID        string `json:"uuid"`
	AccountID   string `json:"account_id"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"display_name"`
}

// PullRequestState is the upstream lifecycle state of a pull request.
type PullRequestState string

const (
	StateOpen     PullRequestState = "OPEN"
	StateMerged   PullRequestState = "MERGED"
	StateDeclined PullRequestState = "DECLINED"
)

// PullRequest is one pull request row, keyed by (repository, id). Every
// fetch fully replaces the row.
type PullRequest struct {
	Repository    string           `json:"repository"`
	ID            int              `json:"id"`
	URL           string           `json:"url"`
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	State         PullRequestState `json:"state"`
	CommentCount  int              `json:"comment_count"`
	TaskCount     int              `json:"task_count"`
	CreatedOn     time.Time        `json:"created_on"`
	UpdatedOn     time.Time        `json:"updated_on"`
	FirstCommitOn time.Time        `json:"first_commit_on"`
}

// ActivityKind is the normalized event kind of a pull request activity.
type ActivityKind string

const (
	ActivityComment       ActivityKind = "comment"
	ActivityApproval      ActivityKind = "approval"
	ActivityMerged        ActivityKind = "merged"
	ActivityOpen          ActivityKind = "open"
	ActivityDeclined      ActivityKind = "declined"
	ActivityChangeRequest ActivityKind = "changeRequest"
)

// Activity is one discrete event on a pull request, keyed by its synthetic
// content-hash id. Append-only: activities are never updated, only newly
// discovered ones are emitted.
type Activity struct {
	UUID          string       `json:"uuid"`
	Kind          ActivityKind `json:"type"`
	Date          time.Time    `json:"date"`
	UserID        string       `json:"user_id"`
	Repository    string       `json:"repository"`
	PullRequestID int          `json:"pull_request_id"`
}

// ParticipantRole is the upstream role of a pull request participant.
type ParticipantRole string

const (
	RoleParticipant ParticipantRole = "PARTICIPANT"
	RoleReviewer    ParticipantRole = "REVIEWER"
)

// Participant is one (pull request, user) reviewer relationship, keyed by
// (repository, pull_request_id, user_id). Full replace on each fetch.
type Participant struct {
	Repository     string          `json:"repository"`
	PullRequestID  int             `json:"pull_request_id"`
	UserID         string          `json:"user_id"`
	Role           ParticipantRole `json:"role"`
	Approved       bool            `json:"approved"`
	ReviewState    string          `json:"review_state,omitempty"`
	ParticipatedOn time.Time       `json:"participated_on"`
}
