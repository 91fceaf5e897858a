package bitbucket

// page is the uniform Bitbucket list envelope: a fixed-size window of values
// plus an optional absolute link to the next window.
type page[T any] struct {
	Size    int    `json:"size"`
	Page    int    `json:"page"`
	Pagelen int    `json:"pagelen"`
	Next    string `json:"next,omitempty"`
	Values  []T    `json:"values"`
}

// User is a raw Bitbucket account record.
type User struct {
	UUID        string `json:"uuid"`
	AccountID   string `json:"account_id"`
	Nickname    string `json:"nickname"`
	DisplayName string `json:"display_name"`
}

// Member is one entry of the workspace members feed. Only entries of type
// workspace_membership carry an actual member.
type Member struct {
	Type string `json:"type"`
	User User   `json:"user"`
}

// Repository is a raw workspace repository record.
type Repository struct {
	UUID string `json:"uuid"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Link is a single href entry of a links object.
type Link struct {
	Href string `json:"href"`
}

// PullRequestLinks are the addresses embedded in every pull request payload.
// Nested fetches always follow these verbatim instead of reconstructing URLs
// from workspace/repo/id, which keeps the client robust to upstream URL
// scheme changes.
type PullRequestLinks struct {
	Self     Link `json:"self"`
	HTML     Link `json:"html"`
	Activity Link `json:"activity"`
	Commits  Link `json:"commits"`
}

// PullRequest is a raw pull request record. Timestamps stay as the verbatim
// upstream strings; parsing happens during normalization. Participants are
// only populated by the single-pull-request detail fetch.
type PullRequest struct {
	ID           int              `json:"id"`
	Title        string           `json:"title"`
	State        string           `json:"state"`
	CommentCount int              `json:"comment_count"`
	TaskCount    int              `json:"task_count"`
	Author       User             `json:"author"`
	CreatedOn    string           `json:"created_on"`
	UpdatedOn    string           `json:"updated_on"`
	Links        PullRequestLinks `json:"links"`
	Participants []Participant    `json:"participants,omitempty"`
}

// Participant is a raw reviewer/participant entry of a pull request detail.
type Participant struct {
	User           User   `json:"user"`
	Role           string `json:"role"`
	Approved       bool   `json:"approved"`
	State          string `json:"state"`
	ParticipatedOn string `json:"participated_on"`
}

// Commit is one entry of a pull request's commit listing.
type Commit struct {
	Hash string `json:"hash"`
	Date string `json:"date"`
}

// Activity is a raw pull request event. It is a variant record: at most one
// of the four payload fields is populated.
type Activity struct {
	PullRequest      ActivityPullRequest   `json:"pull_request"`
	Approval         *ApprovalPayload      `json:"approval,omitempty"`
	Comment          *CommentPayload       `json:"comment,omitempty"`
	Update           *UpdatePayload        `json:"update,omitempty"`
	ChangesRequested *ChangeRequestPayload `json:"changes_requested,omitempty"`
}

// ActivityPullRequest identifies the pull request an event belongs to.
type ActivityPullRequest struct {
	ID int `json:"id"`
}

// ApprovalPayload is the payload of an approval event.
type ApprovalPayload struct {
	Date string `json:"date"`
	User User   `json:"user"`
}

// CommentPayload is the payload of a comment event.
type CommentPayload struct {
	CreatedOn string `json:"created_on"`
	User      User   `json:"user"`
}

// UpdatePayload is the payload of a state transition event.
type UpdatePayload struct {
	State  string `json:"state"`
	Date   string `json:"date"`
	Author User   `json:"author"`
}

// ChangeRequestPayload is the payload of a change-request event.
type ChangeRequestPayload struct {
	Date string `json:"date"`
	User User   `json:"user"`
}
