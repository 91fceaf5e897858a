// Package fivetran defines the request/response envelope of the data
// integration platform and the top-level invocation boundary.
package fivetran

// Request is the inbound invocation envelope.
type Request struct {
	Agent     string  `json:"agent,omitempty"`
	State     State   `json:"state"`
	Secrets   Secrets `json:"secrets"`
	SetupTest bool    `json:"setup_test,omitempty"`
	SyncID    string  `json:"sync_id,omitempty"`
}

// State is the cursor the platform persists between invocations. Exactly one
// of the two fields is populated: Since once the initial backfill has fully
// drained, NextPageLinks while backfill pages remain outstanding.
type State struct {
	Since         string   `json:"since,omitempty"`
	NextPageLinks []string `json:"nextPageLinks,omitempty"`
}

// Secrets carries the connector credentials and optional repository scoping.
// Either Username/Password or Token must be set.
type Secrets struct {
	Workspace       string `json:"workspace,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	Token           string `json:"token,omitempty"`
	RepositorySlugs string `json:"repositorySlugs,omitempty"`
}

// TableSchema declares the primary key of one destination table.
type TableSchema struct {
	PrimaryKey []string `json:"primary_key"`
}

// SuccessResponse is the outbound envelope of a completed run.
type SuccessResponse struct {
	State   State                  `json:"state"`
	Insert  map[string]any         `json:"insert"`
	Schema  map[string]TableSchema `json:"schema,omitempty"`
	HasMore bool                   `json:"hasMore"`
}

// ErrorResponse is the outbound envelope of a failed run. No partial insert
// data accompanies it.
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}
