package domain

// Batches accumulates per-entity output rows for one run. Concurrent fetches
// each build their own Batches value and the results are merged by
// concatenation once all of them settle; rows carry no ordering, only key
// uniqueness.
type Batches struct {
	Users        []User
	PullRequests []PullRequest
	Activities   []Activity
	Participants []Participant
}

// Merge appends every batch of other onto b.
func (b *Batches) Merge(other Batches) {
	b.Users = append(b.Users, other.Users...)
	b.PullRequests = append(b.PullRequests, other.PullRequests...)
	b.Activities = append(b.Activities, other.Activities...)
	b.Participants = append(b.Participants, other.Participants...)
}

// Inserts returns the per-entity insert map for the response envelope.
// Every slice is non-nil so empty batches serialize as [] rather than null.
func (b *Batches) Inserts() map[string]any {
	users := b.Users
	if users == nil {
		users = []User{}
	}
	pullRequests := b.PullRequests
	if pullRequests == nil {
		pullRequests = []PullRequest{}
	}
	activities := b.Activities
	if activities == nil {
		activities = []Activity{}
	}
	participants := b.Participants
	if participants == nil {
		participants = []Participant{}
	}
	return map[string]any{
		EntityUsers:        users,
		EntityPullRequests: pullRequests,
		EntityActivities:   activities,
		EntityParticipants: participants,
	}
}
