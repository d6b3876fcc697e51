package eventbus

// Topic names for publish-cycle lifecycle events.
const (
	EventPostPublished  = "post:published"
	EventPostFailed     = "post:failed"
	EventAuthChallenge  = "auth:challenge"
	EventCycleCompleted = "cycle:completed"
)

// PostEventData describes the outcome of one account's publish attempt.
type PostEventData struct {
	Username string `json:"username"`
	MediaID  string `json:"media_id,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ChallengeEventData signals that login for an account got challenged.
type ChallengeEventData struct {
	Username string `json:"username"`
	Contact  string `json:"contact,omitempty"`
}

// CycleEventData summarizes one finished publish cycle.
type CycleEventData struct {
	Accounts  int `json:"accounts"`
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
