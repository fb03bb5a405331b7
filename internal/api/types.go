package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Post describes a post in a transport-friendly format.
type Post struct {
	ID            int64  `json:"id"`
	ClientID      int64  `json:"clientId"`
	MediaRef      string `json:"mediaRef"`
	Caption       string `json:"caption"`
	Hashtags      string `json:"hashtags"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
	Status        string `json:"status"`
	Feedback      string `json:"feedback,omitempty"`
	ExternalID    string `json:"externalId,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	PublishedAt   string `json:"publishedAt,omitempty"`
}

// Client describes a client in a transport-friendly format.
type Client struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Attempt describes one publish attempt.
type Attempt struct {
	ID            int64  `json:"id"`
	PostID        int64  `json:"postId"`
	AttemptedAt   string `json:"attemptedAt"`
	Succeeded     bool   `json:"succeeded"`
	ExternalID    string `json:"externalId,omitempty"`
	Error         string `json:"error,omitempty"`
	DurationMS    int64  `json:"durationMs"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// PostDetail pairs a post with its publish history.
type PostDetail struct {
	Post     Post      `json:"post"`
	Attempts []Attempt `json:"attempts"`
}

// CreateClientRequest registers a client.
type CreateClientRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
}

// ScheduleRequest creates a pending post.
type ScheduleRequest struct {
	ClientID      int64      `json:"clientId" validate:"required,gt=0"`
	MediaRef      string     `json:"mediaRef" validate:"required,max=1024"`
	Caption       string     `json:"caption" validate:"max=4000"`
	Hashtags      string     `json:"hashtags" validate:"max=4000"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
}

// ScheduleResult is the created post plus non-fatal warnings.
type ScheduleResult struct {
	Post     Post     `json:"post"`
	Warnings []string `json:"warnings,omitempty"`
}

// EditRequest replaces the caption and hashtags of a pending post.
type EditRequest struct {
	Caption  string `json:"caption" validate:"max=4000"`
	Hashtags string `json:"hashtags" validate:"max=4000"`
}

// ReviewRequest carries the client's feedback for approve and reject.
type ReviewRequest struct {
	Feedback string `json:"feedback" validate:"max=2000"`
}

// ListQuery narrows post listings.
type ListQuery struct {
	ClientID int64
	Statuses []string
	Limit    int
	Newest   bool
}

// TokenResponse returns a freshly issued client token.
type TokenResponse struct {
	ClientID  int64  `json:"clientId"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// CycleSummary reports the outcome of one publish cycle.
type CycleSummary struct {
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt"`
	Candidates int    `json:"candidates"`
	Published  int    `json:"published"`
	Failed     int    `json:"failed"`
	Deferred   int    `json:"deferred"`
	Cancelled  bool   `json:"cancelled,omitempty"`

	Outcomes []CycleOutcome `json:"outcomes,omitempty"`
}

// CycleOutcome is what happened to one post during a cycle.
type CycleOutcome struct {
	PostID     int64  `json:"postId"`
	Result     string `json:"result"`
	ExternalID string `json:"externalId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WorkerStatus summarizes publish worker state.
type WorkerStatus struct {
	Running   bool           `json:"running"`
	LastCycle *CycleSummary  `json:"lastCycle,omitempty"`
	LastError string         `json:"lastError,omitempty"`
	Counts    map[string]int `json:"counts"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	DatabasePath string       `json:"databasePath"`
	LockFilePath string       `json:"lockFilePath"`
	Publishing   bool         `json:"publishing"`
	Worker       WorkerStatus `json:"worker"`
	Checks       []Check      `json:"checks,omitempty"`
}

// Check mirrors one preflight result recorded at daemon start.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
