package api

import (
	"time"

	"postflow/internal/posts"
	"postflow/internal/publisher"
)

// FromPost converts a store post into its DTO.
func FromPost(post *posts.Post) Post {
	if post == nil {
		return Post{}
	}
	return Post{
		ID:            post.ID,
		ClientID:      post.ClientID,
		MediaRef:      post.MediaRef,
		Caption:       post.Caption,
		Hashtags:      post.Hashtags,
		ScheduledTime: formatOptionalTime(post.ScheduledTime),
		Status:        string(post.Status),
		Feedback:      post.Feedback,
		ExternalID:    post.ExternalID,
		CreatedAt:     formatTime(post.CreatedAt),
		UpdatedAt:     formatTime(post.UpdatedAt),
		PublishedAt:   formatOptionalTime(post.PublishedAt),
	}
}

// FromPosts converts a slice of store posts, skipping nils.
func FromPosts(list []*posts.Post) []Post {
	out := make([]Post, 0, len(list))
	for _, post := range list {
		if post == nil {
			continue
		}
		out = append(out, FromPost(post))
	}
	return out
}

// FromClient converts a store client into its DTO.
func FromClient(client *posts.Client) Client {
	if client == nil {
		return Client{}
	}
	return Client{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		CreatedAt: formatTime(client.CreatedAt),
	}
}

// FromClients converts a slice of store clients.
func FromClients(list []*posts.Client) []Client {
	out := make([]Client, 0, len(list))
	for _, client := range list {
		if client == nil {
			continue
		}
		out = append(out, FromClient(client))
	}
	return out
}

// FromAttempts converts publish attempts into DTOs.
func FromAttempts(list []posts.PublishAttempt) []Attempt {
	out := make([]Attempt, 0, len(list))
	for _, attempt := range list {
		out = append(out, Attempt{
			ID:            attempt.ID,
			PostID:        attempt.PostID,
			AttemptedAt:   formatTime(attempt.AttemptedAt),
			Succeeded:     attempt.Succeeded,
			ExternalID:    attempt.ExternalID,
			Error:         attempt.Error,
			DurationMS:    attempt.Duration.Milliseconds(),
			CorrelationID: attempt.CorrelationID,
		})
	}
	return out
}

// MergeStats converts store counts into a map keyed by status string with
// every status present.
func MergeStats(stats map[posts.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range posts.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}

// FromCycleReport converts a worker cycle report into its DTO.
func FromCycleReport(report *publisher.CycleReport) *CycleSummary {
	if report == nil {
		return nil
	}
	summary := &CycleSummary{
		StartedAt:  formatTime(report.StartedAt),
		FinishedAt: formatTime(report.FinishedAt),
		Candidates: report.Candidates,
		Published:  report.Published,
		Failed:     report.Failed,
		Deferred:   report.Deferred,
		Cancelled:  report.Cancelled,
	}
	for _, outcome := range report.Outcomes {
		summary.Outcomes = append(summary.Outcomes, CycleOutcome{
			PostID:     outcome.PostID,
			Result:     outcome.Result,
			ExternalID: outcome.ExternalID,
			Error:      outcome.Error,
		})
	}
	return summary
}

// FromWorkerStatus converts worker diagnostics into the status DTO.
func FromWorkerStatus(summary publisher.StatusSummary) WorkerStatus {
	return WorkerStatus{
		Running:   summary.Running,
		LastCycle: FromCycleReport(summary.LastCycle),
		LastError: summary.LastError,
		Counts:    MergeStats(summary.Counts),
	}
}
