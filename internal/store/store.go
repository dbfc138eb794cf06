// Package store persists optimization runs, their exported results, and the
// webhook subscription/delivery state. Two implementations: in-memory for
// development and tests, Postgres for everything else.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Run statuses, in lifecycle order. Terminal statuses are completed,
// infeasible, unbounded and failed.
const (
	RunQueued     = "queued"
	RunRunning    = "running"
	RunCompleted  = "completed"
	RunInfeasible = "infeasible"
	RunUnbounded  = "unbounded"
	RunFailed     = "failed"
)

// Run is one submitted optimization: the dataset and scenario as received,
// plus lifecycle state and, once solved, the headline outcome. Full result
// records are stored separately and fetched on demand.
type Run struct {
	ID          string
	Name        string
	Status      string
	SubmittedAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time

	// Scenario echo, so a run is reproducible from its record alone.
	IntegerFleet     bool
	DisabledPolicies []string

	// Outcome. Objective is set only on completed runs.
	Objective      *float64
	ActivePolicies []string
	Error          string

	// Model shape, for capacity planning and debugging.
	Rows, Vars, IntVars, Nonzeros int
}

// Terminal reports whether the run will not change state again.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunCompleted, RunInfeasible, RunUnbounded, RunFailed:
		return true
	}
	return false
}

// Outcome summarizes a finished solve for MarkRunFinished.
type Outcome struct {
	Status                        string // a terminal run status
	Objective                     float64
	ActivePolicies                []string
	Error                         string
	Rows, Vars, IntVars, Nonzeros int
}

// Subscription registers a webhook endpoint for run lifecycle events
// (run.completed, run.infeasible, run.failed).
type Subscription struct {
	ID     string
	URL    string
	Events []string
	Secret string
}

// Store is the persistence interface used by the API server and the webhook
// worker.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, status, cursor string, limit int) (items []Run, nextCursor string, err error)
	MarkRunStarted(ctx context.Context, id string, at time.Time) error
	MarkRunFinished(ctx context.Context, id string, at time.Time, out Outcome) error

	// Results. Format is "yaml" or "csv"; payloads are stored as written by
	// the exporter.
	SaveResults(ctx context.Context, runID, format string, payload []byte) error
	GetResults(ctx context.Context, runID, format string) ([]byte, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook delivery queue
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error
}
