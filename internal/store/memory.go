package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the in-memory store used when no DATABASE_URL is set. Runs are
// kept in submission order so cursor pagination is stable.
type Memory struct {
	mu      sync.Mutex
	runs    map[string]Run
	runIDs  []string
	results map[string]map[string][]byte // runID -> format -> payload
	subs    []Subscription

	deliveries  map[string]*memDelivery
	deliveryIDs []string
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]Run{},
		results:    map[string]map[string][]byte{},
		deliveries: map[string]*memDelivery{},
	}
}

type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
}

func (m *Memory) CreateRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.runIDs = append(m.runIDs, run.ID)
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, status, cursor string, limit int) ([]Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i, id := range m.runIDs {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []Run{}
	var last string
	for i := start; i < len(m.runIDs) && len(out) < limit; i++ {
		r := m.runs[m.runIDs[i]]
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
		last = r.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (m *Memory) MarkRunStarted(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = RunRunning
	r.StartedAt = &at
	m.runs[id] = r
	return nil
}

func (m *Memory) MarkRunFinished(ctx context.Context, id string, at time.Time, out Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = out.Status
	r.FinishedAt = &at
	r.ActivePolicies = out.ActivePolicies
	r.Error = out.Error
	r.Rows, r.Vars, r.IntVars, r.Nonzeros = out.Rows, out.Vars, out.IntVars, out.Nonzeros
	if out.Status == RunCompleted {
		obj := out.Objective
		r.Objective = &obj
	}
	m.runs[id] = r
	return nil
}

func (m *Memory) SaveResults(ctx context.Context, runID, format string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrNotFound
	}
	byFormat := m.results[runID]
	if byFormat == nil {
		byFormat = map[string][]byte{}
		m.results[runID] = byFormat
	}
	byFormat[format] = append([]byte(nil), payload...)
	return nil
}

func (m *Memory) GetResults(ctx context.Context, runID, format string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.results[runID][format]
	if !ok {
		return nil, ErrNotFound
	}
	return payload, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.ID = uuid.New().String()
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i := range m.subs {
			if m.subs[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(m.subs) {
		end = len(m.subs)
	}
	items := append([]Subscription(nil), m.subs[start:end]...)
	next := ""
	if end < len(m.subs) && end > start {
		next = m.subs[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.subs[:0]
	for _, s := range m.subs {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs = out
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID: id, SubscriptionID: subscriptionID, EventType: eventType,
			URL: url, Secret: secret, Payload: payload, Status: "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.deliveryIDs = append(m.deliveryIDs, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryIDs {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	if success {
		d.Status = "delivered"
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.deliveries[id]; d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
	}
	return nil
}
