package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres persists runs and webhook state through database/sql with the pgx
// driver. EnsureSchema creates the tables on startup; the schema is small
// enough that full migrations would be overkill.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            status TEXT NOT NULL,
            submitted_at TIMESTAMPTZ NOT NULL,
            started_at TIMESTAMPTZ,
            finished_at TIMESTAMPTZ,
            integer_fleet BOOLEAN NOT NULL DEFAULT FALSE,
            disabled_policies TEXT[] NOT NULL DEFAULT '{}',
            objective DOUBLE PRECISION,
            active_policies TEXT[] NOT NULL DEFAULT '{}',
            error TEXT NOT NULL DEFAULT '',
            rows_n INTEGER NOT NULL DEFAULT 0,
            vars_n INTEGER NOT NULL DEFAULT 0,
            int_vars_n INTEGER NOT NULL DEFAULT 0,
            nonzeros_n INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE INDEX IF NOT EXISTS runs_status_idx ON runs (status, id)`,
		`CREATE TABLE IF NOT EXISTS run_results (
            run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            format TEXT NOT NULL,
            payload BYTEA NOT NULL,
            PRIMARY KEY (run_id, format)
        )`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
            id UUID PRIMARY KEY,
            url TEXT NOT NULL,
            events TEXT[] NOT NULL,
            secret TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
            id UUID PRIMARY KEY,
            subscription_id UUID NOT NULL,
            event_type TEXT NOT NULL,
            url TEXT NOT NULL,
            secret TEXT NOT NULL DEFAULT '',
            payload BYTEA NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            attempts INTEGER NOT NULL DEFAULT 0,
            next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            last_error TEXT NOT NULL DEFAULT '',
            response_code INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE INDEX IF NOT EXISTS webhook_due_idx ON webhook_deliveries (status, next_attempt_at)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run Run) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, status, submitted_at, integer_fleet, disabled_policies)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Name, run.Status, run.SubmittedAt, run.IntegerFleet, stringArray(run.DisabledPolicies))
	return err
}

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	row := p.db.QueryRowContext(ctx, selectRun+` WHERE id = $1`, id)
	return scanRun(row)
}

const selectRun = `SELECT id::text, name, status, submitted_at, started_at, finished_at,
       integer_fleet, array_to_string(disabled_policies, ','), objective,
       array_to_string(active_policies, ','), error,
       rows_n, vars_n, int_vars_n, nonzeros_n
FROM runs`

func (p *Postgres) ListRuns(ctx context.Context, status, cursor string, limit int) ([]Run, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := selectRun + ` WHERE ($1 = '' OR status = $1) AND ($2 = '' OR id::text > $2)
          ORDER BY id LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, status, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) MarkRunStarted(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, started_at = $2 WHERE id = $3`, RunRunning, at, id)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

func (p *Postgres) MarkRunFinished(ctx context.Context, id string, at time.Time, out Outcome) error {
	var obj any
	if out.Status == RunCompleted {
		obj = out.Objective
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, finished_at = $2, objective = $3,
                active_policies = $4, error = $5,
                rows_n = $6, vars_n = $7, int_vars_n = $8, nonzeros_n = $9
         WHERE id = $10`,
		out.Status, at, obj, stringArray(out.ActivePolicies), out.Error,
		out.Rows, out.Vars, out.IntVars, out.Nonzeros, id)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

func (p *Postgres) SaveResults(ctx context.Context, runID, format string, payload []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO run_results (run_id, format, payload) VALUES ($1, $2, $3)
         ON CONFLICT (run_id, format) DO UPDATE SET payload = EXCLUDED.payload`,
		runID, format, payload)
	return err
}

func (p *Postgres) GetResults(ctx context.Context, runID, format string) ([]byte, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM run_results WHERE run_id = $1 AND format = $2`,
		runID, format).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payload, err
}

func (p *Postgres) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	sub.ID = uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1, $2, $3, $4)`,
		sub.ID, sub.URL, stringArray(sub.Events), sub.Secret)
	return sub, err
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, array_to_string(events, ','), secret
         FROM subscriptions WHERE $1 = ANY(events) ORDER BY id`,
		eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, array_to_string(events, ','), secret
         FROM subscriptions WHERE ($1 = '' OR id::text > $1) ORDER BY id LIMIT $2`,
		cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, s)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return notFoundIfZero(res)
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		id, subscriptionID, eventType, url, secret, payload)
	return id, err
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, subscription_id::text, event_type, url, secret, payload, status, attempts
         FROM webhook_deliveries
         WHERE status IN ('pending', 'retry') AND next_attempt_at <= now()
         ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET status = 'delivered', attempts = attempts + 1, response_code = $1 WHERE id = $2`,
			responseCode, id)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status = 'retry', attempts = attempts + 1,
                next_attempt_at = $1, last_error = $2, response_code = $3
         WHERE id = $4`,
		next, lastError, responseCode, id)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status = 'failed', last_error = $1, response_code = $2 WHERE id = $3`,
		lastError, responseCode, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var started, finished sql.NullTime
	var objective sql.NullFloat64
	var disabled, active string
	err := row.Scan(&r.ID, &r.Name, &r.Status, &r.SubmittedAt, &started, &finished,
		&r.IntegerFleet, &disabled, &objective, &active, &r.Error,
		&r.Rows, &r.Vars, &r.IntVars, &r.Nonzeros)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	if objective.Valid {
		r.Objective = &objective.Float64
	}
	r.DisabledPolicies = splitList(disabled)
	r.ActivePolicies = splitList(active)
	return r, nil
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var s Subscription
	var events string
	if err := row.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
		return s, err
	}
	s.Events = splitList(events)
	return s, nil
}

// stringArray encodes a slice in array literal form. Policy names and event
// types never contain commas or braces, so no quoting is needed.
func stringArray(v []string) any {
	if len(v) == 0 {
		return "{}"
	}
	return "{" + strings.Join(v, ",") + "}"
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func notFoundIfZero(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
