package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transpath/internal/constraints"
	"transpath/internal/engine"
	"transpath/internal/export"
	"transpath/internal/input"
	"transpath/internal/metrics"
	"transpath/internal/model"
	"transpath/internal/solve"
	"transpath/internal/store"
)

type runRequest struct {
	Dataset    string       `json:"dataset,omitempty"`    // inline YAML document
	DatasetRef string       `json:"datasetRef,omitempty"` // e.g. file://corridor.yaml
	Scenario   scenarioBody `json:"scenario"`
	Solve      solveBody    `json:"solve"`
}

type scenarioBody struct {
	Name             string   `json:"name"`
	IntegerFleet     bool     `json:"integerFleet"`
	DisabledPolicies []string `json:"disabledPolicies"`
}

type solveBody struct {
	TimeLimitSec float64 `json:"timeLimitSec"`
	MIPRelGap    float64 `json:"mipRelGap"`
	Threads      int     `json:"threads"`
}

type subscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// RunsHandler serves /v1/runs: POST submits, GET lists.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submitRun(w, r)
	case http.MethodGet:
		s.listRuns(w, r)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
	}
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(r) {
		writeProblem(w, http.StatusTooManyRequests, "Rate Limited", "submission rate exceeded", r.URL.Path)
		return
	}
	if p := s.getPrincipal(r); !p.CanSubmit() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "modeler or admin role required", r.URL.Path)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateRunRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid run request", err.Error(), r.URL.Path)
		return
	}

	data := []byte(req.Dataset)
	if req.DatasetRef != "" {
		var err error
		data, err = s.Sources.Resolve(r.Context(), req.DatasetRef)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Dataset ref not resolvable", err.Error(), r.URL.Path)
			return
		}
	}

	ds, err := input.Load(bytes.NewReader(data))
	if err != nil {
		var ie *model.DataIntegrityError
		if errors.As(err, &ie) {
			writeProblem(w, http.StatusUnprocessableEntity, "Invalid dataset", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusBadRequest, "Unreadable dataset", err.Error(), r.URL.Path)
		return
	}

	// Unknown policy names are a client mistake; catch them before queueing.
	known := map[string]bool{}
	for _, g := range constraints.Policy() {
		known[g.Name] = true
	}
	for _, name := range req.Scenario.DisabledPolicies {
		if !known[name] {
			writeProblem(w, http.StatusBadRequest, "Unknown policy", "no policy generator named "+name, r.URL.Path)
			return
		}
	}

	run := store.Run{
		ID:               uuid.New().String(),
		Name:             req.Scenario.Name,
		Status:           store.RunQueued,
		SubmittedAt:      time.Now().UTC(),
		IntegerFleet:     req.Scenario.IntegerFleet,
		DisabledPolicies: req.Scenario.DisabledPolicies,
	}
	if err := s.Store.CreateRun(r.Context(), run); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}

	sc := engine.Scenario{
		Name:             req.Scenario.Name,
		IntegerFleet:     req.Scenario.IntegerFleet,
		DisabledPolicies: req.Scenario.DisabledPolicies,
	}
	opts := solve.Options{
		TimeLimit: time.Duration(req.Solve.TimeLimitSec * float64(time.Second)),
		MIPRelGap: req.Solve.MIPRelGap,
		Threads:   req.Solve.Threads,
	}
	go s.execute(run.ID, ds, sc, opts)

	writeJSON(w, http.StatusAccepted, map[string]any{"id": run.ID, "status": run.Status})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	items, next, err := s.Store.ListRuns(r.Context(), q.Get("status"), q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, runJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "nextCursor": next})
}

// RunByIDHandler serves /v1/runs/{id}, /v1/runs/{id}/results and
// /v1/runs/{id}/events/ws.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		run, err := s.Store.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Run not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, runJSON(&run))
	case len(parts) == 2 && parts[1] == "results" && r.Method == http.MethodGet:
		s.getResults(w, r, id)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "ws":
		s.RunEventsWS(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request, id string) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "yaml"
	}
	if err := validateResultFormat(format); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid format", err.Error(), r.URL.Path)
		return
	}
	run, err := s.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return
	}
	payload, err := s.Store.GetResults(r.Context(), id, format)
	if errors.Is(err, store.ErrNotFound) {
		detail := "no results for run status " + run.Status
		writeProblem(w, http.StatusConflict, "Results not available", detail, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get results failed", err.Error(), r.URL.Path)
		return
	}
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/x-yaml")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// SubscriptionsHandler serves /v1/subscriptions: POST registers, GET lists.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if p := s.getPrincipal(r); !p.CanSubmit() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "modeler or admin role required", r.URL.Path)
			return
		}
		var req subscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSubscriptionRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), store.Subscription{
			URL: req.URL, Events: req.Events, Secret: req.Secret,
		})
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": sub.ID, "url": sub.URL, "events": sub.Events})
	case http.MethodGet:
		items, next, err := s.Store.ListSubscriptions(r.Context(), r.URL.Query().Get("cursor"), 100)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		out := make([]map[string]any, 0, len(items))
		for _, sub := range items {
			out = append(out, map[string]any{"id": sub.ID, "url": sub.URL, "events": sub.Events})
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": out, "nextCursor": next})
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "", r.URL.Path)
	}
}

// SubscriptionByIDHandler serves DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" || strings.Contains(id, "/") || r.Method != http.MethodDelete {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if p := s.getPrincipal(r); !p.CanSubmit() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "modeler or admin role required", r.URL.Path)
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) MetricsHandler() http.Handler {
	metrics.RegisterDefault()
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

// execute runs assemble → solve → export in the background and records the
// outcome. Lifecycle events go to the broker; terminal events also fan out
// to webhook subscribers.
func (s *Server) execute(id string, ds *model.Dataset, sc engine.Scenario, opts solve.Options) {
	ctx := context.Background()
	_ = s.Store.MarkRunStarted(ctx, id, time.Now().UTC())
	s.Broker.Publish(id, RunEvent{Type: "run.started", Data: map[string]any{"runId": id}})

	build, err := engine.Assemble(ds, sc)
	if err != nil {
		s.finish(ctx, id, store.Outcome{Status: store.RunFailed, Error: err.Error()})
		return
	}
	shape := store.Outcome{
		Rows: build.Stats.Rows, Vars: build.Stats.Vars,
		IntVars: build.Stats.IntVars, Nonzeros: build.Stats.Nonzeros,
	}
	s.Broker.Publish(id, RunEvent{Type: "run.solving", Data: map[string]any{
		"runId": id, "rows": build.Stats.Rows, "vars": build.Stats.Vars,
	}})

	sol, err := s.Solver(build.Model, opts)
	switch {
	case errors.Is(err, solve.ErrInfeasible):
		out := shape
		out.Status = store.RunInfeasible
		out.Error = err.Error()
		out.ActivePolicies = build.ActivePolicies
		s.finish(ctx, id, out)
	case errors.Is(err, solve.ErrUnbounded):
		out := shape
		out.Status = store.RunUnbounded
		out.Error = err.Error()
		s.finish(ctx, id, out)
	case err != nil:
		out := shape
		out.Status = store.RunFailed
		out.Error = err.Error()
		s.finish(ctx, id, out)
	default:
		results := export.Collect(build, sol)
		var ybuf, cbuf bytes.Buffer
		if err := export.WriteYAML(&ybuf, results); err == nil {
			_ = s.Store.SaveResults(ctx, id, "yaml", ybuf.Bytes())
		}
		if err := export.WriteCSV(&cbuf, results); err == nil {
			_ = s.Store.SaveResults(ctx, id, "csv", cbuf.Bytes())
		}
		out := shape
		out.Status = store.RunCompleted
		out.Objective = sol.Objective
		out.ActivePolicies = build.ActivePolicies
		s.finish(ctx, id, out)
	}
}

func (s *Server) finish(ctx context.Context, id string, out store.Outcome) {
	_ = s.Store.MarkRunFinished(ctx, id, time.Now().UTC(), out)
	metrics.Runs.WithLabelValues(out.Status).Inc()

	data := map[string]any{"runId": id, "status": out.Status}
	if out.Status == store.RunCompleted {
		data["objective"] = out.Objective
	}
	if out.Error != "" {
		data["error"] = out.Error
	}
	if len(out.ActivePolicies) > 0 {
		data["activePolicies"] = out.ActivePolicies
	}
	evt := "run." + out.Status
	s.Broker.Publish(id, RunEvent{Type: evt, Data: data})
	if s.Pub != nil {
		s.Pub.Emit(ctx, evt, data)
	}
}

func runJSON(r *store.Run) map[string]any {
	out := map[string]any{
		"id":               r.ID,
		"name":             r.Name,
		"status":           r.Status,
		"submittedAt":      r.SubmittedAt.Format(time.RFC3339),
		"integerFleet":     r.IntegerFleet,
		"disabledPolicies": r.DisabledPolicies,
	}
	if r.StartedAt != nil {
		out["startedAt"] = r.StartedAt.Format(time.RFC3339)
	}
	if r.FinishedAt != nil {
		out["finishedAt"] = r.FinishedAt.Format(time.RFC3339)
	}
	if r.Objective != nil {
		out["objective"] = *r.Objective
	}
	if len(r.ActivePolicies) > 0 {
		out["activePolicies"] = r.ActivePolicies
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.Terminal() {
		out["model"] = map[string]int{
			"rows": r.Rows, "vars": r.Vars, "intVars": r.IntVars, "nonzeros": r.Nonzeros,
		}
	}
	return out
}
