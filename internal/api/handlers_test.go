package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"transpath/internal/integrations"
	"transpath/internal/integrations/fsdir"
	"transpath/internal/lp"
	"transpath/internal/solve"
	"transpath/internal/store"
	"transpath/internal/webhooks"
)

const corridorYAML = `
params:
  first_year: 2025
  horizon: 2
  pre_horizon: 1
  discount_rate: 0.05
  gamma: 1.5
elements:
  - {id: 1, kind: node, carbon_price: [0, 0]}
  - {id: 2, kind: edge, length_km: 50, carbon_price: [0, 0]}
  - {id: 3, kind: node, carbon_price: [0, 0]}
paths:
  - {id: 1, length_km: 50, sequence: [1, 2, 3]}
products:
  - {id: 1, name: freight}
modes:
  - id: 1
    name: road
    quantify_by_vehicles: true
    infra_expansion_cost: [0, 0]
    infra_om_cost: [0, 0]
vehicle_types:
  - {id: 1, mode_id: 1, product_id: 1}
fuels:
  - id: 1
    name: electricity
    emission_factor: 100
    cost_per_kwh: [0.2, 0.2]
    cost_per_kw: [100, 100]
    infra_om_cost: [1, 1]
    supply_cost_per_kw: [50, 50]
    supply_om_cost: [1, 1]
technologies:
  - {id: 1, fuel_id: 1}
tech_vehicles:
  - id: 7
    vehicle_type_id: 1
    technology_id: 1
    capital_cost: [50000, 50000, 48000]
    maint_cost_annual: [[0, 0], [0, 0], [0, 0]]
    maint_cost_distance: [[0, 0], [0, 0], [0, 0]]
    payload_t: [10, 10, 10]
    annual_range_km: [100000, 100000, 100000]
    spec_cons: [1.2, 1.2, 1.1]
    lifetime: [2, 2, 2]
    battery_cap_kwh: [300, 300, 350]
    peak_fueling_kw: [150, 150, 150]
financial_statuses:
  - {id: 1, vot: 20, purchase_budget_lb: 0, purchase_budget_ub: 1000000}
region_types:
  - {id: 1, speed_kmh: 60, costs_var: [0, 0], costs_fix: [0, 0]}
odpairs:
  - id: 1
    product_id: 1
    origin_id: 1
    destination_id: 3
    path_ids: [1]
    f: [100, 110]
    financial_status_id: 1
    region_type_id: 1
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mem := store.NewMemory()
	return &Server{
		Store:   mem,
		Pub:     webhooks.NewPublisher(mem),
		Broker:  NewBroker(),
		Sources: integrations.NewRegistry(fsdir.New(t.TempDir())),
		Solver: func(m *lp.Model, opts solve.Options) (*solve.Result, error) {
			return &solve.Result{Status: "optimal", Objective: 42, Values: make([]float64, m.NumVars())}, nil
		},
		limiter: newIPLimiter(1000, 1000),
	}
}

func submitBody(t *testing.T, scenario map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"dataset": corridorYAML, "scenario": scenario})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func postRuns(s *Server, body []byte) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.RunsHandler(rr, req)
	return rr
}

func waitTerminal(t *testing.T, s *Server, id string) store.Run {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, err := s.Store.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if run.Terminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal status", id)
	return store.Run{}
}

func TestSubmitRunCompletes(t *testing.T) {
	s := newTestServer(t)
	rr := postRuns(s, submitBody(t, map[string]any{"name": "corridor"}))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != store.RunQueued {
		t.Fatalf("initial status = %q", resp.Status)
	}

	run := waitTerminal(t, s, resp.ID)
	if run.Status != store.RunCompleted {
		t.Fatalf("status = %q error = %q", run.Status, run.Error)
	}
	if run.Objective == nil || *run.Objective != 42 {
		t.Fatalf("objective = %v", run.Objective)
	}
	if run.Rows == 0 || run.Vars == 0 {
		t.Fatalf("model shape missing: %+v", run)
	}

	// GET /v1/runs/{id}
	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+resp.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("get run: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"completed"`) {
		t.Fatalf("run body: %s", rr.Body.String())
	}

	// Results in both formats
	for format, wantType := range map[string]string{"yaml": "application/x-yaml", "csv": "text/csv"} {
		rr = httptest.NewRecorder()
		s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+resp.ID+"/results?format="+format, nil))
		if rr.Code != 200 {
			t.Fatalf("results %s: %d %s", format, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != wantType {
			t.Fatalf("results %s content type = %q", format, ct)
		}
		if rr.Body.Len() == 0 {
			t.Fatalf("results %s empty", format)
		}
	}

	// List shows the run
	rr = httptest.NewRecorder()
	s.RunsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?status=completed", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), resp.ID) {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitRunInfeasibleOutcome(t *testing.T) {
	s := newTestServer(t)
	s.Solver = func(m *lp.Model, opts solve.Options) (*solve.Result, error) {
		return nil, solve.ErrInfeasible
	}
	// Subscribe a webhook so the terminal event is enqueued.
	_, err := s.Store.CreateSubscription(context.Background(), store.Subscription{
		URL: "https://sink.example/hook", Events: []string{"run.infeasible"},
	})
	if err != nil {
		t.Fatal(err)
	}

	rr := postRuns(s, submitBody(t, map[string]any{"name": "tight"}))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit: %d", rr.Code)
	}
	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)

	run := waitTerminal(t, s, resp.ID)
	if run.Status != store.RunInfeasible {
		t.Fatalf("status = %q", run.Status)
	}
	if run.Objective != nil {
		t.Fatalf("infeasible run has objective")
	}

	due, err := s.Store.FetchDueWebhookDeliveries(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].EventType != "run.infeasible" {
		t.Fatalf("webhook deliveries = %+v", due)
	}

	// No results were exported
	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+resp.ID+"/results", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("results for infeasible run: %d", rr.Code)
	}
}

func TestSubmitRunValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body []byte
		code int
	}{
		{"no dataset", []byte(`{"scenario":{"name":"x"}}`), 400},
		{"both dataset forms", []byte(`{"dataset":"a","datasetRef":"file://b","scenario":{}}`), 400},
		{"bad json", []byte(`{`), 400},
		{"unknown policy", submitBody(t, map[string]any{"name": "x", "disabledPolicies": []string{"mode_sharre"}}), 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rr := postRuns(s, tc.body); rr.Code != tc.code {
				t.Fatalf("code = %d, want %d (%s)", rr.Code, tc.code, rr.Body.String())
			}
		})
	}

	// Structurally broken dataset is a 422 with problem detail.
	broken := strings.Replace(corridorYAML, "fuel_id: 1", "fuel_id: 9", 1)
	b, _ := json.Marshal(map[string]any{"dataset": broken, "scenario": map[string]any{"name": "x"}})
	if rr := postRuns(s, b); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("broken dataset: %d %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitRunForbiddenForViewer(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewReader(submitBody(t, map[string]any{})))
	req.Header.Set("X-Role", "viewer")
	s.RunsHandler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("viewer submit: %d", rr.Code)
	}
}

func TestSubmitRunRateLimited(t *testing.T) {
	s := newTestServer(t)
	s.limiter = newIPLimiter(0.001, 1)
	body := submitBody(t, map[string]any{"name": "x"})
	if rr := postRuns(s, body); rr.Code != http.StatusAccepted {
		t.Fatalf("first submit: %d", rr.Code)
	}
	if rr := postRuns(s, body); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second submit: %d, want 429", rr.Code)
	}
}

func TestSubmitRunFromDatasetRef(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	s.Sources = integrations.NewRegistry(fsdir.New(dir))
	if err := os.WriteFile(filepath.Join(dir, "corridor.yaml"), []byte(corridorYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	b, _ := json.Marshal(map[string]any{"datasetRef": "file://corridor.yaml", "scenario": map[string]any{"name": "ref"}})
	rr := postRuns(s, b)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit by ref: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if run := waitTerminal(t, s, resp.ID); run.Status != store.RunCompleted {
		t.Fatalf("status = %q error = %q", run.Status, run.Error)
	}

	b, _ = json.Marshal(map[string]any{"datasetRef": "file://missing.yaml", "scenario": map[string]any{}})
	if rr := postRuns(s, b); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing ref: %d", rr.Code)
	}
}

func TestSubscriptionsRoundTrip(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"url":"https://sink.example/hook","events":["run.completed","run.failed"],"secret":"s"}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &created)

	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), created.ID) {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+created.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}

	bad := []byte(`{"url":"https://sink.example/hook","events":["run.exploded"]}`)
	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(bad)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown event: %d", rr.Code)
	}
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: %d", rr.Code)
	}
}

func TestRunNotFound(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get: %d", rr.Code)
	}
	var p Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil || p.Status != 404 {
		t.Fatalf("problem body: %s (%v)", rr.Body.String(), err)
	}
}
