package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/sift/internal/app"
	"github.com/raysh454/sift/internal/metrics"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/progress"
	"github.com/raysh454/sift/internal/server"
	"github.com/raysh454/sift/internal/testutil"
	"github.com/raysh454/sift/internal/tools"
)

type fixture struct {
	srv    *server.Server
	hub    *progress.Hub
	ledger *testutil.FakeLedger
	store  *testutil.MemoryStore
}

type failingAuth struct{}

func (failingAuth) Authenticate(context.Context, string) (string, bool, error) {
	return "", false, errors.New("token table locked")
}

func newFixture(t *testing.T, auth app.Authenticator) *fixture {
	t.Helper()

	reg := tools.NewRegistry()
	adapters := []struct {
		a     tools.Adapter
		price int
	}{
		{&testutil.StubAdapter{ToolName: "maigret", Targets: []model.TargetType{model.TargetUsername},
			Result: model.Completed("maigret", 2, map[string]string{"jobId": "j1"})}, 5},
		{&testutil.StubAdapter{ToolName: "reconng", Result: model.Completed("reconng", 1, nil)}, 10},
		{&testutil.StubAdapter{ToolName: "spiderfoot", Unconfigured: true}, 10},
	}
	for _, a := range adapters {
		if err := reg.Register(a.a, a.price); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	f := &fixture{
		hub:    progress.NewHub(64),
		ledger: testutil.NewFakeLedger(map[string]int{"W1": 100, "W2": 3}),
		store:  testutil.NewMemoryStore(),
	}
	t.Cleanup(f.hub.Close)

	logger := &testutil.DummyLogger{}
	orch, err := app.NewOrchestrator(app.ScanConfig{MaxConcurrency: 4, Deadline: 5 * time.Second}, app.Deps{
		Tools:   reg,
		Ledger:  f.ledger,
		Members: &testutil.FakeMembers{Members: map[string][]string{"W1": {"u1"}, "W2": {"u1"}, "W3": {"u2"}}},
		Store:   f.store,
		Events:  f.hub,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	if auth == nil {
		auth = testutil.FakeAuthenticator{"tok-u1": "u1", "tok-u2": "u2"}
	}
	f.srv, err = server.NewServer(server.Config{ListenAddr: ":0", Metrics: true}, server.Deps{
		Orchestrator: orch,
		Auth:         auth,
		Hub:          f.hub,
		Metrics:      metrics.New(),
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return f
}

func do(t *testing.T, s http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func scanBody(scanID, workspace string, tools ...string) string {
	b, _ := json.Marshal(server.MultiToolScanRequest{
		Target:      "alice123",
		TargetType:  "username",
		Tools:       tools,
		WorkspaceID: workspace,
		ScanID:      scanID,
	})
	return string(b)
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := do(t, f.srv, "GET", "/tools", "", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_Preflight(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := do(t, f.srv, "OPTIONS", "/scans/multi-tool", "", "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST" {
		t.Errorf("unexpected allow methods %q", got)
	}
}

// ─── Multi-tool scan ───────────────────────────────────────────────────

func TestServer_MultiToolScan_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret", "reconng"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp server.MultiToolScanResponse
	decodeJSON(t, rec, &resp)
	if !resp.Success || resp.ScanID != "S1" || resp.TotalCost != 15 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Results) != 2 || resp.Results[0].Tool != "maigret" || resp.Results[0].ResultCount != 2 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
	if f.ledger.Balances["W1"] != 85 {
		t.Fatalf("expected balance 85, got %d", f.ledger.Balances["W1"])
	}
}

func TestServer_MultiToolScan_SkippedToolIsReported(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	body := `{"target":"example.com","targetType":"domain","tools":["maigret","spiderfoot"],"workspaceId":"W1","scanId":"S1"}`
	rec := do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp server.MultiToolScanResponse
	decodeJSON(t, rec, &resp)
	for _, r := range resp.Results {
		if r.Status != model.StatusSkipped || r.Reason == "" {
			t.Fatalf("expected skipped with reason, got %+v", r)
		}
	}
	if resp.Results[0].Reason == resp.Results[1].Reason {
		t.Fatalf("incompatible and unconfigured skips must be distinguishable: %+v", resp.Results)
	}
}

func TestServer_MultiToolScan_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		token string
		body  string
		code  int
	}{
		{"invalid json", "tok-u1", "{", http.StatusBadRequest},
		{"unknown tool", "tok-u1", scanBody("S1", "W1", "nmap"), http.StatusBadRequest},
		{"bad target type", "tok-u1", `{"target":"x","targetType":"ssn","tools":["maigret"],"workspaceId":"W1","scanId":"S1"}`, http.StatusBadRequest},
		{"no token", "", scanBody("S1", "W1", "maigret"), http.StatusUnauthorized},
		{"unknown token", "nope", scanBody("S1", "W1", "maigret"), http.StatusUnauthorized},
		{"not a member", "tok-u2", scanBody("S1", "W1", "maigret"), http.StatusForbidden},
		{"insufficient credits", "tok-u1", scanBody("S1", "W2", "maigret", "reconng"), http.StatusPaymentRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)

			rec := do(t, f.srv, "POST", "/scans/multi-tool", tc.token, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			var resp server.ErrorResponse
			decodeJSON(t, rec, &resp)
			if resp.Error == "" {
				t.Fatalf("expected error message")
			}
			if f.store.Len() != 0 {
				t.Fatalf("rejected request persisted a run")
			}
		})
	}
}

func TestServer_MultiToolScan_QuotaBody(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W2", "maigret", "reconng"))

	var resp server.ErrorResponse
	decodeJSON(t, rec, &resp)
	if resp.Error != "Insufficient credits" {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	if resp.Required == nil || *resp.Required != 15 || resp.Available == nil || *resp.Available != 3 {
		t.Fatalf("expected required 15 and available 3, got %+v", resp)
	}
}

func TestServer_MultiToolScan_Duplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if rec := do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret")); rec.Code != http.StatusOK {
		t.Fatalf("first scan: %d", rec.Code)
	}
	rec := do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestServer_AuthenticatorFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, failingAuth{})

	rec := do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Fatalf("internal error detail leaked: %s", rec.Body.String())
	}
}

// ─── Read side ─────────────────────────────────────────────────────────

func TestServer_GetScan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret"))

	rec := do(t, f.srv, "GET", "/scans/S1", "tok-u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stored, _ := f.store.GetRaw(context.Background(), "S1")
	if rec.Body.String() != string(stored) {
		t.Fatalf("response differs from stored record")
	}

	if rec := do(t, f.srv, "GET", "/scans/S1", "tok-u2", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", rec.Code)
	}
	if rec := do(t, f.srv, "GET", "/scans/missing", "tok-u1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_ListAndCompare(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret"))
	do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S2", "W1", "maigret", "reconng"))

	rec := do(t, f.srv, "GET", "/workspaces/W1/scans?limit=10", "tok-u1", "")
	var list []model.ScanSummary
	decodeJSON(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(list))
	}

	rec = do(t, f.srv, "GET", "/scans/S1/diff/S2", "tok-u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cmp struct {
		Changed bool `json:"changed"`
	}
	decodeJSON(t, rec, &cmp)
	if !cmp.Changed {
		t.Fatalf("adding a tool should be reported as a change")
	}
}

func TestServer_CancelIdleScan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if rec := do(t, f.srv, "DELETE", "/scans/S9", "tok-u1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// ─── Catalog and operations ────────────────────────────────────────────

func TestServer_ListTools(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := do(t, f.srv, "GET", "/tools", "", "")
	var infos []server.ToolInfo
	decodeJSON(t, rec, &infos)
	if len(infos) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Name == "spiderfoot" && info.Configured {
			t.Fatalf("spiderfoot should be reported unconfigured")
		}
		if info.Name == "maigret" && info.Price != 5 {
			t.Fatalf("unexpected maigret price %d", info.Price)
		}
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := do(t, f.srv, "GET", "/healthz", "", "")
	var health server.HealthResponse
	decodeJSON(t, rec, &health)
	if health.Status != "ok" {
		t.Fatalf("unexpected health %+v", health)
	}

	do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret"))
	rec = do(t, f.srv, "GET", "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_ProgressWebSocket(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scans/S1?token=tok-u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Subscribers("S1") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(time.Millisecond)
	}

	go do(t, f.srv, "POST", "/scans/multi-tool", "tok-u1", scanBody("S1", "W1", "maigret", "reconng"))

	var events []model.ProgressEvent
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev model.ProgressEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		events = append(events, ev)
		if ev.Terminal() {
			break
		}
	}

	if len(events) == 0 {
		t.Fatalf("no events received")
	}
	last := events[len(events)-1]
	if !last.Terminal() || last.TotalTools != 2 || last.CompletedTools != 2 {
		t.Fatalf("unexpected terminal event %+v", last)
	}
}

func TestServer_ProgressWebSocket_RequiresAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := do(t, f.srv, "GET", "/ws/scans/S1", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
