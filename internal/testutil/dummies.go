// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/scanstore"
	"github.com/raysh454/sift/internal/tools"
	"github.com/raysh454/sift/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorMessages returns a copy of the recorded error messages.
func (l *DummyLogger) ErrorMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.Errors)
}

// WarnMessages returns a copy of the recorded warnings.
func (l *DummyLogger) WarnMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.Warns)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "{}" with status 200.
// Set FailURLs[url] = true to force an error for a specific URL.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	// Respond overrides the default response when set.
	Respond func(req *webclient.Request) *webclient.Response

	mu       sync.Mutex
	Requests []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs[req.URL] {
		return nil, fmt.Errorf("dummy failure for %s", req.URL)
	}
	if d.Respond != nil {
		return d.Respond(req), nil
	}
	return &webclient.Response{Request: req, StatusCode: 200, Body: []byte("{}"), FetchedAt: time.Now()}, nil
}

func (d *DummyWebClient) Close() error { return nil }

// ─── Progress ──────────────────────────────────────────────────────────

// RecordingBroadcaster implements progress.Broadcaster and keeps every event.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (b *RecordingBroadcaster) Emit(scanID string, ev model.ProgressEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev.ScanID = scanID
	b.events = append(b.events, ev)
	return nil
}

// Events returns the recorded events in emission order.
func (b *RecordingBroadcaster) Events() []model.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.events)
}

// ForTool returns the events emitted for one tool, in order.
func (b *RecordingBroadcaster) ForTool(name string) []model.ProgressEvent {
	var out []model.ProgressEvent
	for _, ev := range b.Events() {
		if ev.ToolName == name {
			out = append(out, ev)
		}
	}
	return out
}

// FailingBroadcaster rejects every event.
type FailingBroadcaster struct {
	Calls atomic.Int32
	Panic bool
}

func (b *FailingBroadcaster) Emit(string, model.ProgressEvent) error {
	b.Calls.Add(1)
	if b.Panic {
		panic("broadcaster exploded")
	}
	return errors.New("broadcast channel unavailable")
}

// ─── Tool adapter ──────────────────────────────────────────────────────

// StubAdapter implements tools.Adapter with a scripted outcome.
//
// With Block set, Invoke waits for ctx to end and fails. With
// Panic set it panics. Otherwise it emits one progress message and returns
// Result with Tool filled in.
type StubAdapter struct {
	ToolName     string
	Targets      []model.TargetType
	Unconfigured bool
	Result       model.ToolResult
	Panic        bool
	Block        bool
	Delay        time.Duration

	calls atomic.Int32
}

func (s *StubAdapter) Name() string { return s.ToolName }

func (s *StubAdapter) SupportedTargets() []model.TargetType {
	if len(s.Targets) == 0 {
		return model.AllTargetTypes
	}
	return s.Targets
}

func (s *StubAdapter) Configured() bool { return !s.Unconfigured }

func (s *StubAdapter) Invoke(ctx context.Context, inv tools.Invocation) model.ToolResult {
	s.calls.Add(1)
	if !tools.Supports(s, inv.TargetType) {
		return model.Skipped(s.ToolName, model.ReasonIncompatibleTarget)
	}
	if s.Unconfigured {
		return model.Skipped(s.ToolName, model.ReasonNotConfigured)
	}
	if s.Panic {
		panic(s.ToolName + " blew up")
	}
	if inv.Emit != nil {
		inv.Emit(model.ProgressRunning, "working")
	}
	if s.Block {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.Failed(s.ToolName, "timeout: scan deadline exceeded")
		}
		return model.Failed(s.ToolName, "canceled: "+ctx.Err().Error())
	} else if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
		}
	}
	res := s.Result
	if res.Status == "" {
		res = model.Completed(s.ToolName, 0, nil)
	}
	res.Tool = s.ToolName
	return res
}

// Calls reports how many times Invoke ran.
func (s *StubAdapter) Calls() int { return int(s.calls.Load()) }

// ─── Credit ledger ─────────────────────────────────────────────────────

// FakeLedger implements app.CreditLedger and app.BalanceReader over an
// in-memory balance table.
type FakeLedger struct {
	mu       sync.Mutex
	Balances map[string]int
	Err      error
	Debits   []int
}

func NewFakeLedger(balances map[string]int) *FakeLedger {
	if balances == nil {
		balances = map[string]int{}
	}
	return &FakeLedger{Balances: balances}
}

func (l *FakeLedger) SpendCredits(_ context.Context, workspaceID, _ string, amount int, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return false, l.Err
	}
	if l.Balances[workspaceID] < amount {
		return false, nil
	}
	l.Balances[workspaceID] -= amount
	l.Debits = append(l.Debits, amount)
	return true, nil
}

func (l *FakeLedger) Balance(_ context.Context, workspaceID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Balances[workspaceID], nil
}

// DebitCount returns how many debits succeeded.
func (l *FakeLedger) DebitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Debits)
}

// ─── Membership ────────────────────────────────────────────────────────

// FakeMembers implements app.MembershipChecker. Members maps workspace id to
// user ids.
type FakeMembers struct {
	Members map[string][]string
	Err     error
}

func (m *FakeMembers) IsWorkspaceMember(_ context.Context, workspaceID, userID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return slices.Contains(m.Members[workspaceID], userID), nil
}

// FakeAuthenticator maps bearer tokens to user ids.
type FakeAuthenticator map[string]string

func (a FakeAuthenticator) Authenticate(_ context.Context, token string) (string, bool, error) {
	u, ok := a[token]
	return u, ok, nil
}

// ─── Scan store ────────────────────────────────────────────────────────

// MemoryStore implements app.ScanStore in memory using the canonical
// encoding of the SQLite store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	runs    map[string]model.ScanSummary
	wsOf    map[string]string

	SaveErr   error
	ExistsErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string][]byte{},
		runs:    map[string]model.ScanSummary{},
		wsOf:    map[string]string{},
	}
}

func (m *MemoryStore) Save(_ context.Context, run *model.ScanRun) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	raw, err := scanstore.Encode(run)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[run.ScanID]; ok {
		return scanstore.ErrExists
	}
	m.records[run.ScanID] = raw
	m.wsOf[run.ScanID] = run.WorkspaceID
	m.runs[run.ScanID] = model.ScanSummary{
		ScanID:     run.ScanID,
		Target:     run.Target,
		TargetType: run.TargetType,
		Status:     run.Status,
		TotalCost:  run.TotalCost,
		CreatedAt:  run.CreatedAt,
	}
	return nil
}

func (m *MemoryStore) GetRaw(_ context.Context, scanID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.records[scanID]
	if !ok {
		return nil, scanstore.ErrNotFound
	}
	return slices.Clone(raw), nil
}

func (m *MemoryStore) Get(ctx context.Context, scanID string) (*model.ScanRun, error) {
	raw, err := m.GetRaw(ctx, scanID)
	if err != nil {
		return nil, err
	}
	var run model.ScanRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (m *MemoryStore) Exists(_ context.Context, scanID string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[scanID]
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context, workspaceID string, limit int) ([]model.ScanSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ScanSummary{}
	for id, sum := range m.runs {
		if m.wsOf[id] == workspaceID {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns how many runs are stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
