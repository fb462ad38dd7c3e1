package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/raysh454/sift/internal/compare"
	"github.com/raysh454/sift/internal/correlate"
	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/metrics"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/progress"
	"github.com/raysh454/sift/internal/scanstore"
	"github.com/raysh454/sift/internal/tools"
	"github.com/raysh454/sift/internal/tracing"
	"github.com/raysh454/sift/internal/utils"
)

// Deps are the collaborators of an Orchestrator. Tools, Ledger, Members and
// Store are required.
type Deps struct {
	Tools   *tools.Registry
	Ledger  CreditLedger
	Members MembershipChecker
	Store   ScanStore
	Events  progress.Broadcaster
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  logging.Logger
}

// Orchestrator runs multi-tool scans: it validates and authorizes the request,
// debits the full cost up front, fans out to every requested tool, and
// persists the combined run.
type Orchestrator struct {
	cfg     ScanConfig
	tools   *tools.Registry
	ledger  CreditLedger
	members MembershipChecker
	store   ScanStore
	events  progress.Broadcaster
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  logging.Logger
	now     func() time.Time

	activeMu sync.Mutex
	active   map[string]activeScan
	draining bool
	inflight sync.WaitGroup
}

type activeScan struct {
	workspaceID string
	cancel      context.CancelFunc
}

func NewOrchestrator(cfg ScanConfig, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Tools == nil:
		return nil, errors.New("orchestrator: tool registry is required")
	case deps.Ledger == nil:
		return nil, errors.New("orchestrator: credit ledger is required")
	case deps.Members == nil:
		return nil, errors.New("orchestrator: membership checker is required")
	case deps.Store == nil:
		return nil, errors.New("orchestrator: scan store is required")
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	if deps.Events == nil {
		deps.Events = progress.Nop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.Noop()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	return &Orchestrator{
		cfg:     cfg,
		tools:   deps.Tools,
		ledger:  deps.Ledger,
		members: deps.Members,
		store:   deps.Store,
		events:  deps.Events,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		logger:  deps.Logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		now:     time.Now,
		active:  make(map[string]activeScan),
	}, nil
}

// Tools returns the registry the orchestrator resolves tool ids against.
func (o *Orchestrator) Tools() *tools.Registry { return o.tools }

// RunScan executes one multi-tool scan and returns its persisted record.
//
// Boundary failures (malformed, unauthenticated, forbidden, duplicate id,
// quota) return before any tool runs and before any progress event is
// emitted. Once credits are debited, per-tool failures only degrade the run.
// If the run cannot be persisted, RunScan returns the run together with an
// error wrapping ErrPersistence.
func (o *Orchestrator) RunScan(ctx context.Context, req model.ScanRequest, caller model.Identity) (*model.ScanRun, error) {
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "scan.run", trace.WithAttributes(
		attribute.String("scan.id", req.ScanID),
		attribute.String("scan.target_type", string(req.TargetType)),
		attribute.Int("scan.tools", len(req.Tools)),
	))
	defer span.End()

	fail := func(reason string, err error) (*model.ScanRun, error) {
		o.metrics.ScanRejected(reason)
		span.SetStatus(codes.Error, reason)
		o.logger.Info("scan rejected",
			logging.Field{Key: "scan_id", Value: req.ScanID},
			logging.Field{Key: "reason", Value: reason},
			logging.Err(err))
		return nil, err
	}

	req, err := o.validate(req)
	if err != nil {
		return fail("malformed", err)
	}
	if !caller.Authenticated() {
		return fail("unauthenticated", ErrUnauthenticated)
	}

	member, err := o.members.IsWorkspaceMember(ctx, req.WorkspaceID, caller.UserID)
	if err != nil {
		return fail("authorization_unavailable", fmt.Errorf("%w: %v", ErrAuthorizationUnavailable, err))
	}
	if !member {
		return fail("forbidden", ErrForbidden)
	}

	scanCtx, cancel := o.scanContext(ctx)
	defer cancel()
	if err := o.claim(req.ScanID, activeScan{workspaceID: req.WorkspaceID, cancel: cancel}); err != nil {
		if errors.Is(err, ErrShuttingDown) {
			return fail("shutting_down", err)
		}
		return fail("duplicate", err)
	}
	defer o.release(req.ScanID)

	exists, err := o.store.Exists(ctx, req.ScanID)
	if err != nil {
		return fail("store_unavailable", fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	if exists {
		return fail("duplicate", fmt.Errorf("%w: %s", ErrDuplicateScan, req.ScanID))
	}

	cost, err := o.tools.Cost(req.Tools)
	if err != nil {
		return fail("malformed", invalid("tools", "%v", err))
	}
	desc := fmt.Sprintf("multi-tool scan %s: %s", req.ScanID, strings.Join(req.Tools, ","))
	ok, err := o.ledger.SpendCredits(ctx, req.WorkspaceID, caller.UserID, cost, desc)
	if err != nil {
		return fail("ledger_unavailable", fmt.Errorf("%w: %v", ErrLedgerUnavailable, err))
	}
	if !ok {
		return fail("quota", &QuotaError{Required: cost, Available: o.balance(ctx, req.WorkspaceID)})
	}
	o.metrics.CreditsSpent(cost)

	log := o.logger.With(
		logging.Field{Key: "scan_id", Value: req.ScanID},
		logging.Field{Key: "workspace_id", Value: req.WorkspaceID})
	log.Info("scan started",
		logging.Field{Key: "target_type", Value: string(req.TargetType)},
		logging.Field{Key: "tools", Value: req.Tools},
		logging.Field{Key: "cost", Value: cost})

	results := o.fanOut(scanCtx, req)

	run := &model.ScanRun{
		ScanID:       req.ScanID,
		WorkspaceID:  req.WorkspaceID,
		UserID:       caller.UserID,
		Target:       req.Target,
		TargetType:   req.TargetType,
		Status:       model.SummarizeStatus(results),
		Results:      results,
		TotalCost:    cost,
		Correlations: correlate.Correlate(results),
		CreatedAt:    start.UTC(),
	}

	persistErr := o.persist(ctx, run)
	if persistErr != nil {
		o.metrics.PersistFailed()
		span.RecordError(persistErr)
		span.SetStatus(codes.Error, "persist failed")
		log.Error("scan billed but not persisted",
			logging.Field{Key: "billing_risk", Value: true},
			logging.Field{Key: "cost", Value: cost},
			logging.Err(persistErr))
	}

	o.emit(model.ProgressEvent{
		ScanID:         run.ScanID,
		Type:           model.EventScanComplete,
		Results:        run.Results,
		CompletedTools: run.CompletedCount(),
		TotalTools:     len(run.Results),
	})

	elapsed := o.now().Sub(start)
	o.metrics.ScanFinished(run.Status, elapsed)
	span.SetAttributes(attribute.String("scan.status", string(run.Status)))
	log.Info("scan finished",
		logging.Field{Key: "status", Value: string(run.Status)},
		logging.Field{Key: "completed", Value: run.CompletedCount()},
		logging.Field{Key: "duration", Value: elapsed.String()})

	if persistErr != nil {
		return run, fmt.Errorf("%w: %v", ErrPersistence, persistErr)
	}
	return run, nil
}

// validate checks required fields and normalizes the target. Tool ids are
// lower-cased; unknown and repeated ids are rejected.
func (o *Orchestrator) validate(req model.ScanRequest) (model.ScanRequest, error) {
	req.ScanID = strings.TrimSpace(req.ScanID)
	req.WorkspaceID = strings.TrimSpace(req.WorkspaceID)

	switch {
	case strings.TrimSpace(req.Target) == "":
		return req, invalid("target", "is required")
	case req.TargetType == "":
		return req, invalid("targetType", "is required")
	case len(req.Tools) == 0:
		return req, invalid("tools", "must not be empty")
	case req.WorkspaceID == "":
		return req, invalid("workspaceId", "is required")
	case req.ScanID == "":
		return req, invalid("scanId", "is required")
	}

	tt, ok := model.ParseTargetType(string(req.TargetType))
	if !ok {
		return req, invalid("targetType", "unknown target type %q", req.TargetType)
	}
	req.TargetType = tt

	target, err := utils.NormalizeTarget(tt, req.Target)
	if err != nil {
		return req, invalid("target", "not a valid %s", tt)
	}
	req.Target = target

	seen := make(map[string]bool, len(req.Tools))
	names := make([]string, 0, len(req.Tools))
	for _, raw := range req.Tools {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := o.tools.Get(name); !ok {
			return req, invalid("tools", "unknown tool %q", raw)
		}
		if seen[name] {
			return req, invalid("tools", "tool %q requested twice", raw)
		}
		seen[name] = true
		names = append(names, name)
	}
	req.Tools = names
	return req, nil
}

// scanContext detaches the tools from the caller's cancellation and bounds
// them by the scan deadline. Credits are already spent when it is used.
func (o *Orchestrator) scanContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if o.cfg.Deadline > 0 {
		return context.WithTimeout(base, o.cfg.Deadline)
	}
	return context.WithCancel(base)
}

// claim registers a running scan. Every successful claim must be paired
// with release.
func (o *Orchestrator) claim(scanID string, scan activeScan) error {
	o.activeMu.Lock()
	defer o.activeMu.Unlock()
	if o.draining {
		return ErrShuttingDown
	}
	if _, busy := o.active[scanID]; busy {
		return fmt.Errorf("%w: %s is running", ErrDuplicateScan, scanID)
	}
	o.active[scanID] = scan
	o.inflight.Add(1)
	return nil
}

func (o *Orchestrator) release(scanID string) {
	o.activeMu.Lock()
	delete(o.active, scanID)
	o.activeMu.Unlock()
	o.inflight.Done()
}

// CancelAll stops new scans from starting and cancels every running scan.
func (o *Orchestrator) CancelAll() {
	o.activeMu.Lock()
	o.draining = true
	scans := make(map[string]activeScan, len(o.active))
	for id, scan := range o.active {
		scans[id] = scan
	}
	o.activeMu.Unlock()

	for id, scan := range scans {
		scan.cancel()
		o.logger.Info("scan canceled", logging.Field{Key: "scan_id", Value: id})
	}
}

// Wait blocks until every running scan has persisted its run and returned,
// or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d running scans: %w", len(o.ActiveScans()), ctx.Err())
	}
}

// CancelScan stops the tools of a running scan. Tools that have not settled
// are recorded as failed. It reports whether the scan was running.
func (o *Orchestrator) CancelScan(scanID string) bool {
	o.activeMu.Lock()
	scan, ok := o.active[scanID]
	o.activeMu.Unlock()
	if ok {
		scan.cancel()
		o.logger.Info("scan canceled", logging.Field{Key: "scan_id", Value: scanID})
	}
	return ok
}

// StopScan cancels a running scan on behalf of a member of its workspace.
// It returns ErrScanNotFound when no scan with that id is running.
func (o *Orchestrator) StopScan(ctx context.Context, scanID string, caller model.Identity) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	o.activeMu.Lock()
	scan, ok := o.active[scanID]
	o.activeMu.Unlock()
	if !ok {
		return ErrScanNotFound
	}
	if err := o.authorize(ctx, scan.workspaceID, caller); err != nil {
		return err
	}
	o.CancelScan(scanID)
	return nil
}

// ActiveScans returns the ids of scans currently running.
func (o *Orchestrator) ActiveScans() []string {
	o.activeMu.Lock()
	defer o.activeMu.Unlock()
	out := make([]string, 0, len(o.active))
	for id := range o.active {
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) balance(ctx context.Context, workspaceID string) int {
	br, ok := o.ledger.(BalanceReader)
	if !ok {
		return -1
	}
	bal, err := br.Balance(ctx, workspaceID)
	if err != nil {
		o.logger.Warn("reading balance for quota error", logging.Err(err))
		return -1
	}
	return bal
}

// fanOut invokes every tool and waits for all of them. The result slice is
// ordered like req.Tools and every entry is terminal.
func (o *Orchestrator) fanOut(ctx context.Context, req model.ScanRequest) []model.ToolResult {
	results := make([]model.ToolResult, len(req.Tools))

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxConcurrency > 0 {
		g.SetLimit(o.cfg.MaxConcurrency)
	}
	for i, name := range req.Tools {
		g.Go(func() error {
			results[i] = o.runTool(gctx, req, name)
			// Never return an error: one tool must not cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) runTool(ctx context.Context, req model.ScanRequest, name string) model.ToolResult {
	adapter, _ := o.tools.Get(name)
	ctx, span := o.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()

	var (
		settleMu sync.Mutex
		settled  bool
	)
	emitTool := func(status model.ProgressStatus, msg string, count *int) {
		o.emit(model.ProgressEvent{
			ScanID:      req.ScanID,
			Type:        model.EventToolProgress,
			ToolName:    name,
			Status:      status,
			Message:     msg,
			ResultCount: count,
		})
	}

	emitTool(model.ProgressRunning, "Starting "+name+"...", nil)
	started := time.Now()

	inv := tools.Invocation{
		Target:      req.Target,
		TargetType:  req.TargetType,
		WorkspaceID: req.WorkspaceID,
		ScanID:      req.ScanID,
		Emit: func(status model.ProgressStatus, msg string) {
			// Adapters may only report interim progress, and nothing after
			// the tool has settled.
			if status != model.ProgressRunning {
				return
			}
			settleMu.Lock()
			defer settleMu.Unlock()
			if !settled {
				emitTool(status, msg, nil)
			}
		},
	}

	done := make(chan model.ToolResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("tool panicked",
					logging.Field{Key: "scan_id", Value: req.ScanID},
					logging.Field{Key: "tool", Value: name},
					logging.Field{Key: "panic", Value: fmt.Sprint(r)})
				done <- model.Failed(name, fmt.Sprintf("internal error: %v", r))
			}
		}()
		done <- adapter.Invoke(ctx, inv)
	}()

	var res model.ToolResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = model.Failed(name, interruptReason(ctx.Err()))
	}
	settleMu.Lock()
	settled = true
	settleMu.Unlock()
	res = settle(name, res)

	var count *int
	if res.Status == model.StatusCompleted {
		n := res.ResultCount
		count = &n
	}
	emitTool(model.ProgressStatusFor(res.Status), res.Message(), count)

	o.metrics.ToolFinished(name, res.Status, time.Since(started))
	span.SetAttributes(attribute.String("tool.status", string(res.Status)))
	if res.Status == model.StatusFailed {
		span.SetStatus(codes.Error, res.Error)
	}
	return res
}

// settle forces an adapter's result into a well-formed terminal result.
func settle(name string, res model.ToolResult) model.ToolResult {
	res.Tool = name
	if !res.Terminal() {
		return model.Failed(name, fmt.Sprintf("tool returned non-terminal status %q", res.Status))
	}
	if res.ResultCount < 0 {
		res.ResultCount = 0
	}
	return res
}

func interruptReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout: scan deadline exceeded"
	}
	return "canceled: scan was stopped before the tool finished"
}

func (o *Orchestrator) persist(ctx context.Context, run *model.ScanRun) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PersistTimeout)
	defer cancel()
	return o.store.Save(ctx, run)
}

// emit hands ev to the broadcaster. Broadcast failures never affect the scan.
func (o *Orchestrator) emit(ev model.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("progress broadcaster panicked",
				logging.Field{Key: "scan_id", Value: ev.ScanID},
				logging.Field{Key: "panic", Value: fmt.Sprint(r)})
		}
	}()
	if err := o.events.Emit(ev.ScanID, ev); err != nil {
		o.logger.Warn("progress broadcast failed",
			logging.Field{Key: "scan_id", Value: ev.ScanID},
			logging.Field{Key: "type", Value: string(ev.Type)},
			logging.Err(err))
		return
	}
	o.metrics.EventEmitted()
}

// ─── Read side ───

// authorize checks that caller may read workspaceID.
func (o *Orchestrator) authorize(ctx context.Context, workspaceID string, caller model.Identity) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	ok, err := o.members.IsWorkspaceMember(ctx, workspaceID, caller.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorizationUnavailable, err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// GetScan loads a run the caller's workspace owns.
func (o *Orchestrator) GetScan(ctx context.Context, scanID string, caller model.Identity) (*model.ScanRun, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	run, err := o.store.Get(ctx, scanID)
	if errors.Is(err, scanstore.ErrNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := o.authorize(ctx, run.WorkspaceID, caller); err != nil {
		return nil, err
	}
	return run, nil
}

// GetScanRaw returns the stored record bytes, identical on every call.
func (o *Orchestrator) GetScanRaw(ctx context.Context, scanID string, caller model.Identity) ([]byte, error) {
	if _, err := o.GetScan(ctx, scanID, caller); err != nil {
		return nil, err
	}
	raw, err := o.store.GetRaw(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return raw, nil
}

// ListScans lists a workspace's runs, newest first.
func (o *Orchestrator) ListScans(ctx context.Context, workspaceID string, limit int, caller model.Identity) ([]model.ScanSummary, error) {
	if err := o.authorize(ctx, workspaceID, caller); err != nil {
		return nil, err
	}
	list, err := o.store.List(ctx, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return list, nil
}

// CompareScans diffs two runs of the same target.
func (o *Orchestrator) CompareScans(ctx context.Context, baseID, headID string, caller model.Identity) (*compare.Comparison, error) {
	base, err := o.GetScan(ctx, baseID, caller)
	if err != nil {
		return nil, err
	}
	head, err := o.GetScan(ctx, headID, caller)
	if err != nil {
		return nil, err
	}
	cmp, err := compare.Runs(base, head)
	if err != nil {
		return nil, invalid("scanId", "%v", err)
	}
	return cmp, nil
}
