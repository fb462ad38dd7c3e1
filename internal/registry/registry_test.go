package registry_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	db, err := registry.OpenSQLite(filepath.Join(t.TempDir(), "sift.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reg, err := registry.NewRegistry(db, logging.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// ─── Workspaces ───

func TestRegistry_CreateAndGetWorkspace(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	ctx := context.Background()

	ws, err := reg.CreateWorkspace(ctx, "", "Red Team", 50)
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if ws.Slug != "red-team" {
		t.Fatalf("unexpected slug: %s", ws.Slug)
	}

	byID, err := reg.GetWorkspace(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetWorkspace by id: %v", err)
	}
	bySlug, err := reg.GetWorkspace(ctx, "Red-Team")
	if err != nil {
		t.Fatalf("GetWorkspace by slug: %v", err)
	}
	if byID.ID != bySlug.ID || byID.Credits != 50 {
		t.Fatalf("lookups disagree: %+v vs %+v", byID, bySlug)
	}

	if _, err := reg.CreateWorkspace(ctx, "red-team", "", 0); err == nil {
		t.Fatalf("expected duplicate slug to fail")
	}

	list, err := reg.ListWorkspaces(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListWorkspaces: %v %d", err, len(list))
	}
}

func TestRegistry_GetUnknownWorkspace(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	if _, err := reg.GetWorkspace(context.Background(), "nope"); err != registry.ErrWorkspaceNotFound {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
}

// ─── Membership ───

func TestRegistry_Membership(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	ctx := context.Background()

	ws, _ := reg.CreateWorkspace(ctx, "acme", "", 0)
	if err := reg.AddMember(ctx, ws.Slug, "u1", ""); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	ok, err := reg.IsWorkspaceMember(ctx, ws.ID, "u1")
	if err != nil || !ok {
		t.Fatalf("expected u1 to be a member: %v %v", ok, err)
	}
	ok, _ = reg.IsWorkspaceMember(ctx, ws.ID, "u2")
	if ok {
		t.Fatalf("u2 must not be a member")
	}
	ok, err = reg.IsWorkspaceMember(ctx, "missing", "u1")
	if err != nil || ok {
		t.Fatalf("unknown workspace must have no members: %v %v", ok, err)
	}

	members, err := reg.ListMembers(ctx, ws.ID)
	if err != nil || len(members) != 1 || members[0].Role != "member" {
		t.Fatalf("ListMembers: %v %+v", err, members)
	}

	if err := reg.RemoveMember(ctx, ws.ID, "u1"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if ok, _ := reg.IsWorkspaceMember(ctx, ws.ID, "u1"); ok {
		t.Fatalf("u1 should have been removed")
	}
}

// ─── Credits ───

func TestRegistry_SpendCredits(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	ctx := context.Background()

	ws, _ := reg.CreateWorkspace(ctx, "acme", "", 25)

	ok, err := reg.SpendCredits(ctx, ws.ID, "u1", 15, "scan s1")
	if err != nil || !ok {
		t.Fatalf("first spend: %v %v", ok, err)
	}
	ok, err = reg.SpendCredits(ctx, ws.ID, "u1", 15, "scan s2")
	if err != nil {
		t.Fatalf("second spend: %v", err)
	}
	if ok {
		t.Fatalf("second spend should be refused")
	}

	bal, _ := reg.Balance(ctx, ws.ID)
	if bal != 10 {
		t.Fatalf("expected balance 10, got %d", bal)
	}

	entries, err := reg.LedgerEntries(ctx, ws.ID, 0)
	if err != nil {
		t.Fatalf("LedgerEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Delta != -15 || entries[0].BalanceAfter != 10 || entries[0].Description != "scan s1" {
		t.Fatalf("unexpected ledger: %+v", entries)
	}
}

func TestRegistry_SpendUnknownWorkspace(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	_, err := reg.SpendCredits(context.Background(), "ghost", "u1", 5, "")
	if err != registry.ErrWorkspaceNotFound {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
}

func TestRegistry_ConcurrentSpendNeverOverdraws(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	ctx := context.Background()
	ws, _ := reg.CreateWorkspace(ctx, "acme", "", 50)

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := reg.SpendCredits(ctx, ws.ID, "u", 10, "")
			if err != nil {
				t.Errorf("spend: %v", err)
				return
			}
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 5 {
		t.Fatalf("expected exactly 5 successful debits, got %d", granted.Load())
	}
	if bal, _ := reg.Balance(ctx, ws.ID); bal != 0 {
		t.Fatalf("expected empty balance, got %d", bal)
	}
}

func TestRegistry_Grant(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	ctx := context.Background()
	ws, _ := reg.CreateWorkspace(ctx, "acme", "", 0)

	bal, err := reg.Grant(ctx, ws.Slug, 30, "top-up")
	if err != nil || bal != 30 {
		t.Fatalf("Grant: %d %v", bal, err)
	}
	if _, err := reg.Grant(ctx, ws.Slug, 0, ""); err != registry.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

// ─── Tokens ───

func TestRegistry_Tokens(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t)
	ctx := context.Background()

	token, err := reg.IssueToken(ctx, "u1", "laptop")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	user, ok, err := reg.Authenticate(ctx, token)
	if err != nil || !ok || user != "u1" {
		t.Fatalf("Authenticate: %q %v %v", user, ok, err)
	}
	if _, ok, _ := reg.Authenticate(ctx, "sift_bogus"); ok {
		t.Fatalf("bogus token must not authenticate")
	}
	if _, ok, _ := reg.Authenticate(ctx, "no-prefix"); ok {
		t.Fatalf("unprefixed token must not authenticate")
	}

	if err := reg.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, ok, _ := reg.Authenticate(ctx, token); ok {
		t.Fatalf("revoked token must not authenticate")
	}
	if err := reg.RevokeToken(ctx, token); err != registry.ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}
