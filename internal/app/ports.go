package app

import (
	"context"

	"github.com/raysh454/sift/internal/model"
)

// CreditLedger debits workspace credits. SpendCredits returns false, with no
// side effect, when the balance does not cover amount; an error means the
// ledger could not decide.
type CreditLedger interface {
	SpendCredits(ctx context.Context, workspaceID, userID string, amount int, description string) (bool, error)
}

// BalanceReader is optionally implemented by a CreditLedger to enrich quota
// errors with the current balance.
type BalanceReader interface {
	Balance(ctx context.Context, workspaceID string) (int, error)
}

// MembershipChecker answers whether a user belongs to a workspace.
type MembershipChecker interface {
	IsWorkspaceMember(ctx context.Context, workspaceID, userID string) (bool, error)
}

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, ok bool, err error)
}

// ScanStore persists finished runs. Save must fail with scanstore.ErrExists
// for a taken id; Get and GetRaw with scanstore.ErrNotFound for a missing one.
type ScanStore interface {
	Save(ctx context.Context, run *model.ScanRun) error
	Get(ctx context.Context, scanID string) (*model.ScanRun, error)
	GetRaw(ctx context.Context, scanID string) ([]byte, error)
	Exists(ctx context.Context, scanID string) (bool, error)
	List(ctx context.Context, workspaceID string, limit int) ([]model.ScanSummary, error)
}
