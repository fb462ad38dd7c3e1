package registry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/sift/internal/logging"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrWorkspaceExists   = errors.New("workspace already exists")
	ErrInvalidAmount     = errors.New("credit amount must be positive")
	ErrTokenNotFound     = errors.New("token not found")
)

const tokenPrefix = "sift_"

// Registry keeps workspaces, their members, API tokens and the credit ledger
// in SQLite. It is the production credit ledger and membership oracle.
type Registry struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// NewRegistry returns a Registry and runs migrations from schema.sql.
func NewRegistry(db *sql.DB, logger logging.Logger) (*Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Registry{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "registry"}),
		now:    time.Now,
	}, nil
}

// normalizeSlug makes a slug safe and simple.
func normalizeSlug(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "-")
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		out = uuid.New().String()[:8]
	}
	return out
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// resolveWorkspaceID accepts either a workspace id or its slug.
func resolveWorkspaceID(ctx context.Context, q queryer, identifier string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx,
		`SELECT id FROM workspaces WHERE id = ? OR slug = ? LIMIT 1`,
		identifier, strings.ToLower(strings.TrimSpace(identifier)),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrWorkspaceNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// ─── Workspaces ───

// CreateWorkspace inserts a workspace with an opening credit balance.
func (r *Registry) CreateWorkspace(ctx context.Context, slug, name string, credits int) (*Workspace, error) {
	if credits < 0 {
		return nil, ErrInvalidAmount
	}
	if slug == "" && name != "" {
		slug = name
	}
	slug = normalizeSlug(slug)
	if name == "" {
		name = slug
	}

	if _, err := resolveWorkspaceID(ctx, r.db, slug); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceExists, slug)
	} else if !errors.Is(err, ErrWorkspaceNotFound) {
		return nil, err
	}

	ws := &Workspace{
		ID:        uuid.New().String(),
		Slug:      slug,
		Name:      name,
		Credits:   credits,
		CreatedAt: r.now().Unix(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, slug, name, credits, created_at) VALUES (?, ?, ?, ?, ?)`,
		ws.ID, ws.Slug, ws.Name, ws.Credits, ws.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}
	r.logger.Info("workspace created",
		logging.Field{Key: "workspace_id", Value: ws.ID},
		logging.Field{Key: "slug", Value: ws.Slug})
	return ws, nil
}

// GetWorkspace returns a workspace by id or slug.
func (r *Registry) GetWorkspace(ctx context.Context, identifier string) (*Workspace, error) {
	id, err := resolveWorkspaceID(ctx, r.db, identifier)
	if err != nil {
		return nil, err
	}
	var ws Workspace
	err = r.db.QueryRowContext(ctx,
		`SELECT id, slug, name, credits, created_at FROM workspaces WHERE id = ?`, id,
	).Scan(&ws.ID, &ws.Slug, &ws.Name, &ws.Credits, &ws.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListWorkspaces returns every workspace, newest first.
func (r *Registry) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, slug, name, credits, created_at FROM workspaces ORDER BY created_at DESC, slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Slug, &ws.Name, &ws.Credits, &ws.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// ─── Membership ───

// AddMember adds userID to the workspace, updating the role if already present.
func (r *Registry) AddMember(ctx context.Context, workspace, userID, role string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if role == "" {
		role = "member"
	}
	wsID, err := resolveWorkspaceID(ctx, r.db, workspace)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role, added_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = excluded.role`,
		wsID, userID, role, r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *Registry) RemoveMember(ctx context.Context, workspace, userID string) error {
	wsID, err := resolveWorkspaceID(ctx, r.db, workspace)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ?`, wsID, userID)
	return err
}

// IsWorkspaceMember reports whether userID belongs to the workspace. An
// unknown workspace has no members.
func (r *Registry) IsWorkspaceMember(ctx context.Context, workspace, userID string) (bool, error) {
	wsID, err := resolveWorkspaceID(ctx, r.db, workspace)
	if errors.Is(err, ErrWorkspaceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var n int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM workspace_members WHERE workspace_id = ? AND user_id = ?`, wsID, userID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Registry) ListMembers(ctx context.Context, workspace string) ([]Member, error) {
	wsID, err := resolveWorkspaceID(ctx, r.db, workspace)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT workspace_id, user_id, role, added_at FROM workspace_members
         WHERE workspace_id = ? ORDER BY user_id`, wsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ─── Credits ───

// SpendCredits atomically debits amount from the workspace. It returns false
// without changing anything when the balance is insufficient.
func (r *Registry) SpendCredits(ctx context.Context, workspace, userID string, amount int, description string) (bool, error) {
	if amount < 0 {
		return false, ErrInvalidAmount
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin spend: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	wsID, err := resolveWorkspaceID(ctx, tx, workspace)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE workspaces SET credits = credits - ? WHERE id = ? AND credits >= ?`,
		amount, wsID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debit workspace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		r.logger.Info("insufficient credits",
			logging.Field{Key: "workspace_id", Value: wsID},
			logging.Field{Key: "required", Value: amount})
		return false, nil
	}

	balance, err := r.appendLedger(ctx, tx, wsID, userID, -amount, description)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit spend: %w", err)
	}

	r.logger.Info("credits spent",
		logging.Field{Key: "workspace_id", Value: wsID},
		logging.Field{Key: "amount", Value: amount},
		logging.Field{Key: "balance", Value: balance})
	return true, nil
}

// Grant adds credits to the workspace and returns the new balance.
func (r *Registry) Grant(ctx context.Context, workspace string, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin grant: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	wsID, err := resolveWorkspaceID(ctx, tx, workspace)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE workspaces SET credits = credits + ? WHERE id = ?`, amount, wsID); err != nil {
		return 0, fmt.Errorf("credit workspace: %w", err)
	}
	balance, err := r.appendLedger(ctx, tx, wsID, "", amount, description)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit grant: %w", err)
	}
	return balance, nil
}

func (r *Registry) appendLedger(ctx context.Context, tx *sql.Tx, wsID, userID string, delta int, description string) (int, error) {
	var balance int
	if err := tx.QueryRowContext(ctx,
		`SELECT credits FROM workspaces WHERE id = ?`, wsID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (id, workspace_id, user_id, delta, balance_after, description, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), wsID, userID, delta, balance, description, r.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	return balance, nil
}

// Balance returns the current credit balance of the workspace.
func (r *Registry) Balance(ctx context.Context, workspace string) (int, error) {
	ws, err := r.GetWorkspace(ctx, workspace)
	if err != nil {
		return 0, err
	}
	return ws.Credits, nil
}

// LedgerEntries returns the most recent ledger entries, newest first.
// limit <= 0 returns all of them.
func (r *Registry) LedgerEntries(ctx context.Context, workspace string, limit int) ([]LedgerEntry, error) {
	wsID, err := resolveWorkspaceID(ctx, r.db, workspace)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, workspace_id, user_id, delta, balance_after, description, created_at
         FROM credit_ledger WHERE workspace_id = ?
         ORDER BY created_at DESC LIMIT ?`, wsID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.UserID, &e.Delta, &e.BalanceAfter, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Tokens ───

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueToken mints a bearer token for userID. Only its hash is stored; the
// plaintext is returned once.
func (r *Registry) IssueToken(ctx context.Context, userID, label string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := tokenPrefix + hex.EncodeToString(buf)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token_hash, user_id, label, created_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), userID, label, r.now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert token: %w", err)
	}
	r.logger.Info("token issued", logging.Field{Key: "user_id", Value: userID})
	return token, nil
}

// Authenticate resolves a bearer token to its user id. Unknown and revoked
// tokens return ok=false.
func (r *Registry) Authenticate(ctx context.Context, token string) (string, bool, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return "", false, nil
	}
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM api_tokens WHERE token_hash = ? AND revoked_at IS NULL`, hashToken(token),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (r *Registry) RevokeToken(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		r.now().Unix(), hashToken(token))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenNotFound
	}
	return nil
}
