package registry

// Workspace is a billing and access-control boundary.
type Workspace struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Credits   int    `json:"credits"`
	CreatedAt int64  `json:"created_at"`
}

type Member struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	AddedAt     int64  `json:"added_at"`
}

// LedgerEntry records one credit movement. Debits have a negative Delta.
type LedgerEntry struct {
	ID           string `json:"id"`
	WorkspaceID  string `json:"workspace_id"`
	UserID       string `json:"user_id,omitempty"`
	Delta        int    `json:"delta"`
	BalanceAfter int    `json:"balance_after"`
	Description  string `json:"description"`
	CreatedAt    int64  `json:"created_at"`
}
