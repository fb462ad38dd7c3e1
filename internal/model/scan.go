package model

import "time"

// ScanRequest is the input to a multi-tool scan.
type ScanRequest struct {
	Target      string     `json:"target"`
	TargetType  TargetType `json:"targetType"`
	Tools       []string   `json:"tools"`
	WorkspaceID string     `json:"workspaceId"`
	ScanID      string     `json:"scanId"`
}

// Identity is the authenticated caller of a scan.
type Identity struct {
	UserID string `json:"userId"`
}

// Authenticated reports whether the identity carries a user.
func (i Identity) Authenticated() bool { return i.UserID != "" }

// RunStatus summarizes how a ScanRun ended.
type RunStatus string

const (
	// RunCompleted means every requested tool completed.
	RunCompleted RunStatus = "completed"
	// RunPartial means at least one tool completed.
	RunPartial RunStatus = "partial"
	// RunFailed means no tool completed.
	RunFailed RunStatus = "failed"
)

// ScanRun is the persisted, immutable record of one multi-tool scan.
// Results are ordered as the tools were requested.
type ScanRun struct {
	ScanID       string        `json:"scanId"`
	WorkspaceID  string        `json:"workspaceId"`
	UserID       string        `json:"userId"`
	Target       string        `json:"target"`
	TargetType   TargetType    `json:"targetType"`
	Status       RunStatus     `json:"status"`
	Results      []ToolResult  `json:"results"`
	TotalCost    int           `json:"totalCost"`
	Correlations []Correlation `json:"correlations"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// CompletedCount returns how many results completed.
func (r *ScanRun) CompletedCount() int {
	return CountStatus(r.Results, StatusCompleted)
}

// SummarizeStatus derives the RunStatus from a result set.
func SummarizeStatus(results []ToolResult) RunStatus {
	completed := CountStatus(results, StatusCompleted)
	switch {
	case len(results) > 0 && completed == len(results):
		return RunCompleted
	case completed > 0:
		return RunPartial
	default:
		return RunFailed
	}
}

// ScanSummary is the list view of a ScanRun.
type ScanSummary struct {
	ScanID     string     `json:"scanId"`
	Target     string     `json:"target"`
	TargetType TargetType `json:"targetType"`
	Status     RunStatus  `json:"status"`
	TotalCost  int        `json:"totalCost"`
	CreatedAt  time.Time  `json:"createdAt"`
}
