package model

import (
	"encoding/json"
	"strconv"
)

// ToolStatus is the terminal state of one tool invocation.
type ToolStatus string

const (
	StatusCompleted ToolStatus = "completed"
	StatusFailed    ToolStatus = "failed"
	StatusSkipped   ToolStatus = "skipped"
)

// Skip reasons shared by every adapter.
const (
	ReasonIncompatibleTarget = "incompatible target type"
	ReasonNotConfigured      = "service not configured"
)

// ToolResult is the normalized outcome of one adapter invocation. Exactly one
// of the status-specific fields is meaningful: ResultCount and Data for
// completed, Error for failed, Reason for skipped.
type ToolResult struct {
	Tool        string          `json:"tool"`
	Status      ToolStatus      `json:"status"`
	ResultCount int             `json:"resultCount"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// Completed builds a completed result. data is marshaled to JSON; a value that
// cannot be marshaled is dropped.
func Completed(tool string, count int, data any) ToolResult {
	r := ToolResult{Tool: tool, Status: StatusCompleted, ResultCount: count}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			r.Data = raw
		}
	}
	return r
}

// Failed builds a failed result.
func Failed(tool string, msg string) ToolResult {
	return ToolResult{Tool: tool, Status: StatusFailed, Error: msg}
}

// Skipped builds a skipped result.
func Skipped(tool string, reason string) ToolResult {
	return ToolResult{Tool: tool, Status: StatusSkipped, Reason: reason}
}

// Terminal reports whether the result carries one of the three terminal statuses.
func (r ToolResult) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Message is the human readable one-liner used in progress events.
func (r ToolResult) Message() string {
	switch r.Status {
	case StatusCompleted:
		return "Found " + strconv.Itoa(r.ResultCount) + " results"
	case StatusSkipped:
		return "Skipped: " + r.Reason
	default:
		if r.Error == "" {
			return "Failed"
		}
		return r.Error
	}
}

// CountStatus counts results with the given status.
func CountStatus(results []ToolResult, status ToolStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
