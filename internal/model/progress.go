package model

// ProgressEventType distinguishes per-tool updates from the terminal event.
type ProgressEventType string

const (
	EventToolProgress ProgressEventType = "tool_progress"
	EventScanComplete ProgressEventType = "scan_complete"
)

// ProgressStatus is the status carried by a tool progress event.
type ProgressStatus string

const (
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
	ProgressSkipped   ProgressStatus = "skipped"
)

// ProgressEvent is a transient, advisory status update for one scan. It is
// never persisted. The scan_complete event carries the result summary.
type ProgressEvent struct {
	ScanID      string            `json:"scanId"`
	Type        ProgressEventType `json:"type"`
	ToolName    string            `json:"toolName,omitempty"`
	Status      ProgressStatus    `json:"status,omitempty"`
	Message     string            `json:"message,omitempty"`
	ResultCount *int              `json:"resultCount,omitempty"`

	Results        []ToolResult `json:"results,omitempty"`
	CompletedTools int          `json:"completedTools"`
	TotalTools     int          `json:"totalTools"`
}

// Terminal reports whether this is the last event for its scan.
func (e ProgressEvent) Terminal() bool { return e.Type == EventScanComplete }

// ProgressStatusFor maps a terminal tool status onto a progress status.
func ProgressStatusFor(s ToolStatus) ProgressStatus {
	switch s {
	case StatusCompleted:
		return ProgressCompleted
	case StatusSkipped:
		return ProgressSkipped
	default:
		return ProgressFailed
	}
}
