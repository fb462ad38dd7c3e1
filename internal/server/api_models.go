package server

import "github.com/raysh454/sift/internal/model"

// MultiToolScanRequest is the payload of POST /scans/multi-tool.
type MultiToolScanRequest struct {
	Target      string   `json:"target" example:"alice123"`
	TargetType  string   `json:"targetType" example:"username"`
	Tools       []string `json:"tools" example:"maigret,reconng"`
	WorkspaceID string   `json:"workspaceId" example:"4c1c7a0e-5f0e-4d59-9d3c-2a7f7f0b9a11"`
	ScanID      string   `json:"scanId" example:"scan-2024-001"`
}

// MultiToolScanResponse reports a finished scan.
type MultiToolScanResponse struct {
	Success      bool                `json:"success" example:"true"`
	ScanID       string              `json:"scanId" example:"scan-2024-001"`
	Status       model.RunStatus     `json:"status" example:"partial"`
	Results      []model.ToolResult  `json:"results"`
	TotalCost    int                 `json:"totalCost" example:"15"`
	Correlations []model.Correlation `json:"correlations,omitempty"`
}

// ToolInfo describes one tool offered by GET /tools.
type ToolInfo struct {
	Name       string   `json:"name" example:"maigret"`
	Price      int      `json:"price" example:"5"`
	Targets    []string `json:"targets" example:"username"`
	Configured bool     `json:"configured" example:"true"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status      string `json:"status" example:"ok"`
	Version     string `json:"version" example:"0.1.0"`
	ActiveScans int    `json:"activeScans" example:"2"`
}

// ErrorResponse is a uniform error payload returned by the API. Required and
// Available are set on 402 responses when known.
type ErrorResponse struct {
	Error     string `json:"error" example:"Insufficient credits"`
	Required  *int   `json:"required,omitempty" example:"15"`
	Available *int   `json:"available,omitempty" example:"3"`
}
