package tools

import (
	"context"
	"errors"
	"net/http"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/webclient"
)

// MaigretAdapter submits a username job to a maigret service. The job runs
// asynchronously on the service side; the result records the job id.
type MaigretAdapter struct {
	service
}

func NewMaigretAdapter(cfg ToolConfig, wc webclient.WebClient, logger logging.Logger) *MaigretAdapter {
	return &MaigretAdapter{service: newService(Maigret, []model.TargetType{model.TargetUsername}, cfg, wc, logger)}
}

type maigretJobRequest struct {
	Username    string   `json:"username"`
	WorkspaceID string   `json:"workspace_id"`
	ScanID      string   `json:"scan_id"`
	Tags        []string `json:"tags"`
}

type maigretJobResponse struct {
	JobID string `json:"job_id"`
	ID    string `json:"id"`
	Sites int    `json:"sites"`
}

func (m *MaigretAdapter) Invoke(ctx context.Context, inv Invocation) model.ToolResult {
	if skip, ok := m.precheck(inv); ok {
		return skip
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	inv.emit(model.ProgressRunning, "Scanning 400+ platforms...")

	endpoint, err := m.endpoint("api", "scans")
	if err != nil {
		return m.fail(ctx, err)
	}
	req, err := webclient.NewJSONRequest(http.MethodPost, endpoint, maigretJobRequest{
		Username:    inv.Target,
		WorkspaceID: inv.WorkspaceID,
		ScanID:      inv.ScanID,
		Tags:        []string{"multi-tool"},
	})
	if err != nil {
		return m.fail(ctx, err)
	}
	resp, err := m.do(ctx, req)
	if err != nil {
		return m.fail(ctx, err)
	}

	var out maigretJobResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return m.fail(ctx, err)
	}
	jobID := out.JobID
	if jobID == "" {
		jobID = out.ID
	}
	if jobID == "" {
		return m.fail(ctx, errors.New("response missing job id"))
	}

	m.logger.Info("maigret job created", logging.Field{Key: "job_id", Value: jobID})
	// The job has only been dispatched; nothing has been found yet.
	return model.Completed(m.name, 0, map[string]any{"jobId": jobID, "sites": out.Sites})
}
