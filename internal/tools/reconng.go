package tools

import (
	"context"
	"errors"
	"net/http"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/webclient"
)

// reconModules picks the recon-ng module run for each supported target type.
var reconModules = map[model.TargetType]string{
	model.TargetDomain:   "recon/domains-hosts/hackertarget",
	model.TargetIP:       "recon/hosts-hosts/reverse_resolve",
	model.TargetEmail:    "recon/contacts-credentials/hibp_breach",
	model.TargetUsername: "recon/profiles-profiles/profiler",
	model.TargetEntity:   "recon/companies-domains/censys_subdomains",
}

// ReconNGAdapter queues a task on a recon-ng web API instance.
type ReconNGAdapter struct {
	service
}

func NewReconNGAdapter(cfg ToolConfig, wc webclient.WebClient, logger logging.Logger) *ReconNGAdapter {
	targets := []model.TargetType{
		model.TargetDomain, model.TargetIP, model.TargetEmail, model.TargetUsername, model.TargetEntity,
	}
	return &ReconNGAdapter{service: newService(ReconNG, targets, cfg, wc, logger)}
}

type reconTaskRequest struct {
	Module    string `json:"module"`
	Workspace string `json:"workspace"`
	Source    string `json:"source"`
}

type reconTaskResponse struct {
	Task string `json:"task"`
}

func (r *ReconNGAdapter) Invoke(ctx context.Context, inv Invocation) model.ToolResult {
	if skip, ok := r.precheck(inv); ok {
		return skip
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	inv.emit(model.ProgressRunning, "Running passive reconnaissance...")

	endpoint, err := r.endpoint("api", "tasks")
	if err != nil {
		return r.fail(ctx, err)
	}
	module := reconModules[inv.TargetType]
	req, err := webclient.NewJSONRequest(http.MethodPost, endpoint+"/", reconTaskRequest{
		Module:    module,
		Workspace: "sift-" + inv.WorkspaceID,
		Source:    inv.Target,
	})
	if err != nil {
		return r.fail(ctx, err)
	}
	resp, err := r.do(ctx, req)
	if err != nil {
		return r.fail(ctx, err)
	}

	var out reconTaskResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return r.fail(ctx, err)
	}
	if out.Task == "" {
		return r.fail(ctx, errors.New("response missing task id"))
	}

	r.logger.Info("recon-ng task queued",
		logging.Field{Key: "task_id", Value: out.Task},
		logging.Field{Key: "module", Value: module})
	return model.Completed(r.name, 0, map[string]any{"taskId": out.Task, "module": module})
}
