package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/webclient"
)

// spiderFootTypes maps target types to SpiderFoot seed target types.
var spiderFootTypes = map[model.TargetType]string{
	model.TargetUsername: "USERNAME",
	model.TargetEmail:    "EMAILADDR",
	model.TargetIP:       "IP_ADDRESS",
	model.TargetDomain:   "INTERNET_NAME",
}

// SpiderFootAdapter starts a passive SpiderFoot scan through its web API.
// It needs both a base URL and an API key.
type SpiderFootAdapter struct {
	service
}

func NewSpiderFootAdapter(cfg ToolConfig, wc webclient.WebClient, logger logging.Logger) *SpiderFootAdapter {
	targets := []model.TargetType{model.TargetUsername, model.TargetEmail, model.TargetIP, model.TargetDomain}
	svc := newService(SpiderFoot, targets, cfg, wc, logger)
	svc.requireKey = true
	return &SpiderFootAdapter{service: svc}
}

func (s *SpiderFootAdapter) Invoke(ctx context.Context, inv Invocation) model.ToolResult {
	if skip, ok := s.precheck(inv); ok {
		return skip
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	inv.emit(model.ProgressRunning, "Running 200+ OSINT modules...")

	endpoint, err := s.endpoint("startscan")
	if err != nil {
		return s.fail(ctx, err)
	}
	form := url.Values{}
	form.Set("scanname", "sift-"+inv.ScanID)
	form.Set("scantarget", inv.Target)
	form.Set("usecase", "passive")
	form.Set("modulelist", "")
	form.Set("typelist", "")

	req := &webclient.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: http.Header{},
		Body:    []byte(form.Encode()),
	}
	req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Headers.Set("Accept", "application/json")

	resp, err := s.do(ctx, req)
	if err != nil {
		return s.fail(ctx, err)
	}

	scanID, err := parseStartScan(resp.Body)
	if err != nil {
		return s.fail(ctx, err)
	}

	s.logger.Info("spiderfoot scan started", logging.Field{Key: "spiderfoot_scan_id", Value: scanID})
	return model.Completed(s.name, 0, map[string]any{
		"scanId":     scanID,
		"targetType": spiderFootTypes[inv.TargetType],
	})
}

// parseStartScan decodes the ["SUCCESS", "<id>"] / ["ERROR", "<msg>"] reply.
func parseStartScan(body []byte) (string, error) {
	var reply []string
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("decode startscan reply: %w", err)
	}
	if len(reply) < 2 {
		return "", errors.New("malformed startscan reply")
	}
	if reply[0] != "SUCCESS" {
		return "", fmt.Errorf("startscan rejected: %s", reply[1])
	}
	if reply[1] == "" {
		return "", errors.New("startscan reply missing scan id")
	}
	return reply[1], nil
}
