package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/utils"
	"github.com/raysh454/sift/internal/webclient"
)

// ErrUnexpectedStatus is wrapped when a service answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("unexpected status")

// service is the plumbing shared by every HTTP-backed adapter: target-type
// and configuration prechecks, per-call timeout, rate limiting and status
// checking.
type service struct {
	name    string
	targets []model.TargetType
	cfg     ToolConfig
	baseURL string
	wc      webclient.WebClient
	limiter *rate.Limiter
	logger  logging.Logger
	// requireKey marks services that refuse calls without an API key.
	requireKey bool
}

func newService(name string, targets []model.TargetType, cfg ToolConfig, wc webclient.WebClient, logger logging.Logger) service {
	if logger == nil {
		logger = logging.Nop()
	}
	s := service{
		name:    name,
		targets: targets,
		cfg:     cfg,
		wc:      wc,
		logger:  logger.With(logging.Field{Key: "tool", Value: name}),
	}
	if cfg.URL != "" {
		base, err := utils.CanonicalizeBaseURL(cfg.URL)
		if err != nil {
			s.logger.Warn("ignoring invalid service url", logging.Err(err))
		} else {
			s.baseURL = base
		}
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

func (s *service) Name() string                         { return s.name }
func (s *service) SupportedTargets() []model.TargetType { return s.targets }

func (s *service) Configured() bool {
	if s.requireKey && s.cfg.APIKey == "" {
		return false
	}
	return s.baseURL != "" && s.wc != nil
}

// precheck returns the skip result for inv, if any. Target type is checked
// before configuration.
func (s *service) precheck(inv Invocation) (model.ToolResult, bool) {
	if !slices.Contains(s.targets, inv.TargetType) {
		return model.Skipped(s.name, model.ReasonIncompatibleTarget), true
	}
	if !s.Configured() {
		return model.Skipped(s.name, model.ReasonNotConfigured), true
	}
	return model.ToolResult{}, false
}

func (s *service) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return defaultToolTimeout
}

func (s *service) endpoint(elem ...string) (string, error) {
	return utils.JoinURL(s.baseURL, elem...)
}

// do waits on the rate limiter, sends req and rejects non-2xx responses.
func (s *service) do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if s.cfg.APIKey != "" {
		if req.Headers == nil {
			req.Headers = http.Header{}
		}
		req.Headers.Set("X-API-Key", s.cfg.APIKey)
	}
	resp, err := s.wc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp, nil
}

// fail converts err into a failed result, tagging deadline errors as timeouts.
func (s *service) fail(ctx context.Context, err error) model.ToolResult {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("tool call timed out", logging.Field{Key: "timeout", Value: s.timeout().String()})
		return model.Failed(s.name, fmt.Sprintf("timeout: %s did not respond within %s", s.name, s.timeout()))
	}
	s.logger.Warn("tool call failed", logging.Err(err))
	return model.Failed(s.name, fmt.Sprintf("%s: %v", s.name, err))
}
