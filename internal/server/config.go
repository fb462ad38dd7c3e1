package server

import (
	"github.com/raysh454/sift/internal/app"
	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/metrics"
	"github.com/raysh454/sift/internal/progress"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server (CLI uses
	// the orchestrator in-process and does not require the network).
	ListenAddr string
	// AllowedOrigins is matched against the Origin header for CORS and
	// websocket upgrades. "*" allows any origin.
	AllowedOrigins []string
	// Metrics mounts the prometheus handler at /metrics.
	Metrics bool
}

// Deps are the components a Server fronts. Orchestrator and Auth are required.
type Deps struct {
	Orchestrator *app.Orchestrator
	Auth         app.Authenticator
	Hub          *progress.Hub
	Metrics      *metrics.Metrics
	Logger       logging.Logger
}

// FromApplication builds a Server over a running Application.
func FromApplication(a *app.Application) (*Server, error) {
	return NewServer(Config{
		ListenAddr:     a.Config.Server.ListenAddr,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Metrics:        a.Config.Server.Metrics,
	}, Deps{
		Orchestrator: a.Orch,
		Auth:         a.Registry,
		Hub:          a.Hub,
		Metrics:      a.Metrics,
		Logger:       a.Logger,
	})
}
