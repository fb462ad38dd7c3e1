package webclient

import (
	"fmt"
	"strings"

	"github.com/raysh454/sift/internal/logging"
)

// NewWebClient constructs the configured WebClient backend.
func NewWebClient(cfg Config, logger logging.Logger) (WebClient, error) {
	backend := Client(strings.ToLower(strings.TrimSpace(string(cfg.Client))))
	if backend == "" {
		backend = ClientNetHTTP
	}

	switch backend {
	case ClientNetHTTP:
		return NewNetHTTPClient(cfg, logger, nil)
	default:
		return nil, fmt.Errorf("webclient backend %q not supported", backend)
	}
}
