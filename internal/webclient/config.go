package webclient

import "time"

type Client string

const (
	ClientNetHTTP Client = "nethttp"
)

// Config is the minimal set of options required to construct a WebClient.
type Config struct {
	Client    Client        `yaml:"client"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	// MaxBodyBytes caps how much of a response body is read; 0 means 4 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

const defaultMaxBodyBytes = 4 << 20
