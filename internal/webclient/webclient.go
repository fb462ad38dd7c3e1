package webclient

import (
	"context"
	"errors"
)

// ErrBodyTooLarge is returned when a response body exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// WebClient is the outbound HTTP transport used by tool adapters.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}
