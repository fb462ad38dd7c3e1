package progress

import "errors"

// ErrClosed is returned by Hub.Emit after the hub has been closed.
var ErrClosed = errors.New("progress hub closed")
