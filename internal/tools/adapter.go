// Package tools holds the adapters that translate a generic scan request into
// a call against one external OSINT service, plus the registry and price
// table the orchestrator uses to resolve tool ids.
package tools

import (
	"context"
	"slices"

	"github.com/raysh454/sift/internal/model"
)

// EmitFunc reports intermediate progress for the invoking tool. The
// orchestrator binds it to the scan and tool, so adapters only supply the
// status and a message.
type EmitFunc func(status model.ProgressStatus, message string)

// Invocation carries everything an adapter needs for one call.
type Invocation struct {
	Target      string
	TargetType  model.TargetType
	WorkspaceID string
	ScanID      string
	Emit        EmitFunc
}

func (inv Invocation) emit(status model.ProgressStatus, msg string) {
	if inv.Emit != nil {
		inv.Emit(status, msg)
	}
}

// Adapter is one integrated scanning tool.
//
// Invoke must always return a terminal ToolResult. Unsupported target types
// and missing configuration are reported as skipped; transport and service
// errors are reported as failed. Adapters do not share mutable state with
// each other.
type Adapter interface {
	Name() string
	SupportedTargets() []model.TargetType
	Configured() bool
	Invoke(ctx context.Context, inv Invocation) model.ToolResult
}

// Supports reports whether a declares support for t.
func Supports(a Adapter, t model.TargetType) bool {
	return slices.Contains(a.SupportedTargets(), t)
}

// AdapterFunc adapts a plain function into an Adapter that supports every
// target type and is always configured. Useful for wiring ad-hoc tools.
type AdapterFunc struct {
	ToolName string
	Fn       func(ctx context.Context, inv Invocation) model.ToolResult
}

func (f AdapterFunc) Name() string                         { return f.ToolName }
func (f AdapterFunc) SupportedTargets() []model.TargetType { return model.AllTargetTypes }
func (f AdapterFunc) Configured() bool                     { return true }
func (f AdapterFunc) Invoke(ctx context.Context, inv Invocation) model.ToolResult {
	return f.Fn(ctx, inv)
}
