// Package compare reports what changed between two scan runs of the same
// target.
package compare

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/sift/internal/model"
)

// ToolDelta is the per-tool change between a base and a head run. A tool
// absent from one side has an empty status on that side.
type ToolDelta struct {
	Tool       string           `json:"tool"`
	BaseStatus model.ToolStatus `json:"baseStatus,omitempty"`
	HeadStatus model.ToolStatus `json:"headStatus,omitempty"`
	BaseCount  int              `json:"baseCount"`
	HeadCount  int              `json:"headCount"`
	Delta      int              `json:"delta"`
}

// Chunk is one inserted or removed span of the tool data.
type Chunk struct {
	Tool    string `json:"tool"`
	Type    string `json:"type"` // "added" | "removed"
	Content string `json:"content"`
}

type Comparison struct {
	BaseScanID string      `json:"baseScanId"`
	HeadScanID string      `json:"headScanId"`
	Target     string      `json:"target"`
	Tools      []ToolDelta `json:"tools"`
	Chunks     []Chunk     `json:"chunks"`
	Changed    bool        `json:"changed"`
}

// Runs compares base against head. Both runs must be for the same target.
func Runs(base, head *model.ScanRun) (*Comparison, error) {
	if base == nil || head == nil {
		return nil, fmt.Errorf("compare: nil run")
	}
	if base.TargetType != head.TargetType || base.Target != head.Target {
		return nil, fmt.Errorf("compare: runs target %s:%s and %s:%s",
			base.TargetType, base.Target, head.TargetType, head.Target)
	}

	cmp := &Comparison{
		BaseScanID: base.ScanID,
		HeadScanID: head.ScanID,
		Target:     base.Target,
		Tools:      []ToolDelta{},
		Chunks:     []Chunk{},
	}

	baseByTool := index(base.Results)
	headByTool := index(head.Results)

	for _, name := range toolOrder(base.Results, head.Results) {
		b, inBase := baseByTool[name]
		h, inHead := headByTool[name]

		d := ToolDelta{Tool: name}
		if inBase {
			d.BaseStatus, d.BaseCount = b.Status, b.ResultCount
		}
		if inHead {
			d.HeadStatus, d.HeadCount = h.Status, h.ResultCount
		}
		d.Delta = d.HeadCount - d.BaseCount
		cmp.Tools = append(cmp.Tools, d)

		if d.BaseStatus != d.HeadStatus || d.Delta != 0 {
			cmp.Changed = true
		}

		chunks := diffData(name, dataText(b.Data), dataText(h.Data))
		if len(chunks) > 0 {
			cmp.Changed = true
			cmp.Chunks = append(cmp.Chunks, chunks...)
		}
	}
	return cmp, nil
}

func index(results []model.ToolResult) map[string]model.ToolResult {
	out := make(map[string]model.ToolResult, len(results))
	for _, r := range results {
		out[r.Tool] = r
	}
	return out
}

// toolOrder lists base tools in order followed by tools only in head.
func toolOrder(base, head []model.ToolResult) []string {
	seen := map[string]bool{}
	var out []string
	for _, set := range [][]model.ToolResult{base, head} {
		for _, r := range set {
			if !seen[r.Tool] {
				seen[r.Tool] = true
				out = append(out, r.Tool)
			}
		}
	}
	return out
}

// dataText renders tool data as indented JSON so diffs break on fields.
func dataText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func diffData(tool, base, head string) []Chunk {
	if base == head {
		return nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(base, head, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var out []Chunk
	for _, d := range diffs {
		var typ string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = "added"
		case diffmatchpatch.DiffDelete:
			typ = "removed"
		default:
			continue
		}
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		out = append(out, Chunk{Tool: tool, Type: typ, Content: d.Text})
	}
	return out
}
