// Package correlate runs a cheap cross-tool pass over the results of one scan.
package correlate

import (
	"fmt"

	"github.com/raysh454/sift/internal/model"
)

// Correlate returns one co-occurrence record for every unordered pair of
// completed tools that both reported at least one result. Pairs follow the
// order of results: (0,1), (0,2), ..., (1,2), ...
//
// Failed and skipped tools never take part, and neither does a completed tool
// with zero results.
func Correlate(results []model.ToolResult) []model.Correlation {
	hits := make([]model.ToolResult, 0, len(results))
	for _, r := range results {
		if r.Status == model.StatusCompleted && r.ResultCount > 0 {
			hits = append(hits, r)
		}
	}

	out := make([]model.Correlation, 0, len(hits)*(len(hits)-1)/2+1)
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			a, b := hits[i], hits[j]
			out = append(out, model.Correlation{
				ToolA:       a.Tool,
				ToolB:       b.Tool,
				Signal:      model.SignalCoOccurrence,
				CountA:      a.ResultCount,
				CountB:      b.ResultCount,
				Description: fmt.Sprintf("%s and %s both found results for the same target", a.Tool, b.Tool),
			})
		}
	}
	return out
}
