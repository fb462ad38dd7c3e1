package compare

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/sift/internal/model"
)

func run(id string, results ...model.ToolResult) *model.ScanRun {
	return &model.ScanRun{ScanID: id, Target: "example.com", TargetType: model.TargetDomain, Results: results}
}

func TestRuns_IdenticalIsUnchanged(t *testing.T) {
	t.Parallel()
	a := run("a", model.Completed("harvester", 2, map[string]any{"hosts": []string{"a.example.com"}}))
	b := run("b", model.Completed("harvester", 2, map[string]any{"hosts": []string{"a.example.com"}}))

	cmp, err := Runs(a, b)
	require.NoError(t, err)
	assert.False(t, cmp.Changed)
	assert.Empty(t, cmp.Chunks)
	require.Len(t, cmp.Tools, 1)
	assert.Equal(t, 0, cmp.Tools[0].Delta)
}

func TestRuns_ReportsCountsStatusesAndData(t *testing.T) {
	t.Parallel()
	a := run("a",
		model.Completed("harvester", 1, map[string]any{"hosts": []string{"a.example.com"}}),
		model.Skipped("spiderfoot", model.ReasonNotConfigured),
	)
	b := run("b",
		model.Completed("harvester", 2, map[string]any{"hosts": []string{"a.example.com", "vpn.example.com"}}),
		model.Failed("reconng", "boom"),
	)

	cmp, err := Runs(a, b)
	require.NoError(t, err)
	assert.True(t, cmp.Changed)

	require.Len(t, cmp.Tools, 3)
	assert.Equal(t, "harvester", cmp.Tools[0].Tool)
	assert.Equal(t, 1, cmp.Tools[0].Delta)
	assert.Equal(t, "spiderfoot", cmp.Tools[1].Tool)
	assert.Equal(t, model.StatusSkipped, cmp.Tools[1].BaseStatus)
	assert.Empty(t, cmp.Tools[1].HeadStatus)
	assert.Equal(t, "reconng", cmp.Tools[2].Tool)
	assert.Equal(t, model.StatusFailed, cmp.Tools[2].HeadStatus)

	var added bool
	for _, c := range cmp.Chunks {
		if c.Tool == "harvester" && c.Type == "added" && strings.Contains(c.Content, "vpn.example.com") {
			added = true
		}
	}
	assert.True(t, added, "expected an added chunk mentioning the new host: %+v", cmp.Chunks)
}

func TestRuns_RejectsDifferentTargets(t *testing.T) {
	t.Parallel()
	a := run("a")
	b := run("b")
	b.Target = "other.org"
	_, err := Runs(a, b)
	assert.Error(t, err)

	_, err = Runs(nil, a)
	assert.Error(t, err)
}
