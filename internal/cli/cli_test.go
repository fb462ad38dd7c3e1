package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/sift/internal/app"
	"github.com/raysh454/sift/internal/model"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.yaml")
	body := "storage_root: " + filepath.Join(dir, "data") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_WorkspaceScanLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "workspace", "create", "acme", "--credits", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "acme")

	_, err = run(t, cfg, "member", "add", "acme", "alice")
	require.NoError(t, err)

	out, err = run(t, cfg, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "maigret")
	assert.Contains(t, out, "not configured")

	// No tool service is configured, so the scan is billed and every tool
	// is skipped.
	out, err = run(t, cfg, "scan", "alice123", "-w", "acme", "-u", "alice", "--tools", "maigret", "--scan-id", "S1", "--json", "-q")
	require.NoError(t, err)
	var scanned model.ScanRun
	require.NoError(t, json.Unmarshal([]byte(out), &scanned))
	assert.Equal(t, 5, scanned.TotalCost)
	require.Len(t, scanned.Results, 1)
	assert.Equal(t, model.StatusSkipped, scanned.Results[0].Status)
	assert.Equal(t, model.ReasonNotConfigured, scanned.Results[0].Reason)

	out, err = run(t, cfg, "workspace", "balance", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "balance 15")
	assert.Contains(t, out, "multi-tool scan S1")

	out, err = run(t, cfg, "show", "S1", "-u", "alice", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"scanId":"S1"`)

	out, err = run(t, cfg, "list", "-w", "acme", "-u", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "S1")

	_, err = run(t, cfg, "scan", "alice123", "-w", "acme", "-u", "mallory", "--tools", "maigret", "-q")
	assert.ErrorIs(t, err, app.ErrForbidden)

	_, err = run(t, cfg, "scan", "alice123", "-w", "acme", "-u", "alice", "--tools", "maigret,reconng,spiderfoot", "-q")
	assert.ErrorIs(t, err, app.ErrQuotaExceeded)
}

func TestCLI_TokenIssue(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "token", "issue", "alice", "--label", "ci")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "sift_"))
}

func TestCLI_ScanRequiresUser(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "scan", "alice123", "-w", "acme", "--tools", "maigret")
	assert.ErrorContains(t, err, "--user")
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, writeConfig(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, app.Version)
}
