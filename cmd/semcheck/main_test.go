package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainTestRegistryYAML = `
groups:
  - id: registry.server
    type: attribute_group
    attributes:
      - name: server.address
        type: string
        stability: stable
      - name: server.socket.address
        type: string
        stability: stable
        deprecated:
          reason: renamed
          renamed_to: network.peer.address
`

func writeMainTestFixtures(t *testing.T, input string) (registryPath, inputPath string) {
	t.Helper()
	dir := t.TempDir()
	registryPath = filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(registryPath, []byte(mainTestRegistryYAML), 0o600))
	inputPath = filepath.Join(dir, "samples.txt")
	require.NoError(t, os.WriteFile(inputPath, []byte(input), 0o600))
	return registryPath, inputPath
}

func runCheckCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"check"}, args...))
	return cmd.Execute()
}

func reportedSamples(t *testing.T, path string) []any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	samples, _ := doc["samples"].([]any)
	return samples
}

func TestCheckFailFast(t *testing.T) {
	input := "server.address=localhost\nserver.socket.address=10.0.0.1\nserver.address=fallback\n"
	registryPath, inputPath := writeMainTestFixtures(t, input)
	output := filepath.Join(t.TempDir(), "report.json")

	err := runCheckCommand(t,
		"--registry", registryPath,
		"--input", inputPath,
		"--no-policy",
		"--fail-fast",
		"--report-format", "json",
		"--output", output,
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 violations")

	// The deprecated sample carries the violation; the third line is never
	// evaluated.
	assert.Len(t, reportedSamples(t, output), 2)
}

func TestCheckProcessesAllSamplesByDefault(t *testing.T) {
	input := "server.address=localhost\nserver.socket.address=10.0.0.1\nserver.address=fallback\n"
	registryPath, inputPath := writeMainTestFixtures(t, input)
	output := filepath.Join(t.TempDir(), "report.json")

	err := runCheckCommand(t,
		"--registry", registryPath,
		"--input", inputPath,
		"--no-policy",
		"--report-format", "json",
		"--output", output,
	)
	require.Error(t, err)
	assert.Len(t, reportedSamples(t, output), 3)
}

func TestCheckRejectsUnknownFormatFlag(t *testing.T) {
	registryPath, inputPath := writeMainTestFixtures(t, "server.address=localhost\n")

	err := runCheckCommand(t,
		"--registry", registryPath,
		"--input", inputPath,
		"--format", "csv",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ingest format")
}
