package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMetricsFileAndJSONLogs(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.xml", `<!DOCTYPE r [<!ELEMENT r EMPTY>]><r><x/></r>`)
	metricsPath := filepath.Join(dir, "run.prom")

	var stdout, stderr bytes.Buffer
	code := runWithArgs(context.Background(), []string{
		"--log-format", "json",
		"--metrics-file", metricsPath,
		doc,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var sawVerdict bool
	for line := range strings.Lines(stderr.String()) {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record), line)
		assert.Equal(t, "i5validator", record["service"])
		if record["msg"] == "Document "+doc+" validated" {
			sawVerdict = true
			assert.NotEmpty(t, record["trace_id"])
		}
	}
	assert.True(t, sawVerdict, stderr.String())

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "i5validator_documents")
	assert.Contains(t, string(data), `verdict="valid"`)
}

func TestConfigFileSettings(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.xml", `<!DOCTYPE r [<!ELEMENT r EMPTY>]><r/>`)
	reportPath := filepath.Join(dir, "from-config.json")
	cfgPath := writeDoc(t, dir, "i5validator.yaml", "log-to-json: true\nlog-file: "+reportPath+"\ndom: true\n")

	var stdout, stderr bytes.Buffer
	code := runWithArgs(context.Background(), []string{"--config", cfgPath, doc}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, doc)
}

func TestEnvironmentSettings(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.xml", `<!DOCTYPE r [<!ELEMENT r EMPTY>]><r/>`)
	reportPath := filepath.Join(dir, "from-env.json")
	t.Setenv("I5VALIDATOR_LOG_TO_JSON", "true")
	t.Setenv("I5VALIDATOR_LOG_FILE", reportPath)

	var stdout, stderr bytes.Buffer
	code := runWithArgs(context.Background(), []string{doc}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	_, err := os.Stat(reportPath)
	require.NoError(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runWithArgs(context.Background(), []string{"--log-level", "loud", "a.xml"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "invalid log level")
}

func TestHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runWithArgs(context.Background(), []string{"-h"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	out := stdout.String()
	for _, flag := range []string{"--log-file", "--parallel", "--compression", "--dom", "--log-to-json", "--version", "--jobs"} {
		assert.Contains(t, out, flag)
	}
}
