package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/i5validator/internal/compression"
	"github.com/jacoelho/i5validator/internal/config"
)

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("i5validator", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(flagSet(t), "")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogFile, cfg.LogFile)
	assert.Equal(t, compression.None, cfg.CompressionKind())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.JSONLogs())
	assert.False(t, cfg.Parallel)
	assert.False(t, cfg.DOM)
	assert.False(t, cfg.LogToJSON)
	assert.Zero(t, cfg.Jobs)
}

func TestLoadShortFlags(t *testing.T) {
	cfg, err := config.Load(flagSet(t, "-L", "out.json", "-p", "-c", "xz", "-d", "-l", "-j", "4"), "")
	require.NoError(t, err)

	assert.Equal(t, "out.json", cfg.LogFile)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, compression.Xz, cfg.CompressionKind())
	assert.True(t, cfg.DOM)
	assert.True(t, cfg.LogToJSON)
	assert.Equal(t, 4, cfg.Jobs)
}

func TestUnknownCompressionFlagIsRejected(t *testing.T) {
	fs := pflag.NewFlagSet("i5validator", pflag.ContinueOnError)
	fs.SetOutput(&discard{})
	config.RegisterFlags(fs)
	require.Error(t, fs.Parse([]string{"-c", "zip"}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("I5VALIDATOR_LOG_FILE", "env.json")
	t.Setenv("I5VALIDATOR_COMPRESSION", "bzip2")
	t.Setenv("I5VALIDATOR_LOG_LEVEL", "DEBUG")
	t.Setenv("I5VALIDATOR_PARALLEL", "true")

	cfg, err := config.Load(flagSet(t), "")
	require.NoError(t, err)
	assert.Equal(t, "env.json", cfg.LogFile)
	assert.Equal(t, compression.Bzip2, cfg.CompressionKind())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Parallel)
}

func TestExplicitFlagWinsOverEnvironment(t *testing.T) {
	t.Setenv("I5VALIDATOR_LOG_FILE", "env.json")

	cfg, err := config.Load(flagSet(t, "--log-file", "flag.json"), "")
	require.NoError(t, err)
	assert.Equal(t, "flag.json", cfg.LogFile)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "run.yaml", content: "log-file: file.json\ncompression: gzip\nlog-format: json\njobs: 2\nsummary: true\n"},
		{name: "run.toml", content: "log-file = \"file.json\"\ncompression = \"gzip\"\nlog-format = \"json\"\njobs = 2\nsummary = true\n"},
		{name: "run.json", content: `{"log-file": "file.json", "compression": "gzip", "log-format": "json", "jobs": 2, "summary": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg, err := config.Load(flagSet(t), path)
			require.NoError(t, err)
			assert.Equal(t, "file.json", cfg.LogFile)
			assert.Equal(t, compression.Gzip, cfg.CompressionKind())
			assert.True(t, cfg.JSONLogs())
			assert.Equal(t, 2, cfg.Jobs)
			assert.True(t, cfg.Summary)

			cfg, err = config.Load(flagSet(t, "-c", "lz4"), path)
			require.NoError(t, err)
			assert.Equal(t, compression.Lz4, cfg.CompressionKind())
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := config.Load(flagSet(t), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		want error
	}{
		{name: "compression", env: map[string]string{"I5VALIDATOR_COMPRESSION": "zip"}, want: config.ErrInvalidCompression},
		{name: "log level", args: []string{"--log-level", "loud"}, want: config.ErrInvalidLogLevel},
		{name: "log format", args: []string{"--log-format", "xml"}, want: config.ErrInvalidLogFormat},
		{name: "jobs", args: []string{"--jobs=-1"}, want: config.ErrInvalidJobs},
		{name: "report path", args: []string{"-l", "--log-file="}, want: config.ErrEmptyReportPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(flagSet(t, tt.args...), "")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadWithoutFlags(t *testing.T) {
	cfg, err := config.Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultLogFile, cfg.LogFile)
}

func TestCompressionUsageNamesLz4Extension(t *testing.T) {
	fs := flagSet(t)
	f := fs.Lookup(config.KeyCompression)
	require.NotNil(t, f)
	assert.Contains(t, f.Usage, "lz4")
	assert.Contains(t, f.Usage, ".lz4 files are always read as lz4")
}
