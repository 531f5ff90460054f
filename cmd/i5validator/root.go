package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jacoelho/i5validator"
	"github.com/jacoelho/i5validator/internal/config"
	"github.com/jacoelho/i5validator/internal/observability"
	"github.com/jacoelho/i5validator/internal/runner"
)

const configFlag = "config"

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "i5validator [flags] FILE...",
		Short: "Validate XML corpus files against their DTD",
		Long: `i5validator validates each FILE against the DTD its DOCTYPE declares.

Files ending in .gz/.gzip, .bz2/.bzip2, .xz or .lz4 are decompressed
accordingly; other files use the --compression default. Findings are
logged as they are seen and, with --log-to-json, collected into a JSON
report keyed by file name and message.

Every flag can also be set through an I5VALIDATOR_* environment variable
(for example I5VALIDATOR_LOG_FILE) or a --config file.`,
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := cmd.Flags().GetString(configFlag)
			if err != nil {
				return err
			}
			cfg, err := config.Load(cmd.Flags(), configPath)
			if err != nil {
				return err
			}
			return validateFiles(cmd.Context(), cfg, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	config.RegisterFlags(flags)
	flags.String(configFlag, "", "read settings from this file (yaml, toml or json)")
	flags.BoolP("version", "V", false, "print the version and exit")
	flags.SortFlags = false
	return cmd
}

func validateFiles(ctx context.Context, cfg *config.Config, files []string, stdout, stderr io.Writer) (err error) {
	level, err := observability.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	providers, err := observability.Init(observability.Config{
		Output:         stderr,
		ServiceName:    "i5validator",
		ServiceVersion: version,
		LogLevel:       level,
		LogJSON:        cfg.JSONLogs(),
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		err = errors.Join(err, providers.Shutdown(context.WithoutCancel(ctx)))
	}()

	metrics, err := observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	v, err := i5validator.New(i5validator.NewOptions().
		WithKeepRecord(cfg.LogToJSON).
		WithLogger(providers.Logger))
	if err != nil {
		return err
	}

	mode := i5validator.ModeSAX
	if cfg.DOM {
		mode = i5validator.ModeDOM
	}
	r, err := runner.New(v, runner.Options{
		Tracer:      providers.Tracer,
		ReportPath:  cfg.LogFile,
		Files:       files,
		Jobs:        cfg.Jobs,
		Compression: cfg.CompressionKind(),
		Mode:        mode,
		Parallel:    cfg.Parallel,
		KeepRecord:  cfg.LogToJSON,
	}, providers.Logger, metrics)
	if err != nil {
		return err
	}

	runErr := r.Run(ctx)
	if cfg.Summary {
		if err := writeSummary(stdout, r.Results()); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := observability.WriteMetrics(cfg.MetricsFile, providers.Registry); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}
