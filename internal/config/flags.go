package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jacoelho/i5validator/internal/compression"
)

// RegisterFlags defines the command-line flags read by Load on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	kind := compression.None
	fs.StringP(KeyLogFile, "L", DefaultLogFile, "path of the JSON error report")
	fs.BoolP(KeyParallel, "p", false, "validate files concurrently")
	fs.VarP(&kind, KeyCompression, "c",
		fmt.Sprintf("compression of files without a recognized extension (%s); .lz4 files are always read as lz4",
			strings.Join(compression.Names(), "|")))
	fs.BoolP(KeyDOM, "d", false, "build the document tree before validating it")
	fs.BoolP(KeyLogToJSON, "l", false, "collect errors and write the report")
	fs.IntP(KeyJobs, "j", 0, "parallel worker limit (0 uses GOMAXPROCS)")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level (debug|info|warn|error)")
	fs.String(KeyLogFormat, DefaultLogFormat, "log format (text|json)")
	fs.String(KeyMetricsFile, "", "write run metrics in the Prometheus text format to this file")
	fs.Bool(KeySummary, false, "print a per-document summary table")
}
