// Command i5validator validates XML corpus files against the DTD each one
// declares and optionally writes an aggregate JSON report of the findings.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runWithArgs(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func runWithArgs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_ = writef(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		return 1
	}
	return 0
}
