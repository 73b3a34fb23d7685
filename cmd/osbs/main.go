// Package main is the entry point for the osbs binary, a thin CLI
// over the build client library: it starts builds, waits for them to
// finish, tails their logs, and imports image stream tags.
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/projectatomic/osbs-go/internal/cmd"
	"github.com/projectatomic/osbs-go/internal/config"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command
// and registers the subcommands.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "osbs",
		Short:         "OSBS: drive container image builds on an OpenShift cluster.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if conf.Verbose() {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	constructors := []func(*config.Config) (*cobra.Command, error){
		cmd.NewStartBuildCommand,
		cmd.NewWatchBuildCommand,
		cmd.NewBuildLogsCommand,
		cmd.NewGetBuildCommand,
		cmd.NewListBuildsCommand,
		cmd.NewImportImageCommand,
	}
	for _, construct := range constructors {
		sub, err := construct(conf)
		if err != nil {
			return nil, err
		}
		c.AddCommand(sub)
	}

	return c, nil
}
