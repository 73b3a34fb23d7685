package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/projectatomic/osbs-go/internal/config"
	"github.com/projectatomic/osbs-go/pkg/build"
	"github.com/projectatomic/osbs-go/pkg/client"
)

func NewStartBuildCommand(conf *config.Config) (*cobra.Command, error) {
	var wait bool
	var follow bool

	cmd := &cobra.Command{
		Use:     "start-build <buildconfig>",
		Short:   "Instantiate a build from a build config",
		Example: "osbs start-build my-component --follow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartBuild(cmd, conf, args[0], wait, follow)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the build to finish")
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream build logs while waiting")

	if err := conf.BindFlags(cmd.PersistentFlags(), config.ClientOptions); err != nil {
		return nil, err
	}
	return cmd, nil
}

func runStartBuild(cmd *cobra.Command, conf *config.Config, buildConfigID string, wait, follow bool) error {
	ctx := cmd.Context()
	c := newClient(conf)

	bc, err := c.GetBuildConfig(ctx, buildConfigID)
	if err != nil {
		return fmt.Errorf("failed to get build config %q: %w", buildConfigID, err)
	}
	prevVersion := lastVersion(bc)

	if _, err := c.InstantiateBuildConfig(ctx, buildConfigID); err != nil {
		return fmt.Errorf("failed to instantiate build config %q: %w", buildConfigID, err)
	}

	buildID, err := c.WaitForNewBuildConfigInstance(ctx, buildConfigID, prevVersion)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), buildID)

	if !wait && !follow {
		return nil
	}
	if !follow {
		return waitAndReport(ctx, cmd, c, buildID)
	}

	// Tail logs while the build runs and report its final phase.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return waitAndReport(ctx, cmd, c, buildID)
	})
	g.Go(func() error {
		if _, err := c.WaitForBuildToGetScheduled(ctx, buildID); err != nil {
			return err
		}
		logs := c.StreamLogs(ctx, buildID)
		defer logs.Stop()
		for line := range logs.Lines() {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return logs.Err()
	})
	return g.Wait()
}

func waitAndReport(ctx context.Context, cmd *cobra.Command, c *client.Openshift, buildID string) error {
	obj, err := c.WaitForBuildToFinish(ctx, buildID)
	if err != nil {
		return err
	}
	b := build.New(obj)
	fmt.Fprintf(cmd.OutOrStdout(), "build %s finished with phase %s\n", b.Name(), b.Phase())
	if b.IsFailed() {
		return fmt.Errorf("build %s failed", b.Name())
	}
	return nil
}
