package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projectatomic/osbs-go/internal/config"
)

func NewBuildLogsCommand(conf *config.Config) (*cobra.Command, error) {
	var follow bool

	cmd := &cobra.Command{
		Use:     "build-logs <build>",
		Short:   "Print the logs of a build",
		Example: "osbs build-logs my-component-1 --follow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildLogs(cmd, conf, args[0], follow)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream logs as they are produced")

	if err := conf.BindFlags(cmd.PersistentFlags(), config.ClientOptions); err != nil {
		return nil, err
	}
	return cmd, nil
}

func runBuildLogs(cmd *cobra.Command, conf *config.Config, buildID string, follow bool) error {
	ctx := cmd.Context()
	c := newClient(conf)

	if !follow {
		logs, err := c.GetBuildLogs(ctx, buildID)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(logs)
		return err
	}

	// The server rejects log requests for builds that have not been
	// scheduled yet.
	if _, err := c.WaitForBuildToGetScheduled(ctx, buildID); err != nil {
		return err
	}

	logs := c.StreamLogs(ctx, buildID)
	defer logs.Stop()
	for line := range logs.Lines() {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return logs.Err()
}
