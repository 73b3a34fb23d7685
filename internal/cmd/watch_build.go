package cmd

import (
	"github.com/spf13/cobra"

	"github.com/projectatomic/osbs-go/internal/config"
)

func NewWatchBuildCommand(conf *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "watch-build <build>",
		Short:   "Wait for a build to finish and report its phase",
		Example: "osbs watch-build my-component-1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return waitAndReport(cmd.Context(), cmd, newClient(conf), args[0])
		},
	}

	if err := conf.BindFlags(cmd.PersistentFlags(), config.ClientOptions); err != nil {
		return nil, err
	}
	return cmd, nil
}
