package cmd

import (
	"github.com/spf13/cobra"

	"github.com/projectatomic/osbs-go/internal/config"
)

func NewGetBuildCommand(conf *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "get-build <build>",
		Short:   "Print a build document",
		Example: "osbs get-build my-component-1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := newClient(conf).GetBuild(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printObject(cmd.OutOrStdout(), obj)
		},
	}

	if err := conf.BindFlags(cmd.PersistentFlags(), config.ClientOptions); err != nil {
		return nil, err
	}
	return cmd, nil
}

func NewListBuildsCommand(conf *config.Config) (*cobra.Command, error) {
	var buildConfigID string
	var fieldSelector string

	cmd := &cobra.Command{
		Use:     "list-builds",
		Short:   "List builds in the namespace",
		Example: "osbs list-builds --buildconfig my-component",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			obj, err := newClient(conf).ListBuilds(cmd.Context(), buildConfigID, fieldSelector)
			if err != nil {
				return err
			}
			return printObject(cmd.OutOrStdout(), obj)
		},
	}
	cmd.Flags().StringVar(&buildConfigID, "buildconfig", "", "Only builds created from this build config")
	cmd.Flags().StringVar(&fieldSelector, "field-selector", "", "Field selector for the query")

	if err := conf.BindFlags(cmd.PersistentFlags(), config.ClientOptions); err != nil {
		return nil, err
	}
	return cmd, nil
}
