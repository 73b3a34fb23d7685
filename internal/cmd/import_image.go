package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projectatomic/osbs-go/internal/config"
)

func NewImportImageCommand(conf *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "import-image <imagestream>",
		Short:   "Import image tags from the Docker registry into an image stream",
		Example: "osbs import-image my-component",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := newClient(conf).ImportImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintln(cmd.OutOrStdout(), "new tags imported")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no new tags")
			}
			return nil
		},
	}

	if err := conf.BindFlags(cmd.PersistentFlags(), config.ClientOptions); err != nil {
		return nil, err
	}
	return cmd, nil
}
