package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forge/internal/logging"
	"forge/internal/provider"
)

func newModelsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available to the local provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer logging.Close()

			p, err := provider.NewLocal(cfg)
			if err != nil {
				return err
			}
			lister, ok := p.(provider.ModelLister)
			if !ok {
				return fmt.Errorf("provider %s cannot list models", p.Name())
			}

			if err := lister.Healthcheck(cmd.Context()); err != nil {
				return fmt.Errorf("%s is not reachable: %w", p.Name(), err)
			}
			models, err := lister.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			for _, m := range models {
				marker := " "
				if m == p.Model() {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, m)
			}
			return nil
		},
	}
}
