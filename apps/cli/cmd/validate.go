package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [contract-file]",
	Short: "Validate a contract file without running it",
	Long: `Validate a contract file for syntax and structural errors without
sending any requests.

Checks methods, paths, expected statuses, assertions and that every
{name} path placeholder has a param to fill it. References like
{{name}} or {{$NAME}} that nothing defines are reported as warnings.

Examples:
  hitcontract validate
  hitcontract validate posts.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return configError(err)
	}
	if err := cfg.Validate(); err != nil {
		return configError(fmt.Errorf("%s: %w", cfg.Path, err))
	}

	for _, problem := range cfg.UnresolvedReferences(env.NewResolver()) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unresolved reference in %s\n", problem)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d contracts)\n", cfg.Path, len(cfg.Contracts))
	return nil
}
