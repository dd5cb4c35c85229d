package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/spf13/cobra"
)

var (
	listEnvFlag  string
	listNameFlag string
	listTagsFlag string
)

var listCmd = &cobra.Command{
	Use:   "list [contract-file]",
	Short: "List the contracts in a contract file",
	Long: `List the contracts defined in a contract file, marking the ones a
run with the same filters would skip.

Examples:
  hitcontract list
  hitcontract list posts.yaml --tags smoke`,
	Args: cobra.MaximumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringVarP(&listEnvFlag, "env", "e", getEnvString("HITCONTRACT_ENV", ""), "Environment section to apply (env: HITCONTRACT_ENV)")
	listCmd.Flags().StringVarP(&listNameFlag, "name", "n", "", "Filter by name pattern (* wildcard)")
	listCmd.Flags().StringVarP(&listTagsFlag, "tags", "t", "", "Filter by tags (comma-separated)")
}

func listCommand(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), 0, false)
	if err != nil {
		return err
	}

	opts := suiteOptions{
		envName: listEnvFlag,
		filter:  config.Filter{Name: listNameFlag, Tags: splitList(listTagsFlag)},
	}
	if len(args) > 0 {
		opts.path = args[0]
	}

	loaded, err := loadSuite(opts, logger)
	if err != nil {
		return err
	}

	skipped := make(map[string]string, len(loaded.selection.Skipped))
	for _, s := range loaded.selection.Skipped {
		skipped[s.Contract.DisplayName()] = s.Reason
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s:\n", loaded.config.Path)
	for _, c := range loaded.suite.Contracts {
		name := c.DisplayName()
		fmt.Fprintf(out, "  - %s\n", name)
		fmt.Fprintf(out, "    %s %s -> %d\n", c.Method, c.Path, c.ExpectStatus)
		if len(c.Tags) > 0 {
			fmt.Fprintf(out, "    tags: %s\n", strings.Join(c.Tags, ", "))
		}
		if reason, ok := skipped[name]; ok {
			fmt.Fprintf(out, "    skipped: %s\n", reason)
		}
	}
	fmt.Fprintf(out, "\n%d contracts, %d selected\n", len(loaded.suite.Contracts), len(loaded.selection.Contracts))
	return nil
}
