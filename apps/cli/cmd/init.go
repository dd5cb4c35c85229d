package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Create an example contract file",
	Long: `Create hitcontract.yaml with example contracts for the public
jsonplaceholder posts API, plus a local environment section.

Examples:
  hitcontract init
  hitcontract init ./contracts --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
}

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	configFile := filepath.Join(dir, config.ConfigFilenames[0])
	if !forceInit {
		if _, err := os.Stat(configFile); err == nil {
			return usageError("file already exists: %s (use --force to overwrite)", configFile)
		}
	}

	if err := exampleConfig().SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)
	fmt.Fprintf(cmd.OutOrStdout(), "\nRun the contracts with:\n  hitcontract run %s\n", configFile)
	return nil
}

// exampleConfig returns a contract file exercising every rule kind except
// schema against jsonplaceholder's posts resource.
func exampleConfig() *config.Config {
	post := map[string]any{
		"userId": "{{postId}}",
		"title":  "js poc post title",
		"body":   "js poc post body",
	}
	updated := map[string]any{
		"id":     29,
		"userId": "{{postId}}",
		"title":  "updated title",
		"body":   "updated body",
	}

	return &config.Config{
		BaseURL:   "https://jsonplaceholder.typicode.com",
		TimeoutMs: config.DefaultTimeoutMs,
		Headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "hitcontract/" + version,
		},
		Params: map[string]any{
			"postId": "{{random(1,100)}}",
		},
		Environments: map[string]*config.Environment{
			"local": {BaseURL: "http://localhost:3000"},
		},
		Contracts: []config.ContractSpec{
			{
				Name:         "list posts",
				Tags:         []string{"smoke", "read"},
				Method:       "GET",
				Path:         "/posts",
				ExpectStatus: 200,
				Assert:       []contract.Rule{contract.NonEmpty(), contract.IsArray()},
			},
			{
				Name:         "get post",
				Tags:         []string{"smoke", "read"},
				Method:       "GET",
				Path:         "/posts/{postId}",
				ExpectStatus: 200,
				Assert: []contract.Rule{
					contract.NonEmpty(),
					contract.FieldEquals("id", "{{postId}}"),
				},
			},
			{
				Name:         "create post",
				Tags:         []string{"write"},
				Method:       "POST",
				Path:         "/posts",
				Body:         post,
				ExpectStatus: 201,
				Assert: []contract.Rule{
					contract.HasKeys("id", "userId", "title", "body"),
					contract.FieldEquals("userId", "{{postId}}"),
					contract.DeepIncludes(map[string]any{
						"title": post["title"],
						"body":  post["body"],
					}),
				},
			},
			{
				Name:         "update post",
				Tags:         []string{"write"},
				Method:       "PUT",
				Path:         "/posts/{id}",
				Params:       map[string]any{"id": 29},
				Body:         updated,
				ExpectStatus: 200,
				Assert: []contract.Rule{
					contract.HasKeys("userId", "title", "body", "id"),
					contract.FieldEquals("userId", updated["userId"]),
					contract.DeepIncludes(updated),
				},
			},
			{
				Name:         "delete post",
				Tags:         []string{"write"},
				Method:       "DELETE",
				Path:         "/posts/29",
				ExpectStatus: 200,
			},
		},
	}
}
