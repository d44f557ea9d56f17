package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"approvalflow/internal/app"
	"approvalflow/internal/config"
	"approvalflow/internal/logger"

	"github.com/spf13/cobra"
)

var (
	envFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "approvalctl",
	Short: "Operate the approval workflow service",
	Long: `approvalctl runs maintenance tasks against the approval database.

Examples:
  # Create or update the schema and built-in roles
  approvalctl migrate

  # Overdue assignments at level 2, as JSON
  approvalctl overdue --level 2 --format json

  # Register an approver and mint a development token
  approvalctl user create --username alice --email alice@example.com --role reviewer
  approvalctl token --username alice --ttl 8h
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "configs/.env", "Env file to load before the environment")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(overdueCmd)
	rootCmd.AddCommand(bottlenecksCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
}

// withApp loads configuration, connects and runs fn against the wired services
func withApp(ctx context.Context, migrate bool, fn func(*app.App) error) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log := logger.InitGlobal(logger.Config{Level: cfg.LogLevel, Pretty: true})

	a, err := app.New(ctx, cfg, log, nil, migrate)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// printJSON writes v indented when --format json was requested. It reports
// whether it handled the output.
func printJSON(w io.Writer, v interface{}) (bool, error) {
	if outputFormat != "json" {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the schema and seed built-in roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app.App) error {
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		})
	},
}
