package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskflow-ai/taskflow-api/cmd/configure/commands"
	"github.com/taskflow-ai/taskflow-api/internal/config"
)

func main() {
	var envFile string

	var rootCmd = &cobra.Command{
		Use:   "taskflow-configure",
		Short: "Configuration tool for the TaskFlow API",
		Long:  "CLI tool for configuring OIDC providers, CORS, rate limits and the database schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file")

	rootCmd.AddCommand(commands.NewOIDCCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewTestCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewStatsCmd())
	rootCmd.AddCommand(commands.NewEventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
