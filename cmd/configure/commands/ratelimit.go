package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update per-scope rate limits (e.g. 5-S, 100-M). Scopes: default (API), auth (login).",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			configs, err := database.NewRatelimitConfigRepository(db).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				fmt.Println("No rate limit configuration in database. Use 'ratelimit set' to add one.")
				return nil
			}
			fmt.Println("Rate limit configuration:")
			for _, c := range configs {
				fmt.Printf("  %-8s %s\n", c.ConfigKey, c.Rate)
			}
			return nil
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate, scope string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		Long:  "Update the rate limit of a scope (e.g. 5-S, 100-M, 1000-H).",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}
			if scope != database.RatelimitKeyDefault && scope != database.RatelimitKeyAuth {
				return fmt.Errorf("--scope must be %q or %q", database.RatelimitKeyDefault, database.RatelimitKeyAuth)
			}
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			c := &models.RatelimitConfig{ConfigKey: scope, Rate: rate}
			if err := database.NewRatelimitConfigRepository(db).Set(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Printf("Rate limit for %s updated to %s.\n", c.ConfigKey, c.Rate)
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	cmd.Flags().StringVar(&scope, "scope", database.RatelimitKeyDefault, "Scope: default or auth")
	return cmd
}
