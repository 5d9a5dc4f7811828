package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/services/stats"
)

// NewStatsCmd creates the command printing a user's dashboard statistics
func NewStatsCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard statistics for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			cfg, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			user, err := database.NewUserRepository(db).GetByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("failed to find user %s: %w", email, err)
			}

			result, err := stats.NewService(database.NewTodoRepository(db), loc, nil).Stats(ctx, user.ID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the user (required)")

	return cmd
}
