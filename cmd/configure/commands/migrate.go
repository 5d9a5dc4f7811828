package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the command applying the embedded schema migrations
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			applied, err := db.Migrate(cmd.Context())
			for _, version := range applied {
				fmt.Printf("Applied %s\n", version)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Database schema is up to date")
			}
			return nil
		},
	}
}
