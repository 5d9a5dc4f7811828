package commands

import (
	"fmt"
	"os"

	"github.com/taskflow-ai/taskflow-api/internal/config"
	"github.com/taskflow-ai/taskflow-api/internal/database"
)

// openDatabase loads the configuration and connects to its database.
// The returned func closes the pool.
func openDatabase() (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return cfg, db, closeDB, nil
}
