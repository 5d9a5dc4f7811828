package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskflow-ai/taskflow-api/internal/config"
	"github.com/taskflow-ai/taskflow-api/internal/events"
)

// NewEventsCmd creates the events command
func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect todo events",
	}
	cmd.AddCommand(newEventsTailCmd())
	return cmd
}

func newEventsTailCmd() *cobra.Command {
	var prefetch int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Consume and print todo events from the retention queue",
		Long:  "Consume todo events until interrupted. Consumed events are acknowledged and removed from the queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.RabbitMQURL == "" {
				return fmt.Errorf("RABBITMQ_URL is not set")
			}

			publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL)
			if err != nil {
				return err
			}
			defer func() { _ = publisher.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eventCh, errCh, err := publisher.Consume(ctx, prefetch)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			for {
				select {
				case event, ok := <-eventCh:
					if !ok {
						return nil
					}
					if err := enc.Encode(event); err != nil {
						return err
					}
				case err, ok := <-errCh:
					if !ok {
						errCh = nil
						continue
					}
					fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				}
			}
		},
	}

	cmd.Flags().IntVar(&prefetch, "prefetch", 10, "Number of unacknowledged events to prefetch")

	return cmd
}
