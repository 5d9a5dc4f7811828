package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/services/oidc"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test OIDC configuration",
		Long:  "Test OIDC provider configuration by probing discovery and loading the signing keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				return fmt.Errorf("--provider is required")
			}

			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			client := &http.Client{Timeout: 10 * time.Second}
			oidcProvider := oidc.NewProvider(database.NewOIDCConfigRepository(db), client)

			config, err := oidcProvider.GetConfig(ctx, provider)
			if err != nil {
				return err
			}

			fmt.Printf("Testing OIDC configuration for provider: %s\n", provider)
			fmt.Printf("Issuer: %s\n", config.Issuer)

			discoveryURL := config.Issuer + "/.well-known/openid-configuration"
			fmt.Printf("\nTesting discovery endpoint: %s\n", discoveryURL)
			if err := probe(client, discoveryURL); err != nil {
				fmt.Printf("✗ Discovery endpoint failed (%v), using issuer-derived endpoints\n", err)
			} else {
				fmt.Println("✓ Discovery endpoint is accessible")
			}

			endpoints := oidcProvider.Endpoints(ctx, config)
			fmt.Printf("\nAuthorization endpoint: %s\n", endpoints.AuthorizationEndpoint)
			fmt.Printf("Token endpoint: %s\n", endpoints.TokenEndpoint)

			fmt.Printf("\nTesting JWKS endpoint: %s\n", endpoints.JWKSURI)
			keys, err := oidc.NewJWKSManager(client).GetJWKS(ctx, endpoints.JWKSURI)
			if err != nil {
				return fmt.Errorf("failed to load JWKS: %w", err)
			}
			fmt.Printf("✓ JWKS endpoint is accessible (%d keys)\n", keys.Len())

			fmt.Println("\n✓ OIDC configuration test passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider name to test (required)")

	return cmd
}

func probe(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
