package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// NewOIDCCmd creates the OIDC configuration command
func NewOIDCCmd() *cobra.Command {
	var issuer, domain, clientID, clientSecret, redirectURI, jwksURL string

	cmd := &cobra.Command{
		Use:   "oidc <provider-name>",
		Short: "Configure OIDC provider",
		Long:  "Create or update an OIDC provider used for login. The name is any identifier (e.g. 'auth0', 'okta', 'cognito').",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.TrimSpace(args[0])
			if provider == "" {
				return fmt.Errorf("provider name cannot be empty")
			}
			if issuer == "" || clientID == "" || redirectURI == "" {
				return fmt.Errorf("required flags: --issuer, --client-id, --redirect-uri")
			}

			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			oidcRepo := database.NewOIDCConfigRepository(db)
			ctx := cmd.Context()

			existing, err := oidcRepo.GetByProvider(ctx, provider)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("failed to look up OIDC config: %w", err)
			}

			cfg := &models.OIDCConfig{
				Provider:     provider,
				Issuer:       strings.TrimRight(issuer, "/"),
				ClientID:     clientID,
				RedirectURI:  redirectURI,
				Domain:       models.StringPtr(domain),
				ClientSecret: models.StringPtr(clientSecret),
				JWKSUrl:      models.StringPtr(jwksURL),
			}
			if existing != nil {
				cfg.ID = existing.ID
			}

			if err := oidcRepo.Upsert(ctx, cfg); err != nil {
				return err
			}
			if existing != nil {
				fmt.Printf("Updated OIDC configuration for provider: %s\n", provider)
			} else {
				fmt.Printf("Created OIDC configuration for provider: %s\n", provider)
			}
			if !cfg.HasClientSecret() {
				fmt.Println("Note: no client secret set; the server-side code exchange will only work for public clients")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&domain, "domain", "", "Hosted login domain (optional)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "OAuth2 redirect URI (required)")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "JWKS URL (default: taken from discovery)")

	return cmd
}
