package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskflow-ai/taskflow-api/internal/models"
	"golang.org/x/oauth2"
)

// Scopes requested during login
var Scopes = []string{"openid", "email", "profile"}

// ErrMissingIDToken is returned when the token response carries no id_token
var ErrMissingIDToken = errors.New("token response has no id_token")

// Client wraps OAuth2 client functionality
type Client struct {
	config *oauth2.Config
}

// NewClient creates an OAuth2 client for the provider endpoints
func NewClient(oidcConfig *models.OIDCConfig, endpoints *Endpoints) *Client {
	clientSecret := ""
	if oidcConfig.HasClientSecret() {
		clientSecret = *oidcConfig.ClientSecret
	}

	config := &oauth2.Config{
		ClientID:     oidcConfig.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  oidcConfig.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.AuthorizationEndpoint,
			TokenURL: endpoints.TokenEndpoint,
		},
	}

	return &Client{config: config}
}

// AuthCodeURL returns the authorization URL
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code and returns the raw ID token
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrMissingIDToken
	}
	return idToken, nil
}
