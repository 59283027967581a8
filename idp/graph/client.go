package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com"
	DefaultScope   = "https://graph.microsoft.com/.default"
)

type Client struct {
	BaseURL     string
	OAuthConfig *clientcredentials.Config
	Client      *http.Client
}

// TokenURL returns the Microsoft identity platform token endpoint of a tenant
func TokenURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}

func NewClient(baseUrl string, tokenUrl string, clientId string, clientSecret string, scopes []string) *Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseURL
	}
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	oauthConfig := &clientcredentials.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		TokenURL:     tokenUrl,
		Scopes:       scopes,
	}

	return &Client{
		BaseURL:     strings.TrimRight(baseUrl, "/"),
		OAuthConfig: oauthConfig,
		Client:      oauthConfig.Client(context.Background()),
	}
}
