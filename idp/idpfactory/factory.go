package idpfactory

import (
	"errors"
	"os"
	"strings"

	"github.com/itops-console/console-backend/idp"
	"github.com/itops-console/console-backend/idp/graph"
)

type FactoryConfig struct {
	ProviderType idp.ProviderType
	BaseURL      string
	TenantID     string
	// TokenURL overrides the token endpoint derived from TenantID
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func NewDirectoryProvider(cfg FactoryConfig) (idp.DirectoryProvider, error) {
	switch cfg.ProviderType {
	case idp.ProviderMicrosoftGraph:
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			if cfg.TenantID == "" {
				return nil, errors.New("tenant id or token url is required")
			}
			tokenURL = graph.TokenURL(cfg.TenantID)
		}
		return graph.NewClient(cfg.BaseURL, tokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes), nil
	default:
		return nil, errors.New("unsupported provider type")
	}
}

// ConfigFromEnv reads the directory provider settings. ok is false when no
// client id is configured, meaning directory sync is disabled.
func ConfigFromEnv() (cfg FactoryConfig, ok bool) {
	cfg = FactoryConfig{
		ProviderType: idp.ProviderType(getEnvOrDefault("DIRECTORY_PROVIDER", string(idp.ProviderMicrosoftGraph))),
		BaseURL:      os.Getenv("GRAPH_BASE_URL"),
		TenantID:     os.Getenv("GRAPH_TENANT_ID"),
		TokenURL:     os.Getenv("GRAPH_TOKEN_URL"),
		ClientID:     os.Getenv("GRAPH_CLIENT_ID"),
		ClientSecret: os.Getenv("GRAPH_CLIENT_SECRET"),
	}
	if scopes := os.Getenv("GRAPH_SCOPES"); scopes != "" {
		for _, s := range strings.Split(scopes, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Scopes = append(cfg.Scopes, s)
			}
		}
	}
	return cfg, cfg.ClientID != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
