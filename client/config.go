package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the production scheduler endpoint, overridable with
// TENSORLAKE_API_URL or WithBaseURL.
const DefaultBaseURL = "https://api.tensorlake.ai"

// DefaultNamespace scopes applications when no namespace option is given.
const DefaultNamespace = "default"

// Environment variables consulted when the corresponding option is omitted.
const (
	EnvAPIKey         = "TENSORLAKE_API_KEY"
	EnvAPIURL         = "TENSORLAKE_API_URL"
	EnvOrganizationID = "TENSORLAKE_ORGANIZATION_ID"
	EnvProjectID      = "TENSORLAKE_PROJECT_ID"
)

// credentials is one profile of the TOML credentials file. Profiles are
// keyed by base URL so a single file holds tokens for several deployments:
//
//	["https://api.tensorlake.ai"]
//	api_key = "tl_..."
//	organization_id = "org_..."
//	project_id = "proj_..."
type credentials struct {
	APIKey         string `mapstructure:"api_key"`
	OrganizationID string `mapstructure:"organization_id"`
	ProjectID      string `mapstructure:"project_id"`
}

// defaultCredentialsPath returns ~/.tensorlake/credentials.toml, empty when
// the home directory cannot be resolved.
func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tensorlake", "credentials.toml")
}

// loadCredentials reads the profile stored under baseURL. A missing file is
// not an error; a malformed one is. The key delimiter is overridden because
// profile keys are URLs and contain dots.
func loadCredentials(path, baseURL string) (credentials, error) {
	if path == "" {
		return credentials{}, nil
	}

	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return credentials{}, nil
		}
		return credentials{}, fmt.Errorf("read credentials file %s: %w", path, err)
	}

	var profiles map[string]credentials
	if err := v.Unmarshal(&profiles); err != nil {
		return credentials{}, fmt.Errorf("parse credentials file %s: %w", path, err)
	}
	// Viper lowercases keys on read, so lookup must match.
	return profiles[strings.ToLower(normalizeBaseURL(baseURL))], nil
}

// normalizeBaseURL strips the trailing slash so profile lookup and request
// paths agree on one spelling.
func normalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
