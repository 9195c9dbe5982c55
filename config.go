package playkit

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"playkit-go/auth"
	"playkit-go/tokenstore"
)

// Config configures the SDK. GameID is required; everything else defaults.
type Config struct {
	// GameID scopes authentication and persistence to one game.
	GameID string `json:"game_id" validate:"required"`
	// DeveloperToken bypasses every interactive flow. Development only.
	DeveloperToken string `json:"developer_token"`
	// PlayerJWT is an externally obtained identity token to exchange for a
	// player token during initialization.
	PlayerJWT string `json:"player_jwt"`
	// BaseURL overrides the production backend host.
	BaseURL string `json:"base_url" validate:"omitempty,url"`
	// AuthMethod selects the interactive strategy: "external-auth" (popup,
	// the default) or "headless".
	AuthMethod string `json:"auth_method" validate:"omitempty,oneof=external-auth headless"`
	// Debug lowers the log level to debug.
	Debug bool `json:"debug"`

	// Store persists auth records. Defaults to a JSON file under the user
	// cache directory, or an in-memory store when no such directory exists.
	Store tokenstore.Store `json:"-"`
	// Interactive supplies the UI ports for interactive login. Nil marks a
	// host that cannot present UI.
	Interactive *auth.Interactive `json:"-"`
	// HTTPClient overrides the transport for every backend call.
	HTTPClient *http.Client `json:"-"`
	// Logger overrides the default stderr logger.
	Logger *zerolog.Logger `json:"-"`
}

// applyEnvOverrides lets the environment override serialized fields, so a
// developer token never has to live in committed configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PLAYKIT_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("PLAYKIT_DEVELOPER_TOKEN"); v != "" {
		c.DeveloperToken = v
	}
	if v := os.Getenv("PLAYKIT_PLAYER_JWT"); v != "" {
		c.PlayerJWT = v
	}
	if v := os.Getenv("PLAYKIT_AUTH_METHOD"); v != "" {
		c.AuthMethod = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// defaultStore picks the persistence backend when none is configured.
func defaultStore() tokenstore.Store {
	dir, err := os.UserCacheDir()
	if err != nil {
		return tokenstore.NewMemoryStore()
	}
	fs, err := tokenstore.NewFileStore(dir + "/playkit/tokens.json")
	if err != nil {
		return tokenstore.NewMemoryStore()
	}
	return fs
}
