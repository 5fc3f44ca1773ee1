package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/drafts"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Remote RemoteConfig      `yaml:"remote"`
	Drafts DraftsConfig      `yaml:"drafts"`
	Mirror MirrorConfig      `yaml:"mirror"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration. The remote section is checked
// separately by RemoteConfig.Validate because the in-memory store needs none.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Mirror.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RemoteConfig describes the GitHub repository and branch that hold the site.
//
// Token takes precedence over Username/Password. Owner defaults to Username.
type RemoteConfig struct {
	APIURL   string        `yaml:"api_url"`
	Owner    string        `yaml:"owner"`
	Repo     string        `yaml:"repo"`
	Branch   string        `yaml:"branch"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	if c.Branch == "" {
		c.Branch = "master"
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required, validation.By(absoluteURL)),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.Owner == "" && c.Username == "" {
		return fmt.Errorf("remote: owner or username is required")
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("remote: token or username and password are required")
	}
	return nil
}

func absoluteURL(v interface{}) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// OwnerName returns the repository owner.
func (c *RemoteConfig) OwnerName() string {
	if c.Owner != "" {
		return c.Owner
	}
	return c.Username
}

// GitHubOptions converts the configuration into client options.
func (c *RemoteConfig) GitHubOptions() contentstore.GitHubOptions {
	return contentstore.GitHubOptions{
		APIURL:   c.APIURL,
		Owner:    c.OwnerName(),
		Repo:     c.Repo,
		Username: c.Username,
		Password: c.Password,
		Token:    c.Token,
		Timeout:  c.Timeout,
	}
}

// DraftKey scopes saved drafts to this user, repository and branch.
func (c *RemoteConfig) DraftKey() drafts.Key {
	return drafts.Key{
		Username: c.Username,
		Repo:     c.OwnerName() + "/" + c.Repo,
		Branch:   c.Branch,
	}
}

// DraftsConfig holds the SQLite draft cache configuration. An empty path
// disables draft persistence.
type DraftsConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether drafts are persisted.
func (c *DraftsConfig) Enabled() bool {
	return c.Path != ""
}

// MirrorConfig holds the local mirror configuration. An empty path disables
// the mirror.
type MirrorConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the mirror configuration.
func (c *MirrorConfig) Validate() error {
	if c.Watch && c.Path == "" {
		return fmt.Errorf("mirror: watch is enabled but path is empty")
	}
	return nil
}

// Enabled reports whether the mirror is exported.
func (c *MirrorConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Remote: RemoteConfig{
			APIURL:  contentstore.DefaultAPIURL,
			Branch:  "master",
			Timeout: 30 * time.Second,
		},
		Drafts: DraftsConfig{
			Path: "./folio-drafts.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
