package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Storage backends selectable with STORE_BACKEND
const (
	BackendMongo     = "mongo"
	BackendFS        = "fs"
	BackendPostgres  = "postgres"
	BackendDatastore = "datastore"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port      int    `env:"PORT,default=5000"`
	Env       string `env:"NODE_ENV,default=development"`
	ClientURL string `env:"CLIENT_URL,default=http://localhost:5173"`

	JWTSecret string `env:"JWT_SECRET,required"`

	// Accepted for compatibility; credential state lives in the token only
	SessionSecret string `env:"SESSION_SECRET"`

	StoreBackend       string `env:"STORE_BACKEND,default=mongo"`
	MongoURI           string `env:"MONGO_URI"`
	MongoDB            string `env:"MONGO_DB,default=authcore"`
	DataDir            string `env:"DATA_DIR,default=./data"`
	DatabaseURL        string `env:"DATABASE_URL"`
	DatastoreProject   string `env:"DATASTORE_PROJECT"`
	DatastoreNamespace string `env:"DATASTORE_NAMESPACE"`

	SMTPUser string `env:"EMAIL"`
	SMTPPass string `env:"PASS"`
	SMTPHost string `env:"SMTP_HOST,default=smtp.gmail.com"`
	SMTPPort int    `env:"SMTP_PORT,default=465"`

	GoogleClientID       string `env:"GOOGLE_CLIENT_ID,required"`
	GoogleClientSecret   string `env:"GOOGLE_CLIENT_SECRET,required"`
	GithubClientID       string `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret   string `env:"GITHUB_CLIENT_SECRET"`
	FacebookAppID        string `env:"FACEBOOK_APP_ID"`
	FacebookAppSecret    string `env:"FACEBOOK_APP_SECRET"`
	OAuthCallbackBaseURL string `env:"OAUTH_CALLBACK_BASE"`
}

// LoadConfig reads Config through lookuper, or the process environment when
// lookuper is nil.
func LoadConfig(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	config := Config{}
	var err error
	if lookuper == nil {
		err = envconfig.Process(ctx, &config)
	} else {
		err = envconfig.ProcessWith(ctx, &config, lookuper)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must not be blank")
	}
	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the %s backend", c.StoreBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", c.StoreBackend)
		}
	case BackendDatastore:
		if c.DatastoreProject == "" {
			return fmt.Errorf("DATASTORE_PROJECT is required for the %s backend", c.StoreBackend)
		}
	case BackendFS:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// IsProduction turns on Secure cookies.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// CallbackURL is the redirect_uri registered with provider.
func (c *Config) CallbackURL(provider string) string {
	base := c.OAuthCallbackBaseURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	return strings.TrimSuffix(base, "/") + "/auth/" + provider + "/callback"
}
