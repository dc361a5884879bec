package authcore_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sethvargo/go-envconfig"

	oa "github.com/panyam/authcore"
)

func baseEnv() map[string]string {
	return map[string]string{
		"JWT_SECRET":           "s3cret",
		"GOOGLE_CLIENT_ID":     "gid",
		"GOOGLE_CLIENT_SECRET": "gsecret",
		"MONGO_URI":            "mongodb://localhost:27017",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := oa.LoadConfig(context.Background(), envconfig.MapLookuper(baseEnv()))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 5000 || cfg.StoreBackend != oa.BackendMongo || cfg.ClientURL != "http://localhost:5173" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.IsProduction() {
		t.Error("default env should not be production")
	}
	if got := cfg.CallbackURL("google"); got != "http://localhost:5000/auth/google/callback" {
		t.Errorf("CallbackURL = %q", got)
	}
	if n := len(cfg.Providers()); n != 1 {
		t.Errorf("expected only google without github/facebook ids, got %d", n)
	}
}

func TestLoadConfigProviders(t *testing.T) {
	env := baseEnv()
	env["GITHUB_CLIENT_ID"] = "ghid"
	env["FACEBOOK_APP_ID"] = "fbid"
	env["OAUTH_CALLBACK_BASE"] = "https://api.example.org/"
	env["NODE_ENV"] = "production"

	cfg, err := oa.LoadConfig(context.Background(), envconfig.MapLookuper(env))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsProduction() {
		t.Error("expected production")
	}
	providers := cfg.Providers()
	if len(providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(providers))
	}
	if got := providers[1].Config().RedirectURL; got != "https://api.example.org/auth/github/callback" {
		t.Errorf("github redirect = %q", got)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		want   string
	}{
		{"missing secret", func(e map[string]string) { delete(e, "JWT_SECRET") }, "JWT_SECRET"},
		{"blank secret", func(e map[string]string) { e["JWT_SECRET"] = "   " }, "JWT_SECRET"},
		{"mongo without uri", func(e map[string]string) { delete(e, "MONGO_URI") }, "MONGO_URI"},
		{"postgres without dsn", func(e map[string]string) { e["STORE_BACKEND"] = "postgres" }, "DATABASE_URL"},
		{"datastore without project", func(e map[string]string) { e["STORE_BACKEND"] = "datastore" }, "DATASTORE_PROJECT"},
		{"unknown backend", func(e map[string]string) { e["STORE_BACKEND"] = "redis" }, "STORE_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			tt.mutate(env)
			_, err := oa.LoadConfig(context.Background(), envconfig.MapLookuper(env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}

	env := baseEnv()
	delete(env, "MONGO_URI")
	env["STORE_BACKEND"] = "fs"
	if _, err := oa.LoadConfig(context.Background(), envconfig.MapLookuper(env)); err != nil {
		t.Errorf("fs backend needs no connection string: %v", err)
	}
}
