package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Profile is the provider-neutral view of a federated identity.
type Profile struct {
	// Provider is "google", "github" or "facebook"
	Provider string

	// ID is the provider's stable account id
	ID string

	DisplayName string

	// Username is only set by providers that have handles (github)
	Username string

	// Emails in provider order; may be empty when the provider withheld them
	Emails []string

	Picture string
}

// PrimaryEmail returns the first email or "".
func (p *Profile) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

// Provider is one configured identity provider.
type Provider interface {
	// Name is the path segment the provider is mounted under
	Name() string

	// Config carries client credentials, endpoint, redirect URL and scopes
	Config() *oauth2.Config

	// FetchProfile loads the account behind an exchanged token
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// BaseProvider holds the pieces every provider shares.
type BaseProvider struct {
	ProviderName string
	OAuthConfig  oauth2.Config

	// UserInfoURL is the profile endpoint. Overridable for tests.
	UserInfoURL string

	// HTTPClient is used for token exchange and profile fetches. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client
}

func (b *BaseProvider) Name() string           { return b.ProviderName }
func (b *BaseProvider) Config() *oauth2.Config { return &b.OAuthConfig }

func (b *BaseProvider) getHTTPClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}

// ExchangeContext returns ctx carrying the provider's HTTP client, so that
// oauth2.Config.Exchange uses it too.
func (b *BaseProvider) ExchangeContext(ctx context.Context) context.Context {
	if b.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
}

// getJSON fetches url with the access token as a bearer credential and
// decodes the JSON object body.
func (b *BaseProvider) getJSON(ctx context.Context, url string, token *oauth2.Token, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := b.getHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed getting user info from %s: %w", b.ProviderName, err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed read response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s user info returned %d", b.ProviderName, response.StatusCode)
	}
	if err := json.Unmarshal(contents, out); err != nil {
		return fmt.Errorf("failed to parse user info: %w", err)
	}
	return nil
}

func newBaseProvider(name, clientID, clientSecret, callbackURL string, endpoint oauth2.Endpoint, scopes []string, userInfoURL string) BaseProvider {
	return BaseProvider{
		ProviderName: name,
		UserInfoURL:  userInfoURL,
		OAuthConfig: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
	}
}
