package oauth2

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserInfoURL = "https://api.github.com/user"

type GithubProvider struct {
	BaseProvider
}

func NewGithubProvider(clientID, clientSecret, callbackURL string) *GithubProvider {
	return &GithubProvider{
		BaseProvider: newBaseProvider("github", clientID, clientSecret, callbackURL,
			github.Endpoint, []string{"profile"}, githubUserInfoURL),
	}
}

type githubUser struct {
	ID        json.Number `json:"id"`
	Login     string      `json:"login"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	AvatarURL string      `json:"avatar_url"`
}

// FetchProfile reads /user. The public email is only present when the
// account exposes one.
func (g *GithubProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var u githubUser
	if err := g.getJSON(ctx, g.UserInfoURL, token, &u); err != nil {
		return nil, err
	}
	if u.Login == "" {
		return nil, fmt.Errorf("github user info has no login")
	}
	p := &Profile{
		Provider:    "github",
		ID:          u.ID.String(),
		Username:    u.Login,
		DisplayName: u.Name,
		Picture:     u.AvatarURL,
	}
	if p.DisplayName == "" {
		p.DisplayName = u.Login
	}
	if u.Email != "" {
		p.Emails = []string{u.Email}
	}
	return p, nil
}
