package oauth2

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrUnverifiedEmail = errors.New("provider email is not verified")

type GoogleProvider struct {
	BaseProvider
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		BaseProvider: newBaseProvider("google", clientID, clientSecret, callbackURL,
			google.Endpoint, []string{"profile", "email"}, googleUserInfoURL),
	}
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *GoogleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var u googleUser
	if err := g.getJSON(ctx, g.UserInfoURL, token, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, fmt.Errorf("google user info has no id")
	}
	// an email Google has not verified cannot be used to match an account
	if u.Email != "" && u.VerifiedEmail != nil && !*u.VerifiedEmail {
		return nil, ErrUnverifiedEmail
	}
	p := &Profile{Provider: "google", ID: u.ID, DisplayName: u.Name, Picture: u.Picture}
	if u.Email != "" {
		p.Emails = []string{u.Email}
	}
	return p, nil
}
