package oauth2

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture"

type FacebookProvider struct {
	BaseProvider
}

func NewFacebookProvider(appID, appSecret, callbackURL string) *FacebookProvider {
	return &FacebookProvider{
		BaseProvider: newBaseProvider("facebook", appID, appSecret, callbackURL,
			facebook.Endpoint, []string{"profile"}, facebookUserInfoURL),
	}
}

type facebookUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func (f *FacebookProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var u facebookUser
	if err := f.getJSON(ctx, f.UserInfoURL, token, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, fmt.Errorf("facebook user info has no id")
	}
	p := &Profile{
		Provider:    "facebook",
		ID:          u.ID,
		DisplayName: u.Name,
		Picture:     u.Picture.Data.URL,
	}
	if u.Email != "" {
		p.Emails = []string{u.Email}
	}
	return p, nil
}
