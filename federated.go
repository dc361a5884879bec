package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/panyam/authcore/oauth2"
)

// ErrProfileIncomplete means the provider gave no key to match an account on.
var ErrProfileIncomplete = errors.New("federated profile has no usable identifier")

// Reconcile maps a federated profile onto an account, creating one on first
// login. Google and Facebook match on email; GitHub matches on username.
// Profiles without email fall back to a username key: the GitHub login, or
// "facebook:{id}".
func Reconcile(ctx context.Context, store UserStore, profile *oauth2.Profile, now time.Time) (*User, error) {
	email := NormalizeEmail(profile.PrimaryEmail())

	var (
		user     *User
		err      error
		username string
	)
	switch profile.Provider {
	case "github":
		if profile.Username == "" {
			return nil, ErrProfileIncomplete
		}
		username = profile.Username
		user, err = store.GetUserByUsername(ctx, username)
	case "google", "facebook":
		if email != "" {
			user, err = store.GetUserByEmail(ctx, email)
			break
		}
		if profile.Provider == "google" || profile.ID == "" {
			return nil, ErrProfileIncomplete
		}
		username = "facebook:" + profile.ID
		user, err = store.GetUserByUsername(ctx, username)
	default:
		return nil, fmt.Errorf("unknown provider %q", profile.Provider)
	}
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user = &User{
		Name:       federatedName(profile),
		Username:   username,
		IsVerified: true,
		Avatar:     profile.Picture,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if user.Avatar == "" {
		user.Avatar = DefaultAvatar
	}
	if email != "" {
		user.Email = &email
	}
	if err := store.InsertUser(ctx, user); err != nil {
		// a concurrent first login for the same key won the insert
		if errors.Is(err, ErrDuplicateEmail) && username == "" {
			return store.GetUserByEmail(ctx, email)
		}
		if errors.Is(err, ErrDuplicateUsername) {
			return store.GetUserByUsername(ctx, username)
		}
		return nil, err
	}
	slog.Info("created federated account", "provider", profile.Provider, "userId", user.ID)
	return user, nil
}

func federatedName(p *oauth2.Profile) string {
	for _, n := range []string{p.DisplayName, p.Username} {
		if n = strings.TrimSpace(n); n != "" {
			return EscapeHTML(n)
		}
	}
	return "User"
}

// HandleFederatedProfile completes an OAuth login: reconcile, bind the
// credential cookie exactly as password login does, then 302 to the client.
func (a *LocalAuth) HandleFederatedProfile(w http.ResponseWriter, r *http.Request, profile *oauth2.Profile) error {
	ctx := r.Context()
	now := a.now()
	user, err := Reconcile(ctx, a.Users, profile, now)
	if err != nil {
		return err
	}
	if updated, err := a.Users.UpdateUser(ctx, user.ID, UserPatch{LastLoginAt: &now}); err == nil {
		user = updated
	} else {
		slog.Warn("error recording federated login", "userId", user.ID, "err", err)
	}
	if err := a.bindCredential(w, user); err != nil {
		return err
	}
	http.Redirect(w, r, a.ClientURL, http.StatusFound)
	return nil
}
