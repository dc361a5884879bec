package authcore

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"

	"github.com/panyam/authcore/oauth2"
)

// Service wires the controller, gates, user routes and OAuth coordinator
// into one router.
type Service struct {
	Users  UserStore
	Mailer Mailer
	Hasher PasswordHasher
	Clock  clockwork.Clock

	JWTSecret string
	ClientURL string

	// Production turns on Secure for every cookie
	Production bool

	// Providers to mount under /auth. Empty means no federated login.
	Providers []oauth2.Provider

	Local   *LocalAuth
	Gate    *Gate
	UserAPI *UserHandlers
	OAuth   *oauth2.Coordinator

	router *mux.Router
}

// NewServiceFromConfig builds a Service using cfg for secrets, origins and
// providers.
func NewServiceFromConfig(cfg Config, users UserStore, mailer Mailer) *Service {
	return (&Service{
		Users:      users,
		Mailer:     mailer,
		JWTSecret:  cfg.JWTSecret,
		ClientURL:  cfg.ClientURL,
		Production: cfg.IsProduction(),
		Providers:  cfg.Providers(),
	}).EnsureDefaults()
}

// Providers builds the configured OAuth providers. Google is always present;
// GitHub and Facebook only when their client id is set.
func (c *Config) Providers() []oauth2.Provider {
	out := []oauth2.Provider{
		oauth2.NewGoogleProvider(c.GoogleClientID, c.GoogleClientSecret, c.CallbackURL("google")),
	}
	if c.GithubClientID != "" {
		out = append(out, oauth2.NewGithubProvider(c.GithubClientID, c.GithubClientSecret, c.CallbackURL("github")))
	}
	if c.FacebookAppID != "" {
		out = append(out, oauth2.NewFacebookProvider(c.FacebookAppID, c.FacebookAppSecret, c.CallbackURL("facebook")))
	}
	return out
}

func (s *Service) EnsureDefaults() *Service {
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	if s.Hasher == nil {
		s.Hasher = NewBcryptHasher()
	}
	if s.Mailer == nil {
		s.Mailer = &ConsoleMailer{}
	}
	if s.ClientURL == "" {
		s.ClientURL = "http://localhost:5173"
	}
	binder := NewSessionBinder(s.Production)
	codec := NewTokenCodec(s.JWTSecret, s.Clock)
	if s.Gate == nil {
		s.Gate = &Gate{Codec: codec, Binder: binder}
	}
	if s.Local == nil {
		s.Local = &LocalAuth{
			Users:     s.Users,
			Hasher:    s.Hasher,
			Codec:     s.Gate.Codec,
			Binder:    s.Gate.Binder,
			Mailer:    s.Mailer,
			Clock:     s.Clock,
			ClientURL: s.ClientURL,
		}
	}
	if s.UserAPI == nil {
		s.UserAPI = &UserHandlers{Users: s.Users, Hasher: s.Hasher, Clock: s.Clock}
	}
	if s.OAuth == nil && len(s.Providers) > 0 {
		s.OAuth = oauth2.NewCoordinator(oauth2.NewStateSession(s.Production), s.Local.HandleFederatedProfile, s.Providers...)
	}
	if s.OAuth != nil && s.Local.OnLogout == nil {
		s.Local.OnLogout = s.OAuth.Forget
	}
	return s
}

// Router returns the bare route table.
func (s *Service) Router() *mux.Router {
	return s.setupRoutes().router
}

// Handler is the router wrapped in panic recovery and CORS for ClientURL.
func (s *Service) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{strings.TrimSuffix(s.ClientURL, "/")}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowCredentials(),
	)
	return cors(Recoverer(s.Router()))
}

func (s *Service) setupRoutes() *Service {
	if s.router != nil {
		return s
	}
	s.EnsureDefaults()
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "Not Found"}})
	})

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", s.Local.HandleSignup).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.Local.HandleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/verify-email", s.Local.HandleVerifyEmail).Methods(http.MethodPost)
	auth.HandleFunc("/resend-verification", s.Local.HandleResendVerification).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", s.Local.HandleForgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password/{token}", s.Local.HandleResetPassword).Methods(http.MethodPost)
	auth.Handle("/check-auth", s.Gate.RequireAuth(http.HandlerFunc(s.Local.HandleCheckAuth))).Methods(http.MethodGet)
	auth.HandleFunc("/login/success", s.Local.HandleLoginSuccess).Methods(http.MethodGet)
	auth.HandleFunc("/login/failure", s.Local.HandleLoginFailure).Methods(http.MethodGet)

	var logout http.Handler = http.HandlerFunc(s.Local.HandleLogout)
	if s.OAuth != nil {
		logout = s.OAuth.Session.LoadAndSave(logout)
		s.OAuth.Mount(auth)
		slog.Info("mounted oauth providers", "providers", s.OAuth.Providers())
	}
	auth.Handle("/logout", logout).Methods(http.MethodPost)

	owner := s.Gate.RequireOwnerOrAdmin("id")
	r.Handle("/user", s.Gate.RequireAdmin(http.HandlerFunc(s.UserAPI.HandleList))).Methods(http.MethodGet)
	users := r.PathPrefix("/user").Subrouter()
	users.Handle("/", s.Gate.RequireAdmin(http.HandlerFunc(s.UserAPI.HandleList))).Methods(http.MethodGet)
	users.Handle("/stats", s.Gate.RequireAdmin(http.HandlerFunc(s.UserAPI.HandleStats))).Methods(http.MethodGet)
	users.Handle("/find/{id}", s.Gate.RequireAuth(http.HandlerFunc(s.UserAPI.HandleFind))).Methods(http.MethodGet)
	users.Handle("/update/{id}", owner(http.HandlerFunc(s.UserAPI.HandleUpdate))).Methods(http.MethodPut)
	users.Handle("/delete/{id}", owner(http.HandlerFunc(s.UserAPI.HandleDelete))).Methods(http.MethodDelete)

	s.router = r
	return s
}
