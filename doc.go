// Package authcore provides account authentication for a web backend: local
// email/password signup with emailed verification codes, password reset,
// federated login through Google, GitHub and Facebook, and an admin-facing
// user API.
//
// # Architecture
//
// User: the single account record. It carries the profile, the bcrypt
// password hash (empty for federated accounts) and at most one outstanding
// verification code and reset token, each paired with its expiry.
//
// Credential: a signed JWT carrying {id, isAdmin} that lives in an HTTP-only
// cookie for seven days. Gates read the cookie, validate the token and place
// the Identity on the request context.
//
// Controller: LocalAuth implements the /auth flows. UserHandlers implements
// the /user routes. The oauth2 package runs the provider redirects and hands
// the fetched profile back to LocalAuth for account reconciliation.
//
// # Basic Usage
//
//	import (
//	    "github.com/panyam/authcore"
//	    "github.com/panyam/authcore/stores"
//	)
//
//	cfg, err := authcore.LoadConfig(ctx, nil)
//	users := stores.NewFSUserStore("/path/to/storage")
//	svc := authcore.NewServiceFromConfig(cfg, users, &authcore.ConsoleMailer{})
//	http.ListenAndServe(":5000", svc.Handler())
//
// Handler mounts:
//
//	POST /auth/signup, /auth/login, /auth/logout
//	POST /auth/verify-email, /auth/resend-verification
//	POST /auth/forgot-password, /auth/reset-password/{token}
//	GET  /auth/check-auth, /auth/{provider}, /auth/{provider}/callback
//	GET  /user, /user/stats, /user/find/{id}
//	PUT  /user/update/{id}
//	DELETE /user/delete/{id}
//
// # Store Implementations
//
// The stores package holds a file-backed store for development. The
// stores/mongo, stores/gorm and stores/gae packages back the same UserStore
// interface with MongoDB, Postgres and Cloud Datastore.
//
// # Security
//
// Passwords are hashed with bcrypt. Verification codes are six digits and
// live 24 hours; reset tokens are 40 hex characters and live one hour. Both
// are cleared after a single use.
//
// # Testing
//
// Handlers are exercised through httptest against a temporary file store and
// a clockwork fake clock, so expiry boundaries are tested without sleeping.
package authcore
