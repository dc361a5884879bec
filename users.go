package authcore

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
)

var (
	ErrUpdateFailed = NewAuthError(KindServer, "Failed to update user!")
	ErrGetFailed    = NewAuthError(KindServer, "Failed to get user!")
)

// UserHandlers serves the /user routes. Gating is done by the router; every
// handler here assumes the caller is already authorized for the {id} it
// names.
type UserHandlers struct {
	Users  UserStore
	Hasher PasswordHasher
	Clock  clockwork.Clock
}

func (h *UserHandlers) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock.Now()
}

func (h *UserHandlers) HandleFind(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.GetUserById(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, ErrUserNotFound) {
		writeFailure(w, ErrNoSuchUser.WithStatus(http.StatusNotFound))
		return
	} else if err != nil {
		writeFailure(w, ErrGetFailed.Wrap(err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate changes name, email, password or avatar. Verification and
// admin flags are never writable here.
func (h *UserHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()
	body, err := readBody(r)
	if err != nil {
		writeValidationErrors(w, []FieldError{{Path: "body", Message: err.Error()}})
		return
	}

	var (
		patch UserPatch
		errs  []FieldError
	)
	if raw, ok := body["name"]; ok {
		name, ferr := validateName(raw)
		if ferr != nil {
			errs = append(errs, *ferr)
		}
		patch.Name = &name
	}
	if raw, ok := body["email"]; ok {
		email, ferr := validateEmail(raw)
		if ferr != nil {
			errs = append(errs, *ferr)
		}
		patch.Email = &email
	}
	if raw, ok := body["password"]; ok && raw != "" {
		password, ferr := validatePassword(raw)
		if ferr != nil {
			errs = append(errs, *ferr)
		} else {
			hash, err := h.Hasher.HashPassword(password)
			if err != nil {
				writeFailure(w, ErrUpdateFailed.Wrap(err))
				return
			}
			patch.PasswordHash = &hash
		}
	}
	if avatar := body["avatar"]; avatar != "" {
		patch.Avatar = &avatar
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	if patch.Email != nil {
		other, err := h.Users.GetUserByEmail(ctx, *patch.Email)
		if err == nil && other.ID != id {
			writeFailure(w, ErrUserExists)
			return
		} else if err != nil && !errors.Is(err, ErrUserNotFound) {
			writeFailure(w, ErrUpdateFailed.Wrap(err))
			return
		}
	}

	var user *User
	if patch.IsEmpty() {
		user, err = h.Users.GetUserById(ctx, id)
	} else {
		user, err = h.Users.UpdateUser(ctx, id, patch)
	}
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		writeFailure(w, ErrUserExists)
	case errors.Is(err, ErrUserNotFound):
		writeFailure(w, ErrNoSuchUser.WithStatus(http.StatusNotFound))
	case err != nil:
		writeFailure(w, ErrUpdateFailed.Wrap(err))
	default:
		writeJSON(w, http.StatusOK, user)
	}
}

func (h *UserHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.Users.DeleteUser(r.Context(), mux.Vars(r)["id"])
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User has been deleted...")
}

// HandleList returns every account, newest first. ?new=true limits the
// result to the five most recent.
func (h *UserHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if r.URL.Query().Get("new") == "true" {
		limit = 5
	}
	users, err := h.Users.ListUsers(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if users == nil {
		users = []*User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// MonthlySignups is one row of the stats report.
type MonthlySignups struct {
	Month int `json:"_id"`
	Total int `json:"total"`
}

// HandleStats counts accounts created in the last year, grouped by calendar
// month and sorted by month number.
func (h *UserHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context(), 0)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SignupsByMonth(users, h.now()))
}

func SignupsByMonth(users []*User, now time.Time) []MonthlySignups {
	since := now.AddDate(-1, 0, 0)
	counts := map[int]int{}
	for _, u := range users {
		if u.CreatedAt.Before(since) {
			continue
		}
		counts[int(u.CreatedAt.Month())]++
	}
	out := make([]MonthlySignups, 0, len(counts))
	for month, total := range counts {
		out = append(out, MonthlySignups{Month: month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
