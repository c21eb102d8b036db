// Package auth implements user registration and login.
//
// Registration creates an account with a one-way password hash. Login
// verifies credentials and issues a bearer token. Failed logins report the
// same error for unknown emails and wrong passwords, so callers cannot
// probe which accounts exist.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/gorilla/mux"

	"github.com/civicwatch/backend/core/access"
	"github.com/civicwatch/backend/core/logger"
	"github.com/civicwatch/backend/core/passwords"
	"github.com/civicwatch/backend/core/rest"
)

// Account is a stored user identity. Username and email are immutable
// after registration, there is no update path.
type Account struct {
	AccountID    string    `json:"account_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store errors
var (
	// ErrDuplicate means the username or email is already taken.
	ErrDuplicate = errors.New("account already exists")
	// ErrNotFound means no account matches the lookup.
	ErrNotFound = errors.New("account not found")
)

// Store is the credential store.
type Store interface {
	// Create persists a new account and returns it with the assigned id.
	// Returns ErrDuplicate when username or email are taken.
	Create(ctx context.Context, username, email, passwordHash string) (*Account, error)
	// ByEmail returns the account for the email, or ErrNotFound.
	ByEmail(ctx context.Context, email string) (*Account, error)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// API serves the auth routes.
type API struct {
	store  Store
	tokens *access.TokenService
}

// NewAPI returns the auth API backed by the given credential store and
// token service.
func NewAPI(store Store, tokens *access.TokenService) *API {
	return &API{store: store, tokens: tokens}
}

// HandleRoutes adds the public auth routes to the router.
func (a *API) HandleRoutes(router *mux.Router) {
	logger.Default().Debugln("auth routes enabled")
	logger.Default().Debugln("  handle route: /api/auth/register POST")
	logger.Default().Debugln("  handle route: /api/auth/login POST")
	router.HandleFunc("/api/auth/register", a.register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", a.login).Methods(http.MethodPost)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := rest.Decode(r, &req); err != nil {
		rest.WriteError(w, r, err)
		return
	}
	if err := validateRegistration(req); err != nil {
		rest.WriteError(w, r, err)
		return
	}

	hash, err := passwords.Hash(req.Password)
	if err != nil {
		rest.WriteError(w, r, err)
		return
	}

	account, err := a.store.Create(r.Context(), req.Username, req.Email, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			rest.WriteError(w, r, rest.DuplicateError("username or email already taken"))
		} else {
			rest.WriteError(w, r, err)
		}
		return
	}

	logger.FromContext(r.Context()).Infoln("registered account", account.AccountID)
	rest.WriteJSON(w, http.StatusOK, messageResponse{Message: "user registered successfully"})
}

func validateRegistration(req registerRequest) error {
	if req.Username == "" {
		return rest.ValidationError("username is required")
	}
	if req.Email == "" {
		return rest.ValidationError("email is required")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return rest.ValidationError("email is not well-formed")
	}
	if req.Password == "" {
		return rest.ValidationError("password is required")
	}
	return nil
}

// invalidCredentials is deliberately the same for unknown emails and wrong
// passwords.
func invalidCredentials() *rest.Error {
	return rest.AuthError("invalid email or password")
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := rest.Decode(r, &req); err != nil {
		rest.WriteError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		rest.WriteError(w, r, rest.ValidationError("email and password are required"))
		return
	}

	account, err := a.store.ByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			rest.WriteError(w, r, invalidCredentials())
		} else {
			rest.WriteError(w, r, err)
		}
		return
	}

	ok, err := passwords.Verify(req.Password, account.PasswordHash)
	if err != nil {
		rest.WriteError(w, r, err)
		return
	}
	if !ok {
		rest.WriteError(w, r, invalidCredentials())
		return
	}

	token, err := a.tokens.Issue(account.AccountID, account.Email, account.Username)
	if err != nil {
		rest.WriteError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Infoln("login for account", account.AccountID)
	rest.WriteJSON(w, http.StatusOK, tokenResponse{Token: token})
}
