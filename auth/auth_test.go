package auth

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/backend/core/access"
	"github.com/civicwatch/backend/core/client"
)

type fakeStore struct {
	accounts []*Account
	nextID   int
}

func (f *fakeStore) Create(ctx context.Context, username, email, passwordHash string) (*Account, error) {
	for _, a := range f.accounts {
		if a.Username == username || a.Email == email {
			return nil, ErrDuplicate
		}
	}
	f.nextID++
	account := &Account{
		AccountID:    "account-" + strconv.Itoa(f.nextID),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	f.accounts = append(f.accounts, account)
	return account, nil
}

func (f *fakeStore) ByEmail(ctx context.Context, email string) (*Account, error) {
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func newTestAPI(store Store) (client.Client, *access.TokenService) {
	tokens := access.NewTokenService([]byte("test-key"), "civicwatch", "civicwatch-app")
	router := mux.NewRouter()
	NewAPI(store, tokens).HandleRoutes(router)
	return client.NewWithRouter(router), tokens
}

func TestRegister(t *testing.T) {
	store := &fakeStore{}
	cl, _ := newTestAPI(store)

	var response map[string]string
	status, err := cl.RawPost("/api/auth/register",
		map[string]string{"username": "jo", "email": "jo@example.com", "password": "secret"},
		&response)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user registered successfully", response["message"])

	require.Len(t, store.accounts, 1)
	account := store.accounts[0]
	assert.Equal(t, "jo", account.Username)
	assert.NotContains(t, account.PasswordHash, "secret",
		"the password must only be stored as a one-way hash")
}

func TestRegisterValidation(t *testing.T) {
	store := &fakeStore{}
	cl, _ := newTestAPI(store)

	cases := []map[string]string{
		{"email": "jo@example.com", "password": "secret"},
		{"username": "jo", "password": "secret"},
		{"username": "jo", "email": "not-an-email", "password": "secret"},
		{"username": "jo", "email": "jo@example.com"},
	}
	for i, body := range cases {
		status, _ := cl.RawPost("/api/auth/register", body, nil)
		assert.Equal(t, http.StatusBadRequest, status, "case %d", i)
	}
	assert.Empty(t, store.accounts, "rejected registrations must not write")
}

func TestRegisterDuplicate(t *testing.T) {
	store := &fakeStore{}
	cl, _ := newTestAPI(store)

	body := map[string]string{"username": "jo", "email": "jo@example.com", "password": "secret"}
	status, _ := cl.RawPost("/api/auth/register", body, nil)
	require.Equal(t, http.StatusOK, status)

	var response map[string]string
	status, _ = cl.RawPost("/api/auth/register", body, &response)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, store.accounts, 1, "registering succeeds exactly once")

	// same username, different email collides as well
	body["email"] = "other@example.com"
	status, _ = cl.RawPost("/api/auth/register", body, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogin(t *testing.T) {
	store := &fakeStore{}
	cl, tokens := newTestAPI(store)

	status, _ := cl.RawPost("/api/auth/register",
		map[string]string{"username": "jo", "email": "jo@example.com", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, status)

	var response map[string]string
	status, err := cl.RawPost("/api/auth/login",
		map[string]string{"email": "jo@example.com", "password": "secret"}, &response)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, response["token"])

	claims, err := tokens.Validate(response["token"])
	require.NoError(t, err)
	assert.Equal(t, store.accounts[0].AccountID, claims.UserID(),
		"the token subject is the registered user's id")
	assert.Equal(t, "jo@example.com", claims.Email)
	assert.Equal(t, "jo", claims.Name)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	store := &fakeStore{}
	cl, _ := newTestAPI(store)

	status, _ := cl.RawPost("/api/auth/register",
		map[string]string{"username": "jo", "email": "jo@example.com", "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, status)

	var wrongPassword []byte
	status, _ = cl.RawPost("/api/auth/login",
		map[string]string{"email": "jo@example.com", "password": "wrong"}, &wrongPassword)
	assert.Equal(t, http.StatusUnauthorized, status)

	var unknownEmail []byte
	status, _ = cl.RawPost("/api/auth/login",
		map[string]string{"email": "nobody@example.com", "password": "secret"}, &unknownEmail)
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Equal(t, string(wrongPassword), string(unknownEmail),
		"failure responses must not reveal whether the account exists")
}
