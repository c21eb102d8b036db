package access

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "civicwatch"
	testAudience = "civicwatch-app"
)

var testKey = []byte("test-signing-key")

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService(testKey, testIssuer, testAudience)

	tokenString, err := tokens.Issue("account-42", "jo@example.com", "jo")
	require.NoError(t, err)

	claims, err := tokens.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "account-42", claims.UserID())
	assert.Equal(t, "jo@example.com", claims.Email)
	assert.Equal(t, "jo", claims.Name)
	assert.NotEmpty(t, claims.ID, "every token must carry a unique jti")

	require.NotNil(t, claims.ExpiresAt)
	lifetime := time.Until(claims.ExpiresAt.Time)
	assert.InDelta(t, time.Hour.Seconds(), lifetime.Seconds(), 60,
		"tokens expire one hour after issue")
}

func TestTokenUniqueJTI(t *testing.T) {
	tokens := NewTokenService(testKey, testIssuer, testAudience)

	first, err := tokens.Issue("a", "a@example.com", "a")
	require.NoError(t, err)
	second, err := tokens.Issue("a", "a@example.com", "a")
	require.NoError(t, err)

	firstClaims, err := tokens.Validate(first)
	require.NoError(t, err)
	secondClaims, err := tokens.Validate(second)
	require.NoError(t, err)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestValidateRejects(t *testing.T) {
	tokens := NewTokenService(testKey, testIssuer, testAudience)

	sign := func(claims Claims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, err := token.SignedString(testKey)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		now := time.Now()
		return Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "account-42",
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	// sanity: the valid baseline passes
	_, err := tokens.Validate(sign(valid()))
	require.NoError(t, err)

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = tokens.Validate(sign(expired))
	assert.ErrorIs(t, err, ErrInvalidToken, "expired token must be rejected")

	wrongIssuer := valid()
	wrongIssuer.Issuer = "someone-else"
	_, err = tokens.Validate(sign(wrongIssuer))
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer must be rejected")

	wrongAudience := valid()
	wrongAudience.Audience = jwt.ClaimStrings{"other-app"}
	_, err = tokens.Validate(sign(wrongAudience))
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong audience must be rejected")

	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	_, err = tokens.Validate(sign(noExpiry))
	assert.ErrorIs(t, err, ErrInvalidToken, "token without expiry must be rejected")

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, valid())
	forged, err := otherKey.SignedString([]byte("other-key"))
	require.NoError(t, err)
	_, err = tokens.Validate(forged)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong signature must be rejected")

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, valid())
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Validate(noneToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg=none must be rejected")
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokenService(testKey, testIssuer, testAudience)

	router := mux.NewRouter()
	protected := router.NewRoute().Subrouter()
	protected.Use(tokens.Middleware())
	var seen *Claims
	protected.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	get := func(authorization string) int {
		r := httptest.NewRequest(http.MethodGet, "/private", nil)
		if authorization != "" {
			r.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		return rec.Result().StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, get(""), "no token no access")
	assert.Equal(t, http.StatusUnauthorized, get("Bearer garbage"))
	assert.Nil(t, seen, "handler must not run for rejected requests")

	tokenString, err := tokens.Issue("account-42", "jo@example.com", "jo")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get("Bearer "+tokenString))
	require.NotNil(t, seen)
	assert.Equal(t, "account-42", seen.UserID())

	// a raw token without the Bearer prefix is accepted too
	seen = nil
	assert.Equal(t, http.StatusOK, get(tokenString))
	require.NotNil(t, seen)
}
