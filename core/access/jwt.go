package access

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/civicwatch/backend/core/logger"
	"github.com/civicwatch/backend/core/rest"
)

// ErrInvalidToken is returned by Validate for any token that does not pass
// signature, issuer, audience or lifetime checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the verified facts embedded in a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenService issues and validates HMAC-SHA256 signed bearer tokens.
// Tokens are valid for one hour; there is no refresh or revocation, they
// expire naturally.
type TokenService struct {
	key      []byte
	issuer   string
	audience string
	validity time.Duration
}

// NewTokenService returns a token service for the given symmetric key,
// issuer and audience.
func NewTokenService(key []byte, issuer, audience string) *TokenService {
	return &TokenService{
		key:      key,
		issuer:   issuer,
		audience: audience,
		validity: time.Hour,
	}
}

// Issue creates a signed token for a verified user. The subject claim is
// the user id; email and username travel along as extra claims, and every
// token carries a unique jti.
func (s *TokenService) Issue(userID, email, username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
		Email: email,
		Name:  username,
	})
	return token.SignedString(s.key)
}

// Validate checks signature, issuer, audience and expiry and returns the
// embedded claims. Any failure yields ErrInvalidToken.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware returns a middleware handler to validate JWT bearer tokens.
//
// Tokens are accepted as "Authorization: Bearer" header. The middleware is
// final: requests without a valid token are rejected with 401 before any
// handler logic runs. On success the verified claims are stored in the
// request context and the identity is added to the context logger.
func (s *TokenService) Middleware() mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := ClaimsFromContext(r.Context()); claims != nil { // already authenticated?
				h.ServeHTTP(w, r)
				return
			}

			tokenString := ""
			bearer := r.Header.Get("Authorization")
			if len(bearer) > 0 && bearer != "null" {
				if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
					tokenString = bearer[7:]
				} else {
					tokenString = bearer
				}
			}
			if len(tokenString) == 0 {
				rest.WriteError(w, r, rest.AuthError("missing bearer token"))
				return
			}

			claims, err := s.Validate(tokenString)
			if err != nil {
				rest.WriteError(w, r, rest.AuthError("invalid token"))
				return
			}

			// identity is a combination of issuer and email
			identity := claims.Issuer + "|" + claims.Email
			ctx, _ := logger.ContextWithLoggerIdentity(r.Context(), identity)
			ctx = ContextWithClaims(ctx, claims)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
