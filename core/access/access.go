/*Package access provides token-based access control.

Claims are added to a request context by the bearer-token middleware with

	ctx = access.ContextWithClaims(ctx, claims)

and retrieved by handlers with

	claims := access.ClaimsFromContext(ctx)
*/
package access

import (
	"context"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

const contextKeyClaims contextKey = "_claims_"

// ContextWithClaims returns a new context with the verified claims added to it
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKeyClaims, claims)
}

// ClaimsFromContext retrieves verified claims from the context. It returns
// nil if the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(contextKeyClaims).(*Claims)
	if ok {
		return claims
	}
	return nil
}
