// Package notifications implements push-notification device registration.
//
// Registering the same device token twice for the same user is a no-op
// that still reports success, so mobile clients can re-register on every
// start without bookkeeping.
package notifications

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/civicwatch/backend/core/access"
	"github.com/civicwatch/backend/core/logger"
	"github.com/civicwatch/backend/core/rest"
)

// Device is a push-notification device token registered for a user.
type Device struct {
	DeviceID     int64     `json:"device_id"`
	AccountID    string    `json:"account_id"`
	DeviceToken  string    `json:"device_token"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ErrDuplicate means the (account, device token) pair is already stored.
var ErrDuplicate = errors.New("device already registered")

// Store persists device registrations. At most one row exists per
// (account, device token) pair.
type Store interface {
	// Exists reports whether the pair is already registered.
	Exists(ctx context.Context, accountID, deviceToken string) (bool, error)
	// Create registers the pair. Returns ErrDuplicate when a concurrent
	// request won the race for the same pair.
	Create(ctx context.Context, accountID, deviceToken string, registeredAt time.Time) error
}

type registerDeviceRequest struct {
	DeviceToken string `json:"deviceToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// API serves the notification routes.
type API struct {
	store Store
}

// NewAPI returns the notifications API backed by the given device store.
func NewAPI(store Store) *API {
	return &API{store: store}
}

// HandleRoutes adds the notification routes to the router. The router must
// sit behind the bearer-token middleware.
func (a *API) HandleRoutes(protected *mux.Router) {
	logger.Default().Debugln("notification routes enabled")
	logger.Default().Debugln("  handle route: /api/notifications/register-device POST")
	protected.HandleFunc("/api/notifications/register-device", a.registerDevice).Methods(http.MethodPost)
}

func (a *API) registerDevice(w http.ResponseWriter, r *http.Request) {
	claims := access.ClaimsFromContext(r.Context())
	if claims == nil || claims.UserID() == "" {
		rest.WriteError(w, r, rest.AuthError("user id not found in token"))
		return
	}

	var req registerDeviceRequest
	if err := rest.Decode(r, &req); err != nil {
		rest.WriteError(w, r, err)
		return
	}
	if req.DeviceToken == "" {
		rest.WriteError(w, r, rest.ValidationError("deviceToken is required"))
		return
	}

	exists, err := a.store.Exists(r.Context(), claims.UserID(), req.DeviceToken)
	if err != nil {
		rest.WriteError(w, r, err)
		return
	}
	if exists {
		rest.WriteJSON(w, http.StatusOK, messageResponse{Message: "device was already registered"})
		return
	}

	err = a.store.Create(r.Context(), claims.UserID(), req.DeviceToken, time.Now().UTC())
	if err != nil {
		// a concurrent registration of the same pair is still a success
		if errors.Is(err, ErrDuplicate) {
			rest.WriteJSON(w, http.StatusOK, messageResponse{Message: "device was already registered"})
			return
		}
		rest.WriteError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Infoln("registered device for account", claims.UserID())
	rest.WriteJSON(w, http.StatusOK, messageResponse{Message: "device registered successfully"})
}
