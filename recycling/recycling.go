// Package recycling serves the read-only recycling site directory. Sites
// are seeded out-of-band, there is no write path.
package recycling

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/civicwatch/backend/core/logger"
	"github.com/civicwatch/backend/core/rest"
)

// Site is a recycling collection point.
type Site struct {
	SiteID    int64   `json:"site_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Materials string  `json:"materials"`
}

// ErrNotFound means no site matches the id.
var ErrNotFound = errors.New("site not found")

// Store reads recycling sites.
type Store interface {
	List(ctx context.Context) ([]Site, error)
	ByID(ctx context.Context, id int64) (*Site, error)
}

// API serves the recycling routes.
type API struct {
	store Store
}

// NewAPI returns the recycling API backed by the given site store.
func NewAPI(store Store) *API {
	return &API{store: store}
}

// HandleRoutes adds the public recycling routes to the router.
func (a *API) HandleRoutes(router *mux.Router) {
	logger.Default().Debugln("recycling routes enabled")
	logger.Default().Debugln("  handle route: /api/recycling/sites GET")
	logger.Default().Debugln("  handle route: /api/recycling/sites/{id} GET")
	router.HandleFunc("/api/recycling/sites", a.list).Methods(http.MethodGet)
	router.HandleFunc("/api/recycling/sites/{id:[0-9]+}", a.getByID).Methods(http.MethodGet)
}

func (a *API) list(w http.ResponseWriter, r *http.Request) {
	sites, err := a.store.List(r.Context())
	if err != nil {
		rest.WriteError(w, r, err)
		return
	}
	if sites == nil {
		sites = []Site{}
	}
	rest.WriteJSON(w, http.StatusOK, sites)
}

func (a *API) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		rest.WriteError(w, r, rest.ValidationError("invalid site id"))
		return
	}
	site, err := a.store.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			rest.WriteError(w, r, rest.NotFoundError("no such recycling site"))
		} else {
			rest.WriteError(w, r, err)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, site)
}
