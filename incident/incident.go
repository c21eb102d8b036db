// Package incident implements incident report submission and retrieval.
//
// Submission is a multipart upload: the photo is streamed to the blob
// store first, the metadata row is written second. A failed photo write
// aborts the request before any database write, a failed database write
// removes the photo again, so a report either fully persists or not at
// all.
package incident

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/civicwatch/backend/core/access"
	"github.com/civicwatch/backend/core/events"
	"github.com/civicwatch/backend/core/filestore"
	"github.com/civicwatch/backend/core/logger"
	"github.com/civicwatch/backend/core/rest"
)

// StatusSubmitted is the status every new report starts in. Status
// transitions are out of scope here.
const StatusSubmitted = "Submitted"

// maxUploadSize bounds the in-memory part of multipart parsing.
const maxUploadSize = 200 * 1024 * 1024

// Report is a submitted incident report. Reports are created exactly once
// and never mutated or deleted afterwards.
type Report struct {
	IncidentID  int64     `json:"incident_id"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      string    `json:"status"`
	ReportedAt  time.Time `json:"reported_at"`
	AccountID   string    `json:"account_id"`
	PhotoURL    string    `json:"photo_url"`
}

// ErrNotFound means no report matches the id.
var ErrNotFound = errors.New("report not found")

// Store persists incident reports.
type Store interface {
	// Create persists the report and returns it with the assigned id.
	Create(ctx context.Context, report *Report) (*Report, error)
	// ByID returns the report for the id, or ErrNotFound.
	ByID(ctx context.Context, id int64) (*Report, error)
}

// EventSink receives an event for every successfully created report.
type EventSink interface {
	PublishIncidentCreated(ctx context.Context, event events.IncidentCreated) error
}

// API serves the incident routes.
type API struct {
	store Store
	blobs filestore.Driver
	sink  EventSink
}

// NewAPI returns the incident API. sink may be nil when no event broker is
// configured.
func NewAPI(store Store, blobs filestore.Driver, sink EventSink) *API {
	return &API{store: store, blobs: blobs, sink: sink}
}

// HandleRoutes adds the incident routes to the router. The router must sit
// behind the bearer-token middleware.
func (a *API) HandleRoutes(protected *mux.Router) {
	logger.Default().Debugln("incident routes enabled")
	logger.Default().Debugln("  handle route: /api/incident/submit POST")
	logger.Default().Debugln("  handle route: /api/incident/{id} GET")
	protected.HandleFunc("/api/incident/submit", a.submit).Methods(http.MethodPost)
	protected.HandleFunc("/api/incident/{id:[0-9]+}", a.getByID).Methods(http.MethodGet)
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		rest.WriteError(w, r, rest.ValidationError("invalid multipart form"))
		return
	}

	description := r.FormValue("description")
	if description == "" {
		rest.WriteError(w, r, rest.ValidationError("description is required"))
		return
	}
	latitude, err := formFloat(r, "latitude")
	if err != nil {
		rest.WriteError(w, r, err)
		return
	}
	longitude, err := formFloat(r, "longitude")
	if err != nil {
		rest.WriteError(w, r, err)
		return
	}

	photo, header, err := r.FormFile("photo")
	if err != nil || header.Size == 0 {
		rest.WriteError(w, r, rest.ValidationError("photo is required"))
		return
	}
	defer photo.Close()

	// The photo goes to disk before the metadata row is written. A row
	// must never reference a file that failed to persist.
	key := filestore.NewKey(header.Filename)
	if err := a.blobs.Put(key, photo); err != nil {
		rlog.WithError(err).Errorln("cannot store photo")
		rest.WriteError(w, r, rest.StorageError("cannot store photo"))
		return
	}

	claims := access.ClaimsFromContext(r.Context())
	if claims == nil || claims.UserID() == "" {
		a.discardBlob(rlog, key)
		rest.WriteError(w, r, rest.AuthError("user id not found in token"))
		return
	}

	report := &Report{
		Description: description,
		Latitude:    latitude,
		Longitude:   longitude,
		Status:      StatusSubmitted,
		ReportedAt:  time.Now().UTC(),
		AccountID:   claims.UserID(),
		PhotoURL:    a.blobs.PublicPath(key),
	}
	created, err := a.store.Create(r.Context(), report)
	if err != nil {
		// no partial commits: take the stored photo back out
		a.discardBlob(rlog, key)
		rest.WriteError(w, r, err)
		return
	}

	a.publishCreated(r.Context(), created)

	rlog.Infoln("created incident report", created.IncidentID)
	w.Header().Set("Location", fmt.Sprintf("/api/incident/%d", created.IncidentID))
	rest.WriteJSON(w, http.StatusCreated, created)
}

func (a *API) getByID(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	id, err := strconv.ParseInt(params["id"], 10, 64)
	if err != nil {
		rest.WriteError(w, r, rest.ValidationError("invalid incident id"))
		return
	}
	report, err := a.store.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			rest.WriteError(w, r, rest.NotFoundError("no such incident report"))
		} else {
			rest.WriteError(w, r, err)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, report)
}

func formFloat(r *http.Request, field string) (float64, error) {
	value := r.FormValue(field)
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, rest.ValidationError(field + " must be a number")
	}
	return f, nil
}

func (a *API) discardBlob(rlog interface{ Errorln(...interface{}) }, key string) {
	if err := a.blobs.Delete(key); err != nil {
		rlog.Errorln("cannot remove orphaned photo", key, err)
	}
}

// publishCreated notifies the push-notification dispatcher. Best effort, a
// broker outage never fails the submission.
func (a *API) publishCreated(ctx context.Context, report *Report) {
	if a.sink == nil {
		return
	}
	err := a.sink.PublishIncidentCreated(ctx, events.IncidentCreated{
		IncidentID:  report.IncidentID,
		AccountID:   report.AccountID,
		Description: report.Description,
		Latitude:    report.Latitude,
		Longitude:   report.Longitude,
		PhotoURL:    report.PhotoURL,
		ReportedAt:  report.ReportedAt,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warnln("cannot publish incident.created event")
	}
}
