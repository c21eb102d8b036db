package incident

import (
	"context"
	"fmt"

	"github.com/civicwatch/backend/core/csql"
)

// SQLStore is the postgres report store.
type SQLStore struct {
	db *csql.DB
}

// NewSQLStore returns a report store on the database. The incident_report
// table is created if it does not exist yet.
func NewSQLStore(db *csql.DB) (*SQLStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + db.Schema + `.incident_report (
incident_id SERIAL,
description varchar NOT NULL,
latitude double precision NOT NULL,
longitude double precision NOT NULL,
status varchar NOT NULL DEFAULT 'Submitted',
reported_at timestamp NOT NULL,
account_id uuid NOT NULL,
photo_url varchar NOT NULL,
PRIMARY KEY(incident_id)
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create incident_report table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Create persists the report and returns it with the database-assigned id.
func (s *SQLStore) Create(ctx context.Context, report *Report) (*Report, error) {
	created := *report
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO `+s.db.Schema+`.incident_report
(description, latitude, longitude, status, reported_at, account_id, photo_url)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING incident_id;`,
		report.Description, report.Latitude, report.Longitude, report.Status,
		report.ReportedAt, report.AccountID, report.PhotoURL,
	).Scan(&created.IncidentID)
	if err != nil {
		return nil, fmt.Errorf("cannot create incident report: %w", err)
	}
	return &created, nil
}

// ByID returns the report for the id.
func (s *SQLStore) ByID(ctx context.Context, id int64) (*Report, error) {
	report := Report{}
	err := s.db.QueryRowContext(ctx,
		`SELECT incident_id, description, latitude, longitude, status, reported_at, account_id, photo_url
FROM `+s.db.Schema+`.incident_report WHERE incident_id=$1;`, id,
	).Scan(&report.IncidentID, &report.Description, &report.Latitude, &report.Longitude,
		&report.Status, &report.ReportedAt, &report.AccountID, &report.PhotoURL)
	if err != nil {
		if err == csql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot read incident report: %w", err)
	}
	return &report, nil
}
