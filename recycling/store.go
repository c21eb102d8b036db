package recycling

import (
	"context"
	"fmt"

	"github.com/civicwatch/backend/core/csql"
)

// SQLStore is the postgres site store.
type SQLStore struct {
	db *csql.DB
}

// NewSQLStore returns a site store on the database. The recycling_site
// table is created if it does not exist yet.
func NewSQLStore(db *csql.DB) (*SQLStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + db.Schema + `.recycling_site (
site_id SERIAL,
name varchar NOT NULL,
latitude double precision NOT NULL,
longitude double precision NOT NULL,
materials varchar NOT NULL DEFAULT '',
PRIMARY KEY(site_id)
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create recycling_site table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// List returns all recycling sites.
func (s *SQLStore) List(ctx context.Context) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site_id, name, latitude, longitude, materials FROM `+
			s.db.Schema+`.recycling_site ORDER BY site_id;`)
	if err != nil {
		return nil, fmt.Errorf("cannot list recycling sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.SiteID, &site.Name, &site.Latitude,
			&site.Longitude, &site.Materials); err != nil {
			return nil, fmt.Errorf("cannot scan recycling site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// ByID returns the site for the id.
func (s *SQLStore) ByID(ctx context.Context, id int64) (*Site, error) {
	site := Site{}
	err := s.db.QueryRowContext(ctx,
		`SELECT site_id, name, latitude, longitude, materials FROM `+
			s.db.Schema+`.recycling_site WHERE site_id=$1;`, id,
	).Scan(&site.SiteID, &site.Name, &site.Latitude, &site.Longitude, &site.Materials)
	if err != nil {
		if err == csql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot read recycling site: %w", err)
	}
	return &site, nil
}
