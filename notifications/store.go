package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/civicwatch/backend/core/csql"
)

// SQLStore is the postgres device store. The unique constraint on
// (account_id, device_token) backstops the check-then-insert path against
// concurrent duplicate registrations.
type SQLStore struct {
	db *csql.DB
}

// NewSQLStore returns a device store on the database. The user_device
// table is created if it does not exist yet.
func NewSQLStore(db *csql.DB) (*SQLStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + db.Schema + `.user_device (
device_id SERIAL,
account_id uuid NOT NULL,
device_token varchar NOT NULL,
registered_at timestamp NOT NULL,
PRIMARY KEY(device_id),
UNIQUE(account_id, device_token)
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create user_device table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

const uniqueViolation = "23505"

// Exists reports whether the (account, device token) pair is registered.
func (s *SQLStore) Exists(ctx context.Context, accountID, deviceToken string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+s.db.Schema+`.user_device WHERE account_id=$1 AND device_token=$2;`,
		accountID, deviceToken,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("cannot query user_device: %w", err)
	}
	return count > 0, nil
}

// Create registers the pair. A violated unique constraint maps to
// ErrDuplicate.
func (s *SQLStore) Create(ctx context.Context, accountID, deviceToken string, registeredAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.db.Schema+`.user_device (account_id, device_token, registered_at)
VALUES ($1, $2, $3);`,
		accountID, deviceToken, registeredAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("cannot create user_device: %w", err)
	}
	return nil
}
