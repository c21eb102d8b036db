package auth

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/civicwatch/backend/core/csql"
)

// SQLStore is the postgres credential store.
type SQLStore struct {
	db *csql.DB
}

// NewSQLStore returns a credential store on the database. The account
// table is created if it does not exist yet.
func NewSQLStore(db *csql.DB) (*SQLStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + db.Schema + `.account (
account_id uuid DEFAULT uuid_generate_v4(),
username varchar NOT NULL,
email varchar NOT NULL,
password_hash varchar NOT NULL,
created_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(account_id),
UNIQUE(username),
UNIQUE(email)
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create account table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// uniqueViolation is the postgres error code for a violated unique
// constraint.
const uniqueViolation = "23505"

// Create persists a new account. A violated unique constraint on username
// or email maps to ErrDuplicate.
func (s *SQLStore) Create(ctx context.Context, username, email, passwordHash string) (*Account, error) {
	account := Account{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO `+s.db.Schema+`.account (username, email, password_hash)
VALUES ($1, $2, $3) RETURNING account_id, created_at;`,
		username, email, passwordHash,
	).Scan(&account.AccountID, &account.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("cannot create account: %w", err)
	}
	return &account, nil
}

// ByEmail returns the account registered under the email.
func (s *SQLStore) ByEmail(ctx context.Context, email string) (*Account, error) {
	account := Account{}
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id, username, email, password_hash, created_at FROM `+
			s.db.Schema+`.account WHERE email=$1;`, email,
	).Scan(&account.AccountID, &account.Username, &account.Email,
		&account.PasswordHash, &account.CreatedAt)
	if err != nil {
		if err == csql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cannot read account: %w", err)
	}
	return &account, nil
}
