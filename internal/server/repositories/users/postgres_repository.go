package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/trainbook/internal/dbx"
	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LoadAll(ctx context.Context) ([]*models.User, error) {
	query :=
		`SELECT id, username, password, profile FROM users
		 ORDER BY username
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		var (
			u       models.User
			profile []byte
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &profile); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if len(profile) > 0 {
			if err := json.Unmarshal(profile, &u.Profile); err != nil {
				return nil, fmt.Errorf("profile of %q: %w", u.Username, err)
			}
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// SaveAll upserts every user by username in a single transaction.
func (r *PostgresRepository) SaveAll(ctx context.Context, users []*models.User) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, u := range users {
			if err := upsert(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(ctx context.Context, db dbx.DBTX, u *models.User) error {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("user %q has invalid id %q: %w", u.Username, id, err)
	}

	profile := u.Profile
	if profile == nil {
		profile = models.Profile{}
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile of %q: %w", u.Username, err)
	}

	query :=
		`INSERT INTO users (id, username, password, profile)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username)
		 DO UPDATE SET password = EXCLUDED.password, profile = EXCLUDED.profile
		 `

	if _, err := db.ExecContext(ctx, query, id, u.Username, u.Password, data); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
