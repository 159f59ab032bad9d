package casefile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns key into a LIKE pattern matching it literally
// anywhere in a lower-cased column.
func containsPattern(key string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(key)) + "%"
}

// PostgresRepository stores cases as JSON documents in the cases table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetCase matches an exact id first, then a case-insensitive substring of
// the id, station name or diagnosis.
func (r *PostgresRepository) GetCase(ctx context.Context, key string) (*Case, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("empty key: %w", ErrNotFound)
	}

	query := `
		SELECT body FROM cases
		WHERE id = $1
		   OR lower(id) LIKE $2 ESCAPE '\'
		   OR lower(station_name) LIKE $2 ESCAPE '\'
		   OR lower(diagnosis) LIKE $2 ESCAPE '\'
		ORDER BY (id = $1) DESC, id
		LIMIT 1`

	var body []byte
	err := r.db.QueryRowContext(ctx, query, key, containsPattern(key)).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return nil, err
	}

	var c Case
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case %q: %w", key, err)
	}
	return Enrich(&c), nil
}

func (r *PostgresRepository) Save(ctx context.Context, c *Case) error {
	if c.ID == "" {
		return errors.New("case id is required")
	}
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cases (id, station_name, diagnosis, body, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			station_name = $2,
			diagnosis = $3,
			body = $4,
			updated_at = now()
	`
	_, err = r.db.ExecContext(ctx, query, c.ID, c.StationName, c.Diagnosis, body)
	return err
}
