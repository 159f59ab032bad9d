package casefile

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresRepository_SaveAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	c := &Case{
		ID:          "it_case_001",
		StationName: "Integration chest pain",
		Diagnosis:   "Pericarditis",
		Symptoms:    []string{"sharp pain, better sitting up"},
	}
	require.NoError(t, repo.Save(ctx, c))
	t.Cleanup(func() { db.Exec(`DELETE FROM cases WHERE id = $1`, c.ID) })

	got, err := repo.GetCase(ctx, "it_case_001")
	require.NoError(t, err)
	assert.Equal(t, c.Symptoms, got.Symptoms)

	got, err = repo.GetCase(ctx, "pericard")
	require.NoError(t, err)
	assert.Equal(t, "it_case_001", got.ID)

	got, err = repo.GetCase(ctx, "case_0")
	require.NoError(t, err)
	assert.Equal(t, "it_case_001", got.ID, "id substring")

	_, err = repo.GetCase(ctx, "no-such-case-anywhere")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetCase(ctx, "it_case_0%")
	assert.ErrorIs(t, err, ErrNotFound, "wildcards are literal")
}
