package docstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *PostgresRepository[record] {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := OpenPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	name := "test_" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM documents WHERE name = $1`, name)
	})
	return NewPostgresRepository[record](db, name)
}

func TestPostgresRepository_FirstRunThenRoundTrip(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	got, found, err := repo.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, got)

	in := []record{{ID: 1, Name: "a", Tags: []string{"t"}, Price: 2.5}}
	require.NoError(t, repo.Save(ctx, in))

	out, found, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in, out)

	in = append(in, record{ID: 2, Name: "b", Tags: []string{}})
	require.NoError(t, repo.Save(ctx, in))

	out, _, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
}
