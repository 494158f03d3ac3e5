//go:build integration

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cohere/internal/domain"
	"cohere/internal/storage"
	"cohere/pkg/testutil/containers"
)

// storeContract runs the adapter contract every Store implementation must
// satisfy: round-trip, visibility filtering, ordered scans, deletion.
func storeContract(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		record := &domain.Record{
			ID:        "c1",
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
			UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
			Fields: map[string]any{
				"name":  "Jane",
				"tags":  []any{"vip"},
				"score": float64(7),
			},
		}
		_, err := store.Put(ctx, "contacts", record)
		require.NoError(t, err)

		got, err := store.Get(ctx, "contacts", "c1", storage.ReadOptions{})
		require.NoError(t, err)
		require.Equal(t, "Jane", got.StringField("name"))
		require.Equal(t, []any{"vip"}, got.Field("tags"))
		require.Equal(t, float64(7), got.Field("score"))
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := store.Get(ctx, "contacts", "ghost", storage.ReadOptions{})
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		_, err := store.Put(ctx, "contacts", &domain.Record{ID: "c1", Fields: map[string]any{"name": "Janet"}})
		require.NoError(t, err)
		got, err := store.Get(ctx, "contacts", "c1", storage.ReadOptions{})
		require.NoError(t, err)
		require.Equal(t, "Janet", got.StringField("name"))
	})

	t.Run("visibility", func(t *testing.T) {
		_, err := store.Put(ctx, "contacts", &domain.Record{ID: "c2", DeletedAtPending: time.Now().UTC()})
		require.NoError(t, err)
		_, err = store.Put(ctx, "contacts", &domain.Record{ID: "c3", IsDeleted: true, DeletedAt: time.Now().UTC()})
		require.NoError(t, err)

		_, err = store.Get(ctx, "contacts", "c2", storage.ReadOptions{})
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.Get(ctx, "contacts", "c2", storage.ReadOptions{IncludePending: true})
		require.NoError(t, err)

		records, err := store.GetAll(ctx, "contacts", storage.ReadOptions{})
		require.NoError(t, err)
		require.Len(t, records, 1)

		records, err = store.GetAll(ctx, "contacts", storage.ReadOptions{IncludePending: true, IncludeDeleted: true})
		require.NoError(t, err)
		require.Len(t, records, 3)
		require.Equal(t, "c1", records[0].ID)
		require.Equal(t, "c3", records[2].ID)
	})

	t.Run("collections isolated", func(t *testing.T) {
		records, err := store.GetAll(ctx, "companies", storage.ReadOptions{})
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "contacts", "c1"))
		_, err := store.Get(ctx, "contacts", "c1", storage.ReadOptions{IncludePending: true, IncludeDeleted: true})
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, store.Delete(ctx, "contacts", "ghost"))
	})
}

func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	storeContract(t, storage.NewRedisStore(rc.Client))
}

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pc := containers.NewPostgresContainer(t)
	store := storage.NewPostgresStore(pc.DB)
	require.NoError(t, store.EnsureSchema(context.Background()))
	storeContract(t, store)
}
