package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taishikato/supavec-api/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(t.Context()))
	require.NoError(t, db.InsertFile(t.Context(), models.File{
		FileID: "f1", Type: models.FileTypeWebScrape, FileName: "https://a.test", TeamID: "t1", StoragePath: "t1/f1.txt",
	}))
}

func TestFiles(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	file := models.File{
		FileID:      "0b8e6f3c-7c2a-4a6e-9d8b-2f0b3c4d5e6f",
		Type:        models.FileTypeWebScrape,
		FileName:    "https://example.com/docs",
		Title:       "Docs",
		TeamID:      "team-1",
		StoragePath: "team-1/0b8e6f3c-7c2a-4a6e-9d8b-2f0b3c4d5e6f.txt",
		CreatedAt:   created,
	}

	t.Run("InsertAndGet", func(t *testing.T) {
		require.NoError(t, db.InsertFile(ctx, file))

		got, err := db.GetFile(ctx, "team-1", file.FileID)
		require.NoError(t, err)
		assert.Equal(t, file.FileID, got.FileID)
		assert.Equal(t, models.FileTypeWebScrape, got.Type)
		assert.Equal(t, file.FileName, got.FileName)
		assert.Equal(t, "Docs", got.Title)
		assert.Equal(t, file.StoragePath, got.StoragePath)
		assert.True(t, created.Equal(got.CreatedAt))
	})

	t.Run("DuplicateIDRejected", func(t *testing.T) {
		assert.Error(t, db.InsertFile(ctx, file))
	})

	t.Run("OtherTeamCannotRead", func(t *testing.T) {
		_, err := db.GetFile(ctx, "team-2", file.FileID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, db.InsertFile(ctx, models.File{
			FileID: "second", Type: models.FileTypeWebScrape, FileName: "https://example.com/b",
			TeamID: "team-1", StoragePath: "team-1/second.txt", CreatedAt: created.Add(time.Hour),
		}))

		files, err := db.ListFiles(ctx, "team-1", 0)
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "second", files[0].FileID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.DeleteFile(ctx, file.FileID))
		_, err := db.GetFile(ctx, "team-1", file.FileID)
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is fine.
		assert.NoError(t, db.DeleteFile(ctx, file.FileID))
	})
}

func TestUsageLogs(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()

	msg := "Invalid JSON body"
	require.NoError(t, db.InsertUsageLog(ctx, models.UsageLog{UserID: "u1", Endpoint: "/scrape", Success: true}))
	require.NoError(t, db.InsertUsageLog(ctx, models.UsageLog{UserID: "u1", Endpoint: "/scrape", Success: false, Error: &msg}))
	require.NoError(t, db.InsertUsageLog(ctx, models.UsageLog{UserID: "u2", Endpoint: "/scrape", Success: true}))

	logs, err := db.ListUsageLogs(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.True(t, logs[0].Success)
	assert.Nil(t, logs[0].Error)
	assert.False(t, logs[0].CreatedAt.IsZero())

	assert.False(t, logs[1].Success)
	require.NotNil(t, logs[1].Error)
	assert.Equal(t, msg, *logs[1].Error)
}
