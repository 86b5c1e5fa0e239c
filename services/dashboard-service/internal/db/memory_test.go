package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/models"
)

func newFile(owner uuid.UUID, name string, at time.Time) models.UploadedFile {
	rows := 3
	return models.UploadedFile{
		ID:         uuid.New(),
		OwnerID:    owner,
		FileName:   name,
		FilePath:   owner.String() + "/" + name,
		FileSize:   42,
		RowCount:   &rows,
		Status:     models.FileStatusUploaded,
		UploadedAt: at,
	}
}

func TestMemoryFiles_ListNewestFirstPerOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFiles()
	owner, other := uuid.New(), uuid.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, newFile(owner, "old.csv", base)))
	require.NoError(t, repo.Insert(ctx, newFile(owner, "new.csv", base.Add(time.Hour))))
	require.NoError(t, repo.Insert(ctx, newFile(other, "theirs.csv", base.Add(2*time.Hour))))

	files, err := repo.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "new.csv", files[0].FileName)
	assert.Equal(t, "old.csv", files[1].FileName)

	files, err = repo.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestMemoryFiles_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFiles()
	owner := uuid.New()
	f := newFile(owner, "a.csv", time.Now())
	require.NoError(t, repo.Insert(ctx, f))

	_, err := repo.Get(ctx, uuid.New(), f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Rename(ctx, uuid.New(), f.ID, "b.csv"), ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, uuid.New(), f.ID), ErrNotFound)
}

func TestMemoryFiles_UpdateRenameDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFiles()
	owner := uuid.New()
	f := newFile(owner, "a.csv", time.Now())
	require.NoError(t, repo.Insert(ctx, f))

	require.NoError(t, repo.UpdateContent(ctx, owner, f.ID, ContentUpdate{
		FileName: "a-edited.csv", FileSize: 99, RowCount: 7, Status: models.FileStatusEdited,
	}))
	got, err := repo.Get(ctx, owner, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "a-edited.csv", got.FileName)
	assert.Equal(t, int64(99), got.FileSize)
	require.NotNil(t, got.RowCount)
	assert.Equal(t, 7, *got.RowCount)
	assert.Equal(t, models.FileStatusEdited, got.Status)

	require.NoError(t, repo.Rename(ctx, owner, f.ID, "final.csv"))
	got, err = repo.Get(ctx, owner, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "final.csv", got.FileName)

	require.NoError(t, repo.Delete(ctx, owner, f.ID))
	_, err = repo.Get(ctx, owner, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, owner, f.ID), ErrNotFound)
}

func TestMemoryFiles_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFiles()
	owner := uuid.New()
	f := newFile(owner, "a.csv", time.Now())
	require.NoError(t, repo.Insert(ctx, f))

	got, err := repo.Get(ctx, owner, f.ID)
	require.NoError(t, err)
	*got.RowCount = 1000

	again, err := repo.Get(ctx, owner, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *again.RowCount)
}
