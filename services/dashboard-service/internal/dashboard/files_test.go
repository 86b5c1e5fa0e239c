package dashboard

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/csvdoc"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/db"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/events"
	dashmodels "github.com/stoik/leaddesk/services/dashboard-service/internal/models"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/storage"
)

type failingInsert struct {
	*db.MemoryFiles
}

func (failingInsert) Insert(context.Context, dashmodels.UploadedFile) error {
	return errors.New("insert failed")
}

func (f *fixture) store(t *testing.T, name, body string) dashmodels.UploadedFile {
	t.Helper()
	file, err := f.svc.StoreUpload(context.Background(), f.owner, csvUpload(name, body))
	require.NoError(t, err)
	return file
}

func (f *fixture) blobContent(t *testing.T, key string) string {
	t.Helper()
	rc, err := f.blobs.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) objectCount(t *testing.T) int {
	t.Helper()
	count := 0
	err := afero.Walk(f.fs, "/", func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestStoreUpload(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	assert.Equal(t, "leads.csv", file.FileName)
	assert.True(t, strings.HasPrefix(file.FilePath, f.owner.String()+"/"))
	assert.True(t, strings.HasSuffix(file.FilePath, "_leads.csv"))
	assert.Equal(t, int64(len(leadsCSV)), file.FileSize)
	require.NotNil(t, file.RowCount)
	assert.Equal(t, 2, *file.RowCount)
	assert.Equal(t, dashmodels.FileStatusUploaded, file.Status)
	assert.Equal(t, leadsCSV, f.blobContent(t, file.FilePath))

	files, err := f.svc.ListFiles(context.Background(), f.owner)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, file.ID, files[0].ID)

	assert.Equal(t, 1, f.objectCount(t))
	assert.Zero(t, f.hooks.callCount())
	assert.Equal(t, []string{events.FileUploaded}, f.published.types())
	assert.Equal(t, float64(len(leadsCSV)), testutil.ToFloat64(f.metrics.UploadedBytes.WithLabelValues("storage")))
}

func TestStoreUpload_InsertFailureRemovesBlob(t *testing.T) {
	f := newFixture(t)
	f.svc.files = failingInsert{db.NewMemoryFiles()}

	_, err := f.svc.StoreUpload(context.Background(), f.owner, csvUpload("leads.csv", leadsCSV))
	require.Error(t, err)

	assert.Zero(t, f.objectCount(t))
	assert.Empty(t, f.published.types())
}

func TestObjectKey(t *testing.T) {
	owner := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, owner.String()+"/42_leads.csv", objectKey(owner, 42, " leads.csv "))
	assert.Equal(t, owner.String()+"/42_.._etc_passwd", objectKey(owner, 42, "../etc/passwd"))
	assert.Equal(t, owner.String()+"/42__", objectKey(owner, 42, ".."))
}

func TestRenameFile(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	renamed, err := f.svc.RenameFile(context.Background(), f.owner, file.ID, "  q3 leads.csv ")
	require.NoError(t, err)
	assert.Equal(t, "q3 leads.csv", renamed.FileName)
	assert.Equal(t, file.FilePath, renamed.FilePath)

	_, err = f.svc.RenameFile(context.Background(), f.owner, file.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.RenameFile(context.Background(), uuid.New(), file.ID, "theirs.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFile_RemovesBlobThenRow(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	require.NoError(t, f.svc.DeleteFile(context.Background(), f.owner, file.ID))

	_, err := f.blobs.Get(context.Background(), file.FilePath)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.svc.GetFile(context.Background(), f.owner, file.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.svc.DeleteFile(context.Background(), f.owner, file.ID), ErrNotFound)
	assert.Equal(t, []string{events.FileUploaded, events.FileDeleted}, f.published.types())
}

func TestDeleteFile_MissingBlobStillDeletesRow(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)
	require.NoError(t, f.blobs.Remove(context.Background(), file.FilePath))

	require.NoError(t, f.svc.DeleteFile(context.Background(), f.owner, file.ID))
	files, err := f.svc.ListFiles(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDownloadFile(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	got, rc, err := f.svc.DownloadFile(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, leadsCSV, string(data))
	assert.Equal(t, file.ID, got.ID)

	require.NoError(t, f.blobs.Remove(context.Background(), file.FilePath))
	_, _, err = f.svc.DownloadFile(context.Background(), f.owner, file.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditDocument(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	opened, err := f.svc.LoadDocument(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company", "Website Base URL"}, opened.Document.Headers)

	saved, err := f.svc.EditDocument(context.Background(), f.owner, file.ID, []csvdoc.Edit{
		{Op: csvdoc.OpAddColumn},
		{Op: csvdoc.OpSetCell, Row: 0, Col: 2, Value: "hot"},
		{Op: csvdoc.OpAddRow},
		{Op: csvdoc.OpSetCell, Row: 2, Col: 0, Value: "Initech"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Company", "Website Base URL", "Column 3"}, saved.Document.Headers)
	assert.Equal(t, dashmodels.FileStatusEdited, saved.File.Status)
	require.NotNil(t, saved.File.RowCount)
	assert.Equal(t, 3, *saved.File.RowCount)

	reopened, err := f.svc.LoadDocument(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Document.Rows, reopened.Document.Rows)
	assert.Equal(t, 3, *reopened.File.RowCount)
	assert.Equal(t, int64(len(f.blobContent(t, file.FilePath))), reopened.File.FileSize)
}

func TestEditDocument_BlankRowIsNotStored(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", "a,b\n1,2\n")

	saved, err := f.svc.EditDocument(context.Background(), f.owner, file.ID, []csvdoc.Edit{{Op: csvdoc.OpAddRow}})
	require.NoError(t, err)
	assert.Len(t, saved.Document.Rows, 1)
	assert.Equal(t, 1, *saved.File.RowCount)
	assert.Equal(t, "a,b\n1,2\n", f.blobContent(t, file.FilePath))

	reopened, err := f.svc.LoadDocument(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Document.Rows, reopened.Document.Rows)
	assert.Equal(t, reopened.Document.RowCount(), *reopened.File.RowCount)

	_, err = f.svc.EditDocument(context.Background(), f.owner, file.ID, []csvdoc.Edit{
		{Op: csvdoc.OpSetCell, Row: 1, Col: 0, Value: "x"},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// adding and filling a row in one batch keeps it
	saved, err = f.svc.EditDocument(context.Background(), f.owner, file.ID, []csvdoc.Edit{
		{Op: csvdoc.OpAddRow},
		{Op: csvdoc.OpSetCell, Row: 1, Col: 0, Value: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, *saved.File.RowCount)
	assert.Equal(t, "a,b\n1,2\n3,\n", f.blobContent(t, file.FilePath))
}

func TestSaveDocument_DropsBlankRows(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	saved, err := f.svc.SaveDocument(context.Background(), f.owner, file.ID, SaveRequest{
		Document: csvdoc.Document{
			Headers: []string{"Company", "Website Base URL"},
			Rows:    [][]string{{"Acme", "https://acme.io"}, {"", ""}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *saved.File.RowCount)
	assert.Len(t, saved.Document.Rows, 1)
}

func TestEditDocument_FailedBatchSavesNothing(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	_, err := f.svc.EditDocument(context.Background(), f.owner, file.ID, []csvdoc.Edit{
		{Op: csvdoc.OpSetCell, Row: 0, Col: 0, Value: "Changed"},
		{Op: csvdoc.OpDeleteRow, Row: 10},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, leadsCSV, f.blobContent(t, file.FilePath))
	got, err := f.svc.GetFile(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, dashmodels.FileStatusUploaded, got.Status)
}

func TestSaveDocument(t *testing.T) {
	f := newFixture(t)
	file := f.store(t, "leads.csv", leadsCSV)

	saved, err := f.svc.SaveDocument(context.Background(), f.owner, file.ID, SaveRequest{
		FileName: "cleaned.csv",
		Document: csvdoc.Document{
			Headers: []string{"Company"},
			Rows:    [][]string{{"Acme", "https://acme.io"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "cleaned.csv", saved.File.FileName)
	assert.Equal(t, []string{"Company", "Column 2"}, saved.Document.Headers)
	assert.Equal(t, "Company,Column 2\nAcme,https://acme.io\n", f.blobContent(t, file.FilePath))

	got, err := f.svc.GetFile(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "cleaned.csv", got.FileName)
	assert.Equal(t, 1, *got.RowCount)
}
