package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/csvdoc"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/db"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/events"
	dashmodels "github.com/stoik/leaddesk/services/dashboard-service/internal/models"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/storage"
)

// SaveRequest replaces a stored document. An empty FileName keeps the
// current name.
type SaveRequest struct {
	FileName string          `json:"file_name"`
	Document csvdoc.Document `json:"document"`
}

// OpenedDocument is a stored file parsed for editing
type OpenedDocument struct {
	File     dashmodels.UploadedFile `json:"file"`
	Document *csvdoc.Document        `json:"document"`
}

// StoreUpload validates a file, writes it to the blob store and records its
// metadata. The blob is removed again if the metadata insert fails.
func (s *Service) StoreUpload(ctx context.Context, owner uuid.UUID, up Upload) (dashmodels.UploadedFile, error) {
	content, err := s.checkUpload(up)
	if err != nil {
		return dashmodels.UploadedFile{}, err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return dashmodels.UploadedFile{}, fmt.Errorf("failed to read upload: %w", err)
	}

	now := s.now().UTC()
	key := objectKey(owner, now.UnixMilli(), up.Name)
	size, err := s.blobs.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return dashmodels.UploadedFile{}, fmt.Errorf("failed to store %s: %w", up.Name, err)
	}

	file := dashmodels.UploadedFile{
		ID:         uuid.New(),
		OwnerID:    owner,
		FileName:   strings.TrimSpace(up.Name),
		FilePath:   key,
		FileSize:   size,
		Status:     dashmodels.FileStatusUploaded,
		UploadedAt: now,
	}
	if doc, err := csvdoc.Parse(bytes.NewReader(data)); err == nil {
		rows := doc.RowCount()
		file.RowCount = &rows
	} else {
		log.Printf("Could not count rows of %s: %v", up.Name, err)
	}

	if err := s.files.Insert(ctx, file); err != nil {
		if rmErr := s.blobs.Remove(ctx, key); rmErr != nil {
			log.Printf("Failed to remove orphaned blob %s: %v", key, rmErr)
		}
		return dashmodels.UploadedFile{}, err
	}

	s.metrics.addUploaded("storage", size)
	s.metrics.fileOp("store")
	s.publish(ctx, events.Event{
		Type:     events.FileUploaded,
		OwnerID:  owner,
		FileID:   &file.ID,
		FileName: file.FileName,
		Count:    rowCount(file),
	})
	return file, nil
}

// ListFiles returns the owner's files, newest first
func (s *Service) ListFiles(ctx context.Context, owner uuid.UUID) ([]dashmodels.UploadedFile, error) {
	files, err := s.files.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetFile returns one file's metadata
func (s *Service) GetFile(ctx context.Context, owner, id uuid.UUID) (dashmodels.UploadedFile, error) {
	file, err := s.files.Get(ctx, owner, id)
	return file, notFound(err)
}

// RenameFile changes the display name of a file
func (s *Service) RenameFile(ctx context.Context, owner, id uuid.UUID, name string) (dashmodels.UploadedFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return dashmodels.UploadedFile{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if err := s.files.Rename(ctx, owner, id, name); err != nil {
		return dashmodels.UploadedFile{}, notFound(err)
	}
	s.metrics.fileOp("rename")
	return s.GetFile(ctx, owner, id)
}

// DeleteFile removes the blob and then the metadata row. A blob that is
// already gone does not stop the row from being deleted.
func (s *Service) DeleteFile(ctx context.Context, owner, id uuid.UUID) error {
	file, err := s.files.Get(ctx, owner, id)
	if err != nil {
		return notFound(err)
	}
	if err := s.blobs.Remove(ctx, file.FilePath); err != nil {
		return fmt.Errorf("failed to remove blob for %s: %w", file.FileName, err)
	}
	if err := s.files.Delete(ctx, owner, id); err != nil {
		return notFound(err)
	}

	s.metrics.fileOp("delete")
	s.publish(ctx, events.Event{
		Type:     events.FileDeleted,
		OwnerID:  owner,
		FileID:   &file.ID,
		FileName: file.FileName,
	})
	return nil
}

// DownloadFile opens the stored content. The caller closes the reader.
func (s *Service) DownloadFile(ctx context.Context, owner, id uuid.UUID) (dashmodels.UploadedFile, io.ReadCloser, error) {
	file, err := s.files.Get(ctx, owner, id)
	if err != nil {
		return dashmodels.UploadedFile{}, nil, notFound(err)
	}
	rc, err := s.blobs.Get(ctx, file.FilePath)
	if err != nil {
		return dashmodels.UploadedFile{}, nil, notFound(err)
	}
	return file, rc, nil
}

// LoadDocument downloads and parses a stored file for editing
func (s *Service) LoadDocument(ctx context.Context, owner, id uuid.UUID) (OpenedDocument, error) {
	file, rc, err := s.DownloadFile(ctx, owner, id)
	if err != nil {
		return OpenedDocument{}, err
	}
	defer rc.Close()

	doc, err := csvdoc.Parse(rc)
	if err != nil {
		return OpenedDocument{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return OpenedDocument{File: file, Document: doc}, nil
}

// SaveDocument overwrites the stored file with the document and updates its
// name, size, row count and status
func (s *Service) SaveDocument(ctx context.Context, owner, id uuid.UUID, req SaveRequest) (OpenedDocument, error) {
	file, err := s.files.Get(ctx, owner, id)
	if err != nil {
		return OpenedDocument{}, notFound(err)
	}
	doc := req.Document.Clone()
	doc.Normalize()
	return s.save(ctx, file, doc, req.FileName)
}

// EditDocument applies a batch of edits to the stored document and saves
// it. Nothing is written if any edit fails.
func (s *Service) EditDocument(ctx context.Context, owner, id uuid.UUID, edits []csvdoc.Edit) (OpenedDocument, error) {
	opened, err := s.LoadDocument(ctx, owner, id)
	if err != nil {
		return OpenedDocument{}, err
	}
	if err := opened.Document.Apply(edits); err != nil {
		if csvdoc.IsInvalidEdit(err) {
			return OpenedDocument{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return OpenedDocument{}, err
	}
	return s.save(ctx, opened.File, opened.Document, "")
}

// save stores the document as it will read back: rows left entirely empty
// are dropped before encoding so the stored row count matches a reload
func (s *Service) save(ctx context.Context, file dashmodels.UploadedFile, doc *csvdoc.Document, name string) (OpenedDocument, error) {
	doc.Compact()
	data, err := doc.Bytes()
	if err != nil {
		return OpenedDocument{}, fmt.Errorf("failed to encode document: %w", err)
	}
	size, err := s.blobs.Put(ctx, file.FilePath, bytes.NewReader(data))
	if err != nil {
		return OpenedDocument{}, fmt.Errorf("failed to store %s: %w", file.FileName, err)
	}

	if name = strings.TrimSpace(name); name == "" {
		name = file.FileName
	}
	update := db.ContentUpdate{
		FileName: name,
		FileSize: size,
		RowCount: doc.RowCount(),
		Status:   dashmodels.FileStatusEdited,
	}
	if err := s.files.UpdateContent(ctx, file.OwnerID, file.ID, update); err != nil {
		return OpenedDocument{}, notFound(err)
	}
	s.metrics.fileOp("save")

	rows := update.RowCount
	file.FileName = update.FileName
	file.FileSize = update.FileSize
	file.RowCount = &rows
	file.Status = update.Status
	return OpenedDocument{File: file, Document: doc}, nil
}

// objectKey places a file under its owner's prefix with a millisecond stamp
func objectKey(owner uuid.UUID, millis int64, name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if name == "." || name == ".." {
		name = "_"
	}
	return fmt.Sprintf("%s/%d_%s", owner, millis, name)
}

func notFound(err error) error {
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func rowCount(f dashmodels.UploadedFile) int {
	if f.RowCount == nil {
		return 0
	}
	return *f.RowCount
}
