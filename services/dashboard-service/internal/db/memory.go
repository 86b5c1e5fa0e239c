package db

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/models"
)

// MemoryFiles keeps file metadata in process. Used when no database is
// configured and in tests.
type MemoryFiles struct {
	mu    sync.RWMutex
	files map[uuid.UUID]models.UploadedFile
}

func NewMemoryFiles() *MemoryFiles {
	return &MemoryFiles{files: make(map[uuid.UUID]models.UploadedFile)}
}

func (m *MemoryFiles) Insert(_ context.Context, f models.UploadedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = copyFile(f)
	return nil
}

func (m *MemoryFiles) Get(_ context.Context, ownerID, id uuid.UUID) (models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok || f.OwnerID != ownerID {
		return models.UploadedFile{}, ErrNotFound
	}
	return copyFile(f), nil
}

func (m *MemoryFiles) List(_ context.Context, ownerID uuid.UUID) ([]models.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := []models.UploadedFile{}
	for _, f := range m.files {
		if f.OwnerID == ownerID {
			files = append(files, copyFile(f))
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	return files, nil
}

func (m *MemoryFiles) UpdateContent(_ context.Context, ownerID, id uuid.UUID, u ContentUpdate) error {
	return m.update(ownerID, id, func(f *models.UploadedFile) {
		rows := u.RowCount
		f.FileName = u.FileName
		f.FileSize = u.FileSize
		f.RowCount = &rows
		f.Status = u.Status
	})
}

func (m *MemoryFiles) Rename(_ context.Context, ownerID, id uuid.UUID, name string) error {
	return m.update(ownerID, id, func(f *models.UploadedFile) { f.FileName = name })
}

func (m *MemoryFiles) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.files, id)
	return nil
}

func (m *MemoryFiles) update(ownerID, id uuid.UUID, fn func(*models.UploadedFile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.OwnerID != ownerID {
		return ErrNotFound
	}
	fn(&f)
	m.files[id] = f
	return nil
}

func copyFile(f models.UploadedFile) models.UploadedFile {
	if f.RowCount != nil {
		rows := *f.RowCount
		f.RowCount = &rows
	}
	return f
}
