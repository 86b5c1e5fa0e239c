package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/models"
)

// ErrNotFound is returned when no file row matches the owner and id
var ErrNotFound = errors.New("file not found")

// ContentUpdate carries the columns rewritten by an editor save
type ContentUpdate struct {
	FileName string
	FileSize int64
	RowCount int
	Status   string
}

// Files persists uploaded file metadata in PostgreSQL
type Files struct {
	pool *pgxpool.Pool
}

// NewFiles creates a repository over the given pool
func NewFiles(pool *pgxpool.Pool) *Files {
	return &Files{pool: pool}
}

const fileColumns = `id, owner_id, file_name, file_path, file_size, row_count, status, uploaded_at`

func (r *Files) Insert(ctx context.Context, f models.UploadedFile) error {
	query := `INSERT INTO uploaded_files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		f.ID, f.OwnerID, f.FileName, f.FilePath, f.FileSize, f.RowCount, f.Status, f.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", f.ID, err)
	}
	return nil
}

func (r *Files) Get(ctx context.Context, ownerID, id uuid.UUID) (models.UploadedFile, error) {
	query := `SELECT ` + fileColumns + ` FROM uploaded_files WHERE owner_id = $1 AND id = $2`

	f, err := scanFile(r.pool.QueryRow(ctx, query, ownerID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.UploadedFile{}, ErrNotFound
	}
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to get file %s: %w", id, err)
	}
	return f, nil
}

// List returns the owner's files, newest first
func (r *Files) List(ctx context.Context, ownerID uuid.UUID) ([]models.UploadedFile, error) {
	query := `SELECT ` + fileColumns + ` FROM uploaded_files
		WHERE owner_id = $1 ORDER BY uploaded_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []models.UploadedFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *Files) UpdateContent(ctx context.Context, ownerID, id uuid.UUID, u ContentUpdate) error {
	query := `UPDATE uploaded_files
		SET file_name = $3, file_size = $4, row_count = $5, status = $6
		WHERE owner_id = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query, ownerID, id, u.FileName, u.FileSize, u.RowCount, u.Status)
	if err != nil {
		return fmt.Errorf("failed to update file %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Files) Rename(ctx context.Context, ownerID, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE uploaded_files SET file_name = $3 WHERE owner_id = $1 AND id = $2`,
		ownerID, id, name,
	)
	if err != nil {
		return fmt.Errorf("failed to rename file %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Files) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM uploaded_files WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFile(row pgx.Row) (models.UploadedFile, error) {
	var f models.UploadedFile
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.FileName,
		&f.FilePath,
		&f.FileSize,
		&f.RowCount,
		&f.Status,
		&f.UploadedAt,
	)
	return f, err
}
