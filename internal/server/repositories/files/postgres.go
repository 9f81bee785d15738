package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/dbx"
	"github.com/dmitrijs2005/filehost/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, stored_name, display_name, storage_locator, size_bytes, mime_type, user_id,
		is_public, is_deleted, deleted_at, download_count, uploaded_at, updated_at, last_accessed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(s rowScanner) (*models.File, error) {
	var (
		f            models.File
		deletedAt    sql.NullTime
		lastAccessed sql.NullTime
	)
	err := s.Scan(&f.ID, &f.StoredName, &f.DisplayName, &f.StorageLocator, &f.SizeBytes, &f.MimeType, &f.OwnerID,
		&f.IsPublic, &f.IsDeleted, &deletedAt, &f.DownloadCount, &f.UploadedAt, &f.UpdatedAt, &lastAccessed)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		f.DeletedAt = &deletedAt.Time
	}
	if lastAccessed.Valid {
		f.LastAccessedAt = &lastAccessed.Time
	}
	return &f, nil
}

// Create inserts a new file row and fills in its id. The (user_id, stored_name)
// pair is unique; a duplicate surfaces as common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (stored_name, display_name, storage_locator, size_bytes, mime_type, user_id,
			is_public, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		file.StoredName, file.DisplayName, file.StorageLocator, file.SizeBytes, file.MimeType, file.OwnerID,
		file.IsPublic, file.UploadedAt, file.UpdatedAt).Scan(&file.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("stored name %q: %w", file.StoredName, common.ErrConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// GetByID returns the row with the given id, deleted or not.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// ListByOwner returns visible files of ownerID, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := make([]*models.File, 0, limit)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountByOwner counts visible files of ownerID.
func (r *PostgresRepository) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM files WHERE user_id = $1 AND is_deleted = FALSE`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, id int64, name string, now time.Time) error {
	query := `UPDATE files SET display_name = $1, updated_at = $2 WHERE id = $3 AND is_deleted = FALSE`
	return r.execOne(ctx, "failed to rename file", query, name, now, id)
}

// RecordDownload increments the download counter in place and returns the
// new value, so concurrent downloads never lose an increment.
func (r *PostgresRepository) RecordDownload(ctx context.Context, id int64, now time.Time) (int64, error) {
	query := `
		UPDATE files SET download_count = download_count + 1, last_accessed_at = $1
		WHERE id = $2 AND is_deleted = FALSE
		RETURNING download_count
	`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, now, id).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("failed to record download: %w", err)
	}
	return count, nil
}

// SoftDelete flags the row deleted. The first deletion time is kept.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	query := `UPDATE files SET is_deleted = TRUE, deleted_at = COALESCE(deleted_at, $1), updated_at = $1 WHERE id = $2`
	return r.execOne(ctx, "failed to delete file", query, now, id)
}

// execOne runs an update that must touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch ra {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
}
