// Package services contains server-side business logic: the file lifecycle
// (FileService) and account management (UserService).
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/dbx"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/metrics"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/files"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filehost/internal/server/storage"
)

// MaxPageSize caps List regardless of the requested size.
const MaxPageSize = 100

const uniqueNameTimeLayout = "20060102_150405"

// FileServiceConfig holds the upload and listing limits.
type FileServiceConfig struct {
	// AllowedExtensions are lower-case, without dot. Empty accepts any.
	AllowedExtensions []string
	MaxFileSize       int64
	DefaultPageSize   int
}

// FileService is the only component that combines ownership checks,
// soft-delete visibility and storage backend calls.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	backend     storage.Backend
	cfg         FileServiceConfig
	logger      logging.Logger
	now         func() time.Time
}

// NewFileService wires a FileService. A nil clock means time.Now.
func NewFileService(db *sql.DB, repomanager repomanager.RepositoryManager, backend storage.Backend,
	cfg FileServiceConfig, logger logging.Logger, clock func() time.Time) *FileService {
	if clock == nil {
		clock = time.Now
	}
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 10
	}
	return &FileService{
		db:          db,
		repomanager: repomanager,
		backend:     backend,
		cfg:         cfg,
		logger:      logger.With("module", "files"),
		now:         clock,
	}
}

// Download is the result of a successful download request. Plan is either
// storage.DirectBytes, whose Body the caller must close, or storage.RedirectURL.
type Download struct {
	File models.FileView
	Plan storage.FetchPlan
}

func (s *FileService) allowed(name string) bool {
	if len(s.cfg.AllowedExtensions) == 0 {
		return true
	}
	ext := extension(name)
	return ext != "" && slices.Contains(s.cfg.AllowedExtensions, ext)
}

// Upload stores src for ownerID and records its metadata. Bytes are written
// first; no row is created when the write fails. A metadata failure after a
// successful write leaves an orphaned object, which is logged.
func (s *FileService) Upload(ctx context.Context, ownerID int64, originalName, mimeType string, contentLength int64, src io.Reader) (*models.FileView, error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, fmt.Errorf("%w: no file selected", common.ErrValidation)
	}
	if !s.allowed(originalName) {
		return nil, fmt.Errorf("%w: file type not allowed", common.ErrValidation)
	}
	if s.cfg.MaxFileSize > 0 && contentLength > s.cfg.MaxFileSize {
		return nil, common.ErrTooLarge
	}

	sanitized := SecureFilename(originalName)
	if sanitized == "" {
		return nil, fmt.Errorf("%w: invalid filename", common.ErrValidation)
	}
	// Sanitizing can strip the extension ("..pdf" becomes "pdf").
	if !s.allowed(sanitized) {
		return nil, fmt.Errorf("%w: file type not allowed", common.ErrValidation)
	}
	if mimeType == "" {
		mimeType = common.DefaultMimeType
	}

	now := s.now().UTC()
	uniqueName := fmt.Sprintf("%d_%s_%s", ownerID, now.Format(uniqueNameTimeLayout), sanitized)

	body := &countingReader{r: src, limit: s.cfg.MaxFileSize}
	locator, err := s.backend.Put(ctx, ownerID, uniqueName, body, contentLength, mimeType)
	metrics.RecordUpload(body.n, err == nil)
	if err != nil {
		if errors.Is(err, common.ErrTooLarge) {
			return nil, common.ErrTooLarge
		}
		s.logger.Error(ctx, "storage write failed", "owner_id", ownerID, "stored_name", uniqueName, "error", err)
		if !errors.Is(err, common.ErrStorageWrite) {
			err = fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
		}
		return nil, err
	}

	file := &models.File{
		StoredName:     uniqueName,
		DisplayName:    sanitized,
		StorageLocator: locator,
		SizeBytes:      body.n,
		MimeType:       mimeType,
		OwnerID:        ownerID,
		UploadedAt:     now,
		UpdatedAt:      now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.repomanager.Files(tx).Create(ctx, file)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "metadata write failed, object orphaned", "locator", locator, "error", err)
		return nil, fmt.Errorf("%w: save file metadata: %w", common.ErrInternal, err)
	}

	s.logger.Info(ctx, "file uploaded", "file_id", file.ID, "owner_id", ownerID, "size", file.SizeBytes)
	view := file.View()
	return &view, nil
}

// List returns one page of ownerID's visible files, newest first. page < 1
// means 1; size < 1 means the default; size is capped at MaxPageSize.
func (s *FileService) List(ctx context.Context, ownerID int64, page, size int) (*models.FilePage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = s.cfg.DefaultPageSize
	}
	size = min(size, MaxPageSize)

	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.FilePage, error) {
		repo := s.repomanager.Files(tx)

		total, err := repo.CountByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		rows, err := repo.ListByOwner(ctx, ownerID, size, (page-1)*size)
		if err != nil {
			return nil, err
		}

		views := make([]models.FileView, 0, len(rows))
		for _, f := range rows {
			views = append(views, f.View())
		}
		return &models.FilePage{Files: views, Pagination: models.NewPagination(page, size, total)}, nil
	})
}

// loadOwned fetches a file for ownerID. Missing and soft-deleted files are
// common.ErrNotFound; files of other users are common.ErrForbidden.
func loadOwned(ctx context.Context, repo files.Repository, ownerID, fileID int64) (*models.File, error) {
	f, err := repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.Visible() {
		return nil, common.ErrNotFound
	}
	if !f.OwnedBy(ownerID) {
		return nil, common.ErrForbidden
	}
	return f, nil
}

func (s *FileService) Get(ctx context.Context, ownerID, fileID int64) (*models.FileView, error) {
	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.FileView, error) {
		f, err := loadOwned(ctx, s.repomanager.Files(tx), ownerID, fileID)
		if err != nil {
			return nil, err
		}
		view := f.View()
		return &view, nil
	})
}

// Download resolves how to serve a file and counts the download before
// returning, so the counter reflects attempted serving.
func (s *FileService) Download(ctx context.Context, ownerID, fileID int64) (*Download, error) {
	var plan storage.FetchPlan

	result, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*Download, error) {
		repo := s.repomanager.Files(tx)

		f, err := loadOwned(ctx, repo, ownerID, fileID)
		if err != nil {
			return nil, err
		}

		plan, err = s.backend.FetchPlan(ctx, f.StorageLocator, storage.ObjectInfo{Filename: f.DisplayName, ContentType: f.MimeType})
		if err != nil {
			return nil, err
		}

		now := s.now().UTC()
		count, err := repo.RecordDownload(ctx, f.ID, now)
		if err != nil {
			return nil, err
		}
		f.MarkDownloaded(now)
		f.DownloadCount = count

		return &Download{File: f.View(), Plan: plan}, nil
	})
	if err != nil {
		closePlan(plan)
		return nil, err
	}

	s.logger.Debug(ctx, "download served", "file_id", fileID, "plan", planKind(result.Plan))
	metrics.RecordDownload(planKind(result.Plan))
	return result, nil
}

func closePlan(plan storage.FetchPlan) {
	if direct, ok := plan.(storage.DirectBytes); ok && direct.Body != nil {
		_ = direct.Body.Close()
	}
}

func planKind(plan storage.FetchPlan) string {
	switch plan.(type) {
	case storage.DirectBytes:
		return "direct"
	case storage.RedirectURL:
		return "redirect"
	default:
		return "unknown"
	}
}

// Rename changes the display name only; the stored name and locator stay.
func (s *FileService) Rename(ctx context.Context, ownerID, fileID int64, newName string) (*models.FileView, error) {
	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.FileView, error) {
		repo := s.repomanager.Files(tx)

		f, err := loadOwned(ctx, repo, ownerID, fileID)
		if err != nil {
			return nil, err
		}

		newName = strings.TrimSpace(newName)
		if newName == "" {
			return nil, fmt.Errorf("%w: filename cannot be empty", common.ErrValidation)
		}
		sanitized := SecureFilename(newName)
		if sanitized == "" {
			return nil, fmt.Errorf("%w: invalid filename", common.ErrValidation)
		}

		now := s.now().UTC()
		if err := repo.UpdateDisplayName(ctx, f.ID, sanitized, now); err != nil {
			return nil, err
		}
		f.Rename(sanitized, now)

		view := f.View()
		return &view, nil
	})
}

// SoftDelete hides a file. Its bytes are left in place.
func (s *FileService) SoftDelete(ctx context.Context, ownerID, fileID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Files(tx)

		f, err := loadOwned(ctx, repo, ownerID, fileID)
		if err != nil {
			return err
		}
		return repo.SoftDelete(ctx, f.ID, s.now().UTC())
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "file deleted", "file_id", fileID, "owner_id", ownerID)
	return nil
}

// countingReader counts bytes and fails with common.ErrTooLarge once more
// than limit bytes have been read. limit <= 0 disables the check.
type countingReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.limit > 0 && c.n > c.limit {
		return n, common.ErrTooLarge
	}
	return n, err
}
