package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filehost/internal/server/models"
)

// Repository is the file metadata store. Lookups by id return soft-deleted
// rows too, so callers can tell "deleted" from "foreign"; listings and counts
// only see visible rows.
type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id int64) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]*models.File, error)
	CountByOwner(ctx context.Context, ownerID int64) (int64, error)
	UpdateDisplayName(ctx context.Context, id int64, name string, now time.Time) error
	RecordDownload(ctx context.Context, id int64, now time.Time) (int64, error)
	SoftDelete(ctx context.Context, id int64, now time.Time) error
}
