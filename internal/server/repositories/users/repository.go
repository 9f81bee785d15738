package users

import (
	"context"

	"github.com/dmitrijs2005/filehost/internal/server/models"
)

// Repository persists user accounts. Lookups return common.ErrNotFound when
// no row matches; unique violations surface as common.ErrConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}
