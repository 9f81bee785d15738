package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/repomanager"
)

// Resolver turns a bearer credential into the acting user.
type Resolver struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	secretKey   []byte
	logger      logging.Logger
}

func NewResolver(db *sql.DB, repomanager repomanager.RepositoryManager, secretKey []byte, logger logging.Logger) *Resolver {
	return &Resolver{
		db:          db,
		repomanager: repomanager,
		secretKey:   secretKey,
		logger:      logger.With("module", "auth"),
	}
}

// Resolve returns the active user the credential belongs to. The credential
// is an Authorization header value and must use the Bearer scheme. Every
// kind of failure to identify a user is reported as
// common.ErrUnauthenticated; only store outages are returned as other errors.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*models.User, error) {
	credential, ok := strings.CutPrefix(credential, common.BearerPrefix)
	if !ok {
		return nil, common.ErrUnauthenticated
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, common.ErrUnauthenticated
	}

	userID, err := GetUserIDFromToken(credential, r.secretKey)
	if err != nil {
		r.logger.Debug(ctx, "token rejected", "error", err)
		return nil, common.ErrUnauthenticated
	}

	user, err := r.repomanager.Users(r.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrUnauthenticated
	}

	return user, nil
}
