package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/dbx"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/auth"
	"github.com/dmitrijs2005/filehost/internal/server/config"
	"github.com/dmitrijs2005/filehost/internal/server/metrics"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

// bcryptCost is lowered in tests.
var bcryptCost = bcrypt.DefaultCost

// AuthResult is a user together with a freshly issued access token.
type AuthResult struct {
	User  *models.User
	Token string
}

// UserService handles registration, login and profile changes.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger
	now                         func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		logger:                      logger.With("module", "users"),
		now:                         time.Now,
	}
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) < minUsernameLength {
		return fmt.Errorf("%w: username must be at least %d characters long", common.ErrValidation, minUsernameLength)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", common.ErrValidation, minPasswordLength)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password is too long", common.ErrValidation)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Signup registers a user. The email is trimmed and lower-cased; a taken
// username or email yields common.ErrConflict.
func (s *UserService) Signup(ctx context.Context, username, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return nil, fmt.Errorf("%w: invalid email format", common.ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		return s.repomanager.Users(tx).Create(ctx, &models.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			IsActive:     true,
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: user with this email or username already exists", common.ErrConflict)
		}
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return s.issue(user)
}

// Login checks the email and password. Unknown email, wrong password and
// inactive accounts all yield common.ErrUnauthenticated.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	ok := err == nil && user.IsActive &&
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	metrics.RecordAuthAttempt(ok)
	if !ok {
		return nil, fmt.Errorf("%w: invalid email or password", common.ErrUnauthenticated)
	}

	return s.issue(user)
}

// Profile returns the public view of user.
func (s *UserService) Profile(user *models.User) models.UserView {
	return user.View()
}

// UpdateProfile changes the username and/or password of user. nil leaves a
// field unchanged.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, username, password *string) (*models.User, error) {
	updated := *user

	if username != nil {
		name := strings.TrimSpace(*username)
		if err := validateUsername(name); err != nil {
			return nil, err
		}
		updated.Username = name
	}
	if password != nil {
		hash, err := hashPassword(*password)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
	}
	updated.UpdatedAt = s.now().UTC()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Update(ctx, &updated)
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: username already exists", common.ErrConflict)
		}
		return nil, err
	}

	return &updated, nil
}
