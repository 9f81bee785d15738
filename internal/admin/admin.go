// Package admin implements the operator commands: applying migrations and
// creating accounts without going through the public signup route.
package admin

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/config"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filehost/internal/server/services"
)

const usage = "usage: admin <migrate|create-user> [flags]"

// Seams for tests.
var (
	openDB         = repomanager.Open
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	users  *services.UserService
	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the database described by cfg. Prompts are read from in and
// written to out.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	return &App{
		db:     db,
		rm:     rm,
		users:  services.NewUserService(db, rm, cfg, logging.Nop()),
		reader: bufio.NewReader(in),
		out:    out,
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}

// Run executes one command.
func (a *App) Run(ctx context.Context, command string) error {
	switch command {
	case "migrate":
		return a.Migrate(ctx)
	case "create-user":
		return a.CreateUser(ctx)
	default:
		return fmt.Errorf("unknown command %q; %s", command, usage)
	}
}

// Migrate applies all pending migrations.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.rm.RunMigrations(ctx, a.db); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Database upgraded")
	return nil
}

// CreateUser prompts for a username, email and password and registers an
// active account with the same rules as signup.
func (a *App) CreateUser(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(password)

	res, err := a.users.Signup(ctx, username, email, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "User %s created with id %d\n", res.User.Username, res.User.ID)
	return nil
}

// Usage returns the command synopsis.
func Usage() string {
	return usage
}
