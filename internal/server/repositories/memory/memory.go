// Package memory is an in-process RepositoryManager. It keeps all rows in
// maps guarded by one mutex and ignores the DBTX it is handed, so it is
// meant for tests and local experiments, not for production.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/dbx"
	"github.com/dmitrijs2005/filehost/internal/server/models"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/files"
	"github.com/dmitrijs2005/filehost/internal/server/repositories/users"
)

type Manager struct {
	mu     sync.Mutex
	users  map[int64]models.User
	files  map[int64]models.File
	nextID int64
	now    func() time.Time

	// FailFiles, when set, is returned by every files repository call.
	FailFiles error
}

func NewManager() *Manager {
	return &Manager{
		users: make(map[int64]models.User),
		files: make(map[int64]models.File),
		now:   time.Now,
	}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Users(dbx.DBTX) users.Repository { return userRepo{m} }

func (m *Manager) Files(dbx.DBTX) files.Repository { return fileRepo{m} }

func (m *Manager) id() int64 {
	m.nextID++
	return m.nextID
}

// File returns a copy of the stored row, including soft-deleted ones.
func (m *Manager) File(id int64) (models.File, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	return f, ok
}

type userRepo struct{ m *Manager }

func (r userRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, other := range r.m.users {
		if other.Username == u.Username || other.Email == u.Email {
			return nil, common.ErrConflict
		}
	}
	u.ID = r.m.id()
	u.CreatedAt = r.m.now()
	u.UpdatedAt = u.CreatedAt
	r.m.users[u.ID] = *u
	return u, nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r userRepo) Update(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[u.ID]; !ok {
		return common.ErrNotFound
	}
	for id, other := range r.m.users {
		if id != u.ID && other.Username == u.Username {
			return common.ErrConflict
		}
	}
	r.m.users[u.ID] = *u
	return nil
}

type fileRepo struct{ m *Manager }

func (r fileRepo) Create(_ context.Context, f *models.File) (*models.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.FailFiles != nil {
		return nil, r.m.FailFiles
	}
	for _, other := range r.m.files {
		if other.OwnerID == f.OwnerID && other.StoredName == f.StoredName {
			return nil, common.ErrConflict
		}
	}
	f.ID = r.m.id()
	r.m.files[f.ID] = *f
	return f, nil
}

func (r fileRepo) GetByID(_ context.Context, id int64) (*models.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.FailFiles != nil {
		return nil, r.m.FailFiles
	}
	f, ok := r.m.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &f, nil
}

func (r fileRepo) visible(ownerID int64) []models.File {
	var out []models.File
	for _, f := range r.m.files {
		if f.OwnerID == ownerID && !f.IsDeleted {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r fileRepo) ListByOwner(_ context.Context, ownerID int64, limit, offset int) ([]*models.File, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.FailFiles != nil {
		return nil, r.m.FailFiles
	}
	all := r.visible(ownerID)
	result := make([]*models.File, 0, limit)
	for i := offset; i < len(all) && len(result) < limit; i++ {
		f := all[i]
		result = append(result, &f)
	}
	return result, nil
}

func (r fileRepo) CountByOwner(_ context.Context, ownerID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.FailFiles != nil {
		return 0, r.m.FailFiles
	}
	return int64(len(r.visible(ownerID))), nil
}

func (r fileRepo) update(id int64, fn func(f *models.File)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.FailFiles != nil {
		return r.m.FailFiles
	}
	f, ok := r.m.files[id]
	if !ok || f.IsDeleted {
		return common.ErrNotFound
	}
	fn(&f)
	r.m.files[id] = f
	return nil
}

func (r fileRepo) UpdateDisplayName(_ context.Context, id int64, name string, now time.Time) error {
	return r.update(id, func(f *models.File) { f.Rename(name, now) })
}

func (r fileRepo) RecordDownload(_ context.Context, id int64, now time.Time) (int64, error) {
	var count int64
	err := r.update(id, func(f *models.File) {
		f.MarkDownloaded(now)
		count = f.DownloadCount
	})
	return count, err
}

func (r fileRepo) SoftDelete(_ context.Context, id int64, now time.Time) error {
	return r.update(id, func(f *models.File) { f.SoftDelete(now) })
}

// SeedUser stores u directly, bypassing validation.
func (m *Manager) SeedUser(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.ID = m.id()
	if u.Email == "" {
		u.Email = strings.ToLower(u.Username) + "@example.com"
	}
	m.users[u.ID] = u
	return &u
}
