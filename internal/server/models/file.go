// Package models defines server-side data models persisted in the database.
package models

import "time"

// File is the metadata record of one uploaded object. StoredName and
// StorageLocator are fixed at creation; only DisplayName is user mutable.
// The locator is meaningful only to the storage backend that produced it.
type File struct {
	ID             int64
	StoredName     string
	DisplayName    string
	StorageLocator string
	SizeBytes      int64
	MimeType       string
	OwnerID        int64
	IsPublic       bool
	IsDeleted      bool
	DeletedAt      *time.Time
	DownloadCount  int64
	UploadedAt     time.Time
	UpdatedAt      time.Time
	LastAccessedAt *time.Time
}

// Visible reports whether the file may be returned by read operations.
func (f *File) Visible() bool {
	return !f.IsDeleted
}

func (f *File) OwnedBy(userID int64) bool {
	return f.OwnerID == userID
}

// Rename changes the display name. The stored name and locator never change.
func (f *File) Rename(name string, now time.Time) {
	f.DisplayName = name
	f.UpdatedAt = now
}

// MarkDownloaded records one served download.
func (f *File) MarkDownloaded(now time.Time) {
	f.DownloadCount++
	t := now
	f.LastAccessedAt = &t
}

// SoftDelete hides the file from reads. A second call keeps the first
// deletion time.
func (f *File) SoftDelete(now time.Time) {
	if f.IsDeleted && f.DeletedAt != nil {
		return
	}
	t := now
	f.IsDeleted = true
	f.DeletedAt = &t
	f.UpdatedAt = now
}

// FileView is the public projection of a File.
type FileView struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	SizeBytes     int64     `json:"size"`
	MimeType      string    `json:"mime_type"`
	UploadedAt    time.Time `json:"uploaded_at"`
	DownloadCount int64     `json:"download_count"`
}

func (f *File) View() FileView {
	return FileView{
		ID:            f.ID,
		Filename:      f.DisplayName,
		SizeBytes:     f.SizeBytes,
		MimeType:      f.MimeType,
		UploadedAt:    f.UploadedAt,
		DownloadCount: f.DownloadCount,
	}
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// NewPagination computes page metadata for total items split into pages of
// size. size must be positive.
func NewPagination(page, size int, total int64) Pagination {
	pages := int((total + int64(size) - 1) / int64(size))
	return Pagination{
		Page:    page,
		Size:    size,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// FilePage is one page of a user's files.
type FilePage struct {
	Files      []FileView `json:"files"`
	Pagination Pagination `json:"pagination"`
}
