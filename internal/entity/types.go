package entity

import (
	"fmt"
	"time"
)

// Project is the top-level container for field documentation.
type Project struct {
	ID       string
	RemoteID string

	Name        string
	Description string
	Address     string

	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the project has valid field values.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(p.Name))
	}
	return nil
}

// Folder groups photos inside a project. A folder may exist locally before
// its project has a remote ID; the folder synchronizer waits for the parent.
type Folder struct {
	ID       string
	RemoteID string

	ProjectID string
	Name      string

	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the folder has valid field values.
func (f *Folder) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Photo is a captured media item. LocalPath points at the media bytes on
// disk; RemoteURL and ThumbnailURL are filled in during upload. A non-empty
// RemoteURL with an empty RemoteID means the upload phase completed but the
// remote record wasn't created yet, and a retry resumes from there.
type Photo struct {
	ID       string
	RemoteID string

	ProjectID string
	FolderID  string // optional

	LocalPath    string
	RemoteURL    string
	ThumbnailURL string
	MediaType    string // e.g. image/jpeg, video/mp4

	CapturedAt time.Time
	Latitude   float64
	Longitude  float64
	Note       string

	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the photo has valid field values.
func (p *Photo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.LocalPath == "" && p.RemoteURL == "" {
		return fmt.Errorf("photo needs a local path or a remote url")
	}
	if p.MediaType == "" {
		return fmt.Errorf("media type is required")
	}
	return nil
}

// Comment is a text annotation on a photo.
type Comment struct {
	ID       string
	RemoteID string

	PhotoID string
	Text    string
	Author  string

	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the comment has valid field values.
func (c *Comment) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.PhotoID == "" {
		return fmt.Errorf("photo id is required")
	}
	if c.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// ShareLink is a shareable URL for a project. Share links are created
// synchronously against the remote service at user-action time, so their
// outbox synchronizer is a deliberate no-op.
type ShareLink struct {
	ID       string
	RemoteID string

	ProjectID string
	URL       string
	ExpiresAt *time.Time

	SyncStatus SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the share link has valid field values.
func (s *ShareLink) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	return nil
}
