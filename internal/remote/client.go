// Package remote defines the client for the fieldscope REST backend.
//
// The backend is treated as a black box: the sync engine only depends on
// the Client interface, which the HTTP implementation in this package
// satisfies. Tests substitute fakes.
package remote

import (
	"context"
	"time"
)

// FolderDTO is a folder as the server reports it, nested in ProjectDTO.
type FolderDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectDTO is a project as the server reports it.
type ProjectDTO struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Address     string      `json:"address,omitempty"`
	Folders     []FolderDTO `json:"folders,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// PhotoDTO is a photo as the server reports it.
type PhotoDTO struct {
	ID           string    `json:"id"`
	FolderID     string    `json:"folder_id,omitempty"`
	MediaURL     string    `json:"media_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	MediaType    string    `json:"media_type"`
	CapturedAt   time.Time `json:"captured_at"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Note         string    `json:"note,omitempty"`
}

// PhotoPage is one page of a project's photos.
type PhotoPage struct {
	Data    []PhotoDTO `json:"data"`
	HasMore bool       `json:"has_more"`
}

// UploadTarget holds the presigned URLs for a media upload.
type UploadTarget struct {
	UploadURL          string `json:"upload_url"`
	MediaURL           string `json:"media_url"`
	ThumbnailUploadURL string `json:"thumbnail_upload_url,omitempty"`
	ThumbnailURL       string `json:"thumbnail_url,omitempty"`
}

// ProjectRequest is the payload for creating or updating a project.
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
}

// PhotoRequest is the payload for creating a remote photo record.
// MediaURL must already point at uploaded bytes.
type PhotoRequest struct {
	ProjectID    string    `json:"project_id"`
	FolderID     string    `json:"folder_id,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	MediaType    string    `json:"media_type"`
	MediaURL     string    `json:"media_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Note         string    `json:"note,omitempty"`
}

// ShareLinkDTO is a share link as the server reports it.
type ShareLinkDTO struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Client is the remote operation surface the sync engine consumes.
//
// All methods return the server-assigned identifier where one is created.
// Implementations must treat a non-2xx response as an error; the engine
// handles classification and retries.
type Client interface {
	CreateProject(ctx context.Context, req ProjectRequest) (string, error)
	UpdateProject(ctx context.Context, remoteID string, req ProjectRequest) error
	DeleteProject(ctx context.Context, remoteID string) error

	CreateFolder(ctx context.Context, projectRemoteID, name string) (string, error)

	GetUploadTarget(ctx context.Context, projectRemoteID, filename, contentType string) (*UploadTarget, error)
	UploadBytes(ctx context.Context, uploadURL string, data []byte, contentType string) error
	CreatePhoto(ctx context.Context, req PhotoRequest) (string, error)

	CreateComment(ctx context.Context, photoRemoteID, text string) (string, error)

	CreateShareLink(ctx context.Context, projectRemoteID string, expiresAt *time.Time) (*ShareLinkDTO, error)

	GetProjects(ctx context.Context) ([]ProjectDTO, error)
	GetPhotos(ctx context.Context, projectRemoteID string, page, limit int) (*PhotoPage, error)
}
