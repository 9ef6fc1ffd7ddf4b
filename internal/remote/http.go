package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StatusError is returned when the server responds with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("server returned status %d", e.Code)
}

// HTTPClient talks JSON over HTTPS to the fieldscope backend with bearer
// token authentication. It implements Client.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client for the backend at baseURL.
// If httpClient is nil, a client with a 30 second timeout is used.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  httpClient,
	}
}

// CreateProject implements Client.CreateProject.
func (c *HTTPClient) CreateProject(ctx context.Context, req ProjectRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/projects", req, &resp); err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}
	return resp.ID, nil
}

// UpdateProject implements Client.UpdateProject.
func (c *HTTPClient) UpdateProject(ctx context.Context, remoteID string, req ProjectRequest) error {
	path := "/projects/" + url.PathEscape(remoteID)
	if err := c.doJSON(ctx, http.MethodPut, path, req, nil); err != nil {
		return fmt.Errorf("update project %s: %w", remoteID, err)
	}
	return nil
}

// DeleteProject implements Client.DeleteProject.
func (c *HTTPClient) DeleteProject(ctx context.Context, remoteID string) error {
	path := "/projects/" + url.PathEscape(remoteID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete project %s: %w", remoteID, err)
	}
	return nil
}

// CreateFolder implements Client.CreateFolder.
func (c *HTTPClient) CreateFolder(ctx context.Context, projectRemoteID, name string) (string, error) {
	path := "/projects/" + url.PathEscape(projectRemoteID) + "/folders"
	body := map[string]string{"name": name}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return resp.ID, nil
}

// GetUploadTarget implements Client.GetUploadTarget.
func (c *HTTPClient) GetUploadTarget(ctx context.Context, projectRemoteID, filename, contentType string) (*UploadTarget, error) {
	path := "/projects/" + url.PathEscape(projectRemoteID) + "/uploads"
	body := map[string]string{
		"filename":     filename,
		"content_type": contentType,
	}
	var target UploadTarget
	if err := c.doJSON(ctx, http.MethodPost, path, body, &target); err != nil {
		return nil, fmt.Errorf("get upload target: %w", err)
	}
	if target.UploadURL == "" || target.MediaURL == "" {
		return nil, fmt.Errorf("get upload target: server returned incomplete target")
	}
	return &target, nil
}

// UploadBytes implements Client.UploadBytes. The upload URL is presigned,
// so no bearer token is attached.
func (c *HTTPClient) UploadBytes(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload: %w", &StatusError{Code: resp.StatusCode})
	}
	return nil
}

// CreatePhoto implements Client.CreatePhoto.
func (c *HTTPClient) CreatePhoto(ctx context.Context, req PhotoRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/photos", req, &resp); err != nil {
		return "", fmt.Errorf("create photo: %w", err)
	}
	return resp.ID, nil
}

// CreateComment implements Client.CreateComment.
func (c *HTTPClient) CreateComment(ctx context.Context, photoRemoteID, text string) (string, error) {
	path := "/photos/" + url.PathEscape(photoRemoteID) + "/comments"
	body := map[string]string{"text": text}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", fmt.Errorf("create comment: %w", err)
	}
	return resp.ID, nil
}

// CreateShareLink implements Client.CreateShareLink.
func (c *HTTPClient) CreateShareLink(ctx context.Context, projectRemoteID string, expiresAt *time.Time) (*ShareLinkDTO, error) {
	path := "/projects/" + url.PathEscape(projectRemoteID) + "/share-links"
	body := map[string]any{}
	if expiresAt != nil {
		body["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
	}
	var link ShareLinkDTO
	if err := c.doJSON(ctx, http.MethodPost, path, body, &link); err != nil {
		return nil, fmt.Errorf("create share link: %w", err)
	}
	return &link, nil
}

// GetProjects implements Client.GetProjects.
func (c *HTTPClient) GetProjects(ctx context.Context) ([]ProjectDTO, error) {
	var projects []ProjectDTO
	if err := c.doJSON(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, fmt.Errorf("get projects: %w", err)
	}
	return projects, nil
}

// GetPhotos implements Client.GetPhotos.
func (c *HTTPClient) GetPhotos(ctx context.Context, projectRemoteID string, page, limit int) (*PhotoPage, error) {
	path := "/projects/" + url.PathEscape(projectRemoteID) + "/photos" +
		"?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	var result PhotoPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("get photos: %w", err)
	}
	return &result, nil
}

// doJSON performs a request against the backend, encoding body as JSON if
// non-nil and decoding the response into out if non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Truncated body for the error message; server errors can be huge.
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
