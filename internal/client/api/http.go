package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/common"
)

// HTTPClient implements Client over the server's JSON API. Requests carry a
// bearer token and the originating device id; the server uses the device id
// to suppress self-echo on the live channel.
type HTTPClient struct {
	baseURL  string
	token    string
	deviceID string
	hc       *http.Client
}

// NewHTTPClient builds a client for baseURL (e.g. "http://127.0.0.1:8090").
// timeout bounds every request; timeouts feed the same retry/backoff path as
// other transient failures.
func NewHTTPClient(baseURL, token, deviceID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		token:    token,
		deviceID: deviceID,
		hc:       &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) FetchDocuments(ctx context.Context, since *time.Time) (*DocumentsPage, error) {
	var page DocumentsPage
	if err := c.getJSON(ctx, "/api/sync/documents", since, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) FetchFolders(ctx context.Context, since *time.Time) (*FoldersPage, error) {
	var page FoldersPage
	if err := c.getJSON(ctx, "/api/sync/folders", since, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) UpsertDocument(ctx context.Context, doc *models.Document) (*models.Document, error) {
	var canonical models.Document
	if err := c.putJSON(ctx, "/api/sync/documents/"+url.PathEscape(doc.ID), models.EntityTypeDocument, doc.ID, doc, &canonical); err != nil {
		return nil, err
	}
	return &canonical, nil
}

func (c *HTTPClient) UpsertFolder(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	var canonical models.Folder
	if err := c.putJSON(ctx, "/api/sync/folders/"+url.PathEscape(folder.ID), models.EntityTypeFolder, folder.ID, folder, &canonical); err != nil {
		return nil, err
	}
	return &canonical, nil
}

func (c *HTTPClient) DeleteDocument(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/sync/documents/"+url.PathEscape(id))
}

func (c *HTTPClient) DeleteFolder(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/sync/folders/"+url.PathEscape(id))
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{Op: "ping", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &NetworkError{Op: "ping", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Device-Id", c.deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, since *time.Time, out any) error {
	if since != nil {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) putJSON(ctx context.Context, path string, entityType models.EntityType, entityID string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{Op: "upsert", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return decodeConflict(resp.Body, entityType, entityID)
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode canonical entity: %w", err)
	}
	return nil
}

func (c *HTTPClient) delete(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{Op: "delete", Err: err}
	}
	defer resp.Body.Close()

	// Deleting an already-deleted entity is not an error.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp, http.StatusNoContent)
}

// conflictBody is the 409 response: the current server entity plus its
// sync metadata.
type conflictBody struct {
	Entity      json.RawMessage `json:"entity"`
	SyncVersion int64           `json:"sync_version"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func decodeConflict(body io.Reader, entityType models.EntityType, entityID string) error {
	var cb conflictBody
	if err := json.NewDecoder(body).Decode(&cb); err != nil {
		return fmt.Errorf("failed to decode conflict response: %w", err)
	}
	return &VersionConflictError{
		EntityType:      entityType,
		EntityID:        entityID,
		ServerVersion:   cb.SyncVersion,
		ServerUpdatedAt: cb.UpdatedAt,
		ServerPayload:   cb.Entity,
	}
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrValidation, string(b))
	case http.StatusUnauthorized:
		return common.ErrUnauthorized
	default:
		return &NetworkError{Op: "request", Err: fmt.Errorf("unexpected status %s: %s", resp.Status, string(b))}
	}
}
