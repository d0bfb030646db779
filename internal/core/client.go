package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Asset mirrors the server's staged-asset response.
type Asset struct {
	ID          string `json:"id"`
	SourceURL   string `json:"sourceUrl"`
	DownloadURL string `json:"downloadUrl"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	Provider    string `json:"provider"`
	Kind        string `json:"type"`
}

// SubmitResponse is the server's answer to a post-URL submission.
type SubmitResponse struct {
	OK        bool    `json:"ok"`
	Assets    []Asset `json:"assets"`
	SessionID string  `json:"sessionId"`
	Message   string  `json:"message"`
}

type bundleResponse struct {
	OK      bool   `json:"ok"`
	ZipURL  string `json:"zipUrl"`
	Message string `json:"message"`
}

// Client talks to a snapfetch server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// Submit asks the server to fetch the post's media into a new session.
func (c *Client) Submit(ctx context.Context, postURL string) (*SubmitResponse, error) {
	body, err := json.Marshal(map[string]string{"url": postURL})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode server response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, result.Message)
	}
	return &result, nil
}

// RequestBundle asks the server to zip the given assets and returns the
// bundle's download URL path.
func (c *Client) RequestBundle(ctx context.Context, assets []Asset, sessionID string) (string, error) {
	refs := make([]map[string]string, 0, len(assets))
	for _, a := range assets {
		refs = append(refs, map[string]string{"downloadUrl": a.DownloadURL})
	}

	body, err := json.Marshal(map[string]any{"assets": refs, "sessionId": sessionID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/download-all", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result bundleResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode server response: %w", err)
	}
	if !result.OK {
		return "", fmt.Errorf("server error (%d): %s", resp.StatusCode, result.Message)
	}
	return result.ZipURL, nil
}

// Download fetches a staged file by its download path into destDir.
// Returns the local path written.
func (c *Client) Download(ctx context.Context, downloadURL, filename, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+downloadURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	destPath := filepath.Join(destDir, filename)
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("failed to write %s: %w", destPath, err)
	}

	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return "", err
	}
	return destPath, nil
}
