// Package client provides a Go client for the fitplan HTTP API and event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/fitplan/internal/models"
)

// Client talks to a fitplan server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client.
// If baseURL is empty, uses FITPLAN_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via FITPLAN_CLIENT_TIMEOUT env var (default 10m for large uploads).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("FITPLAN_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("FITPLAN_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a structured error response from the server.
type APIError struct {
	Status   int    `json:"-"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("server error: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// UploadResponse is returned by Upload.
type UploadResponse struct {
	UploadID   string              `json:"uploadId"`
	Files      []models.FileRecord `json:"files"`
	TotalBytes int64               `json:"totalBytes"`
}

// GenerateResponse acknowledges an accepted generation job.
type GenerateResponse struct {
	JobID  string                  `json:"jobId"`
	Status models.GenerationStatus `json:"status"`
}

func (c *Client) do(req *http.Request, want int, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != want {
		var wrapped struct {
			Error APIError `json:"error"`
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error.Message != "" {
			apiErr.Category = wrapped.Error.Category
			apiErr.Message = wrapped.Error.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, http.StatusOK, result)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, want int, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, want, result)
}

// Upload sends files as one multipart upload. The body length is computed
// up front so the server can report percent progress. An empty uploadID
// lets the server choose one.
func (c *Client) Upload(ctx context.Context, uploadID string, paths []string, metadata map[string]string) (*UploadResponse, error) {
	body, size, closeFiles, err := multipartStream(paths, metadata)
	if err != nil {
		return nil, err
	}
	defer closeFiles()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", body.reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", body.contentType)
	if uploadID != "" {
		req.Header.Set("X-Upload-Id", uploadID)
	}

	var resp UploadResponse
	if err := c.do(req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type streamBody struct {
	reader      io.Reader
	contentType string
}

// multipartStream lays out a multipart body as a chain of readers so files
// are streamed from disk rather than buffered.
func multipartStream(paths []string, metadata map[string]string) (streamBody, int64, func(), error) {
	var (
		head    bytes.Buffer
		readers []io.Reader
		files   []*os.File
		size    int64
	)
	closeFiles := func() {
		for _, f := range files {
			f.Close()
		}
	}
	flush := func() {
		chunk := bytes.Clone(head.Bytes())
		readers = append(readers, bytes.NewReader(chunk))
		size += int64(len(chunk))
		head.Reset()
	}

	mw := multipart.NewWriter(&head)
	for k, v := range metadata {
		if err := mw.WriteField(k, v); err != nil {
			return streamBody{}, 0, closeFiles, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeFiles()
			return streamBody{}, 0, func() {}, fmt.Errorf("open %s: %w", path, err)
		}
		files = append(files, f)
		info, err := f.Stat()
		if err != nil {
			closeFiles()
			return streamBody{}, 0, func() {}, fmt.Errorf("stat %s: %w", path, err)
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, filepath.Base(path)))
		h.Set("Content-Type", contentTypeFor(path))
		if _, err := mw.CreatePart(h); err != nil {
			closeFiles()
			return streamBody{}, 0, func() {}, fmt.Errorf("write part header: %w", err)
		}
		flush()
		readers = append(readers, f)
		size += info.Size()
	}

	if err := mw.Close(); err != nil {
		closeFiles()
		return streamBody{}, 0, func() {}, fmt.Errorf("close multipart: %w", err)
	}
	flush()

	return streamBody{reader: io.MultiReader(readers...), contentType: mw.FormDataContentType()}, size, closeFiles, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt", ".text":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// UploadStatus returns the upload session.
func (c *Client) UploadStatus(ctx context.Context, uploadID string) (*models.UploadJob, error) {
	var job models.UploadJob
	if err := c.getJSON(ctx, "/api/uploads/"+url.PathEscape(uploadID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Files returns the file records of an upload.
func (c *Client) Files(ctx context.Context, uploadID string) (*models.FileBatch, error) {
	var batch models.FileBatch
	if err := c.getJSON(ctx, "/api/uploads/"+url.PathEscape(uploadID)+"/files", &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Process starts ingestion of an upload.
func (c *Client) Process(ctx context.Context, uploadID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := c.postJSON(ctx, "/api/uploads/"+url.PathEscape(uploadID)+"/process", struct{}{}, http.StatusAccepted, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ProcessingStatus returns the latest ingestion run of an upload.
func (c *Client) ProcessingStatus(ctx context.Context, uploadID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := c.getJSON(ctx, "/api/uploads/"+url.PathEscape(uploadID)+"/processing", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Generate requests a workout plan.
func (c *Client) Generate(ctx context.Context, req models.PlanRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.postJSON(ctx, "/api/plans/generate", req, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerationJob returns a generation job snapshot.
func (c *Client) GenerationJob(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := c.getJSON(ctx, "/api/plans/jobs/"+url.PathEscape(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Plan returns a persisted plan.
func (c *Client) Plan(ctx context.Context, planID string) (*models.PlanRecord, error) {
	var rec models.PlanRecord
	if err := c.getJSON(ctx, "/api/plans/"+url.PathEscape(planID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
