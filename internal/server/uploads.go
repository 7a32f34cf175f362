package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/raphaelgruber/fitplan/internal/parser"
	"github.com/raphaelgruber/fitplan/internal/service"
)

// Upload ids chosen by clients are limited to this length.
const maxUploadIDLen = 64

// progressSteps is how many uploadProgress events a body of known size produces at most.
const progressSteps = 100

// unknownSizeStep is the byte interval between progress reports when the size is unknown.
const unknownSizeStep = 256 << 10

// uploadResponse is returned when an upload finished.
type uploadResponse struct {
	UploadID   string              `json:"uploadId"`
	Files      []models.FileRecord `json:"files"`
	TotalBytes int64               `json:"totalBytes"`
}

// countingReader reports the running byte count as the body is consumed.
type countingReader struct {
	r        io.ReadCloser
	n        int64
	next     int64
	step     int64
	onReport func(n int64)
}

func newCountingReader(r io.ReadCloser, expected int64, onReport func(int64)) *countingReader {
	step := int64(unknownSizeStep)
	if expected > 0 {
		step = max(expected/progressSteps, 1)
	}
	return &countingReader{r: r, step: step, next: step, onReport: onReport}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n >= c.next {
		c.next = c.n + c.step
		c.onReport(c.n)
	}
	return n, err
}

func (c *countingReader) Close() error {
	return c.r.Close()
}

// uploadIDFrom returns the client-chosen upload id, or a new one.
func uploadIDFrom(r *http.Request) (string, error) {
	id := r.Header.Get("X-Upload-Id")
	if id == "" {
		id = r.URL.Query().Get("uploadId")
	}
	if id == "" {
		return uuid.NewString(), nil
	}
	if len(id) > maxUploadIDLen || strings.ContainsAny(id, ":/\\ ") {
		return "", fmt.Errorf("%w: invalid upload id %q", service.ErrValidation, id)
	}
	return id, nil
}

// handleUpload streams a multipart body to disk. Clients that want live
// progress pick the upload id themselves and join its topic first.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uploadIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	expected := r.ContentLength
	if s.MaxUploadBytes > 0 && expected > s.MaxUploadBytes {
		writeError(w, &http.MaxBytesError{Limit: s.MaxUploadBytes})
		return
	}

	if err := s.Uploads.Start(ctx, id, expected); err != nil {
		writeError(w, err)
		return
	}
	// The job outlives the request: a client that goes away mid-upload
	// still has to leave a failed, expiring record behind.
	track := context.WithoutCancel(ctx)

	body := r.Body
	if s.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	}
	counter := newCountingReader(body, expected, func(n int64) {
		s.Uploads.Progress(track, id, n, expected)
	})
	r.Body = counter

	files, err := s.receiveFiles(ctx, r, id)
	if err != nil {
		for _, f := range files {
			_ = os.Remove(f.Path)
		}
		s.Uploads.Fail(track, id, err)
		writeError(w, err)
		return
	}
	s.Uploads.Progress(track, id, counter.n, expected)

	batch := models.FileBatch{UploadID: id, Files: files}
	if err := s.Ingest.RegisterBatch(track, batch); err != nil {
		for _, f := range files {
			_ = os.Remove(f.Path)
		}
		s.Uploads.Fail(track, id, err)
		writeError(w, err)
		return
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}
	s.Uploads.Complete(track, id, models.UploadResult{Files: batch.Clone().Files, TotalBytes: total})

	writeJSON(w, http.StatusCreated, uploadResponse{UploadID: id, Files: files, TotalBytes: total})
}

// receiveFiles saves every file part of the request. Plain form fields
// become metadata of the files that follow them. On error the files saved
// so far are returned so the caller can remove them.
func (s *Server) receiveFiles(ctx context.Context, r *http.Request, uploadID string) ([]models.FileRecord, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrValidation, err)
	}
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	meta := map[string]string{}
	var files []models.FileRecord
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return files, fmt.Errorf("read multipart: %w", err)
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, 4096))
			part.Close()
			if err != nil {
				return files, fmt.Errorf("read form field: %w", err)
			}
			if name := part.FormName(); name != "" {
				meta[name] = string(value)
			}
			continue
		}

		rec, err := s.saveFile(part, uploadID, meta)
		part.Close()
		if err != nil {
			return files, err
		}
		files = append(files, rec)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files in upload", service.ErrValidation)
	}
	return files, nil
}

func (s *Server) saveFile(part *multipart.Part, uploadID string, meta map[string]string) (models.FileRecord, error) {
	name := filepath.Base(part.FileName())
	declared := part.Header.Get("Content-Type")
	if _, err := parser.DetectType(name, declared); err != nil {
		return models.FileRecord{}, err
	}

	id := uuid.NewString()
	path := filepath.Join(s.UploadDir, id+strings.ToLower(filepath.Ext(name)))
	out, err := os.Create(path)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("create %s: %w", name, err)
	}
	size, err := io.Copy(out, part)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return models.FileRecord{}, fmt.Errorf("save %s: %w", name, err)
	}
	if size == 0 {
		_ = os.Remove(path)
		return models.FileRecord{}, fmt.Errorf("%w: %s is empty", service.ErrValidation, name)
	}

	rec := models.FileRecord{
		ID:           id,
		UploadID:     uploadID,
		OriginalName: name,
		DeclaredType: declared,
		Path:         path,
		Size:         size,
		Status:       models.FileStatusUploaded,
	}
	if len(meta) > 0 {
		rec.Metadata = maps.Clone(meta)
	}
	slog.Debug("file received", "upload_id", uploadID, "file_id", id, "file", name, "bytes", size)
	return rec, nil
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.Uploads.Get(r.Context(), id)
	if !ok {
		writeError(w, fmt.Errorf("upload %s: %w", id, service.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	batch, ok := s.Ingest.Batch(r.Context(), id)
	if !ok {
		writeError(w, fmt.Errorf("upload %s: %w", id, service.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	job, err := s.Ingest.Start(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleProcessingStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.Ingest.Status(r.Context(), id)
	if !ok {
		writeError(w, fmt.Errorf("processing of upload %s: %w", id, service.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
