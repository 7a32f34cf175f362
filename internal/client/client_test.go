package client

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadStreamsMultipart(t *testing.T) {
	md := writeTemp(t, "legs.md", "# Legs\n\nSquat.")
	txt := writeTemp(t, "notes.txt", "Rest well.")

	var (
		gotLength int64
		gotID     string
		parts     = map[string]string{}
		types     = map[string]string{}
		fields    = map[string]string{}
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/uploads", r.URL.Path)
		gotLength = r.ContentLength
		gotID = r.Header.Get("X-Upload-Id")

		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])
		var read int64
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			data, err := io.ReadAll(p)
			require.NoError(t, err)
			read += int64(len(data))
			if p.FileName() == "" {
				fields[p.FormName()] = string(data)
				continue
			}
			parts[p.FileName()] = string(data)
			types[p.FileName()] = p.Header.Get("Content-Type")
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(UploadResponse{UploadID: gotID, TotalBytes: read})
	}))
	defer ts.Close()

	resp, err := New(ts.URL).Upload(context.Background(), "u-1", []string{md, txt}, map[string]string{"source": "cli"})
	require.NoError(t, err)

	assert.Equal(t, "u-1", resp.UploadID)
	assert.Equal(t, "u-1", gotID)
	assert.Positive(t, gotLength)
	assert.Equal(t, "# Legs\n\nSquat.", parts["legs.md"])
	assert.Equal(t, "Rest well.", parts["notes.txt"])
	assert.Equal(t, "text/markdown", types["legs.md"])
	assert.Equal(t, "text/plain", types["notes.txt"])
	assert.Equal(t, "cli", fields["source"])
}

func TestUploadMissingFile(t *testing.T) {
	_, err := New("http://127.0.0.1:1").Upload(context.Background(), "", []string{"/does/not/exist.md"}, nil)
	assert.ErrorContains(t, err, "open")
}

func TestAPIErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/plans/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"category":"not_found","message":"plan missing: not found"}}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		}
	}))
	defer ts.Close()
	c := New(ts.URL)

	_, err := c.Plan(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Category)
	assert.Equal(t, "not_found: plan missing: not found", err.Error())

	_, err = c.GenerationJob(context.Background(), "x")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, err.Error(), "upstream down")
	assert.False(t, IsNotFound(err))
}

func TestGenerateAndProcess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/plans/generate":
			var req models.PlanRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []string{"f1"}, req.FileIDs)
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{"jobId":"g1","status":"accepted"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/uploads/u1/process":
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{"uploadId":"u1","processingId":"p1","status":"queued","totalFiles":2}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	c := New(ts.URL)

	gen, err := c.Generate(context.Background(), models.PlanRequest{FileIDs: []string{"f1"}})
	require.NoError(t, err)
	assert.Equal(t, "g1", gen.JobID)
	assert.Equal(t, models.GenerationStatusAccepted, gen.Status)

	job, err := c.Process(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "p1", job.ProcessingID)
	assert.Equal(t, 2, job.TotalFiles)
}

func TestWatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan controlMessage, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws", r.URL.Path)
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer ws.Close()

		var msg controlMessage
		require.NoError(t, ws.ReadJSON(&msg))
		joined <- msg

		_ = ws.WriteJSON(map[string]any{"event": models.EventGenerationProgress, "data": map[string]any{"jobId": "g1", "progress": 40}})
		_ = ws.WriteJSON(map[string]any{"event": models.EventGenerationComplete, "data": map[string]any{"jobId": "g1", "progress": 100}})
		// Keep the connection open until the client leaves.
		_, _, _ = ws.ReadMessage()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var names []string
	err := New(ts.URL).Watch(ctx, func(ev Event) error {
		names = append(names, ev.Name)
		if ev.Terminal() {
			var done models.GenerationCompleteEvent
			require.NoError(t, ev.Decode(&done))
			assert.Equal(t, 100, done.Progress)
			return ErrStopWatch
		}
		return nil
	}, GenerationTopic("g1"))
	require.NoError(t, err)

	assert.Equal(t, controlMessage{Type: "join-generation-topic", Payload: "g1"}, <-joined)
	assert.Equal(t, []string{models.EventGenerationProgress, models.EventGenerationComplete}, names)
}

func TestEventTerminal(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"progress", Event{Name: models.EventUploadProgress, Data: json.RawMessage(`{}`)}, false},
		{"upload complete", Event{Name: models.EventUploadComplete, Data: json.RawMessage(`{}`)}, true},
		{"file error", Event{Name: models.EventProcessingError, Data: json.RawMessage(`{"fileId":"f1"}`)}, false},
		{"batch error", Event{Name: models.EventProcessingError, Data: json.RawMessage(`{"status":"failed"}`)}, true},
		{"generation error", Event{Name: models.EventGenerationError, Data: json.RawMessage(`{}`)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.Terminal())
		})
	}
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("FITPLAN_SERVER_URL", "")
	t.Setenv("FITPLAN_CLIENT_TIMEOUT", "30s")

	c := New("")
	assert.Equal(t, "http://localhost:8484", c.baseURL)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)

	assert.Equal(t, "http://example.test", New("http://example.test/").baseURL)
	assert.True(t, strings.HasPrefix(contentTypeFor("a.PDF"), "application/pdf"))
}
