package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raphaelgruber/fitplan/internal/hub"
	"github.com/raphaelgruber/fitplan/internal/jobs"
	"github.com/raphaelgruber/fitplan/internal/metrics"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/raphaelgruber/fitplan/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contextBoundRegistry refuses calls made with a finished context, the way
// the Redis registry does.
type contextBoundRegistry[T any] struct {
	*jobs.MemoryRegistry[T]
}

func (r contextBoundRegistry[T]) Create(ctx context.Context, id string, initial T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRegistry.Create(ctx, id, initial)
}

func (r contextBoundRegistry[T]) Update(ctx context.Context, id string, mutate func(*T)) (T, bool) {
	if ctx.Err() != nil {
		var zero T
		return zero, false
	}
	return r.MemoryRegistry.Update(ctx, id, mutate)
}

// cancelOnRead cancels the request context on its first read, like a client
// that disconnects once the body starts flowing.
type cancelOnRead struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancelOnRead) Read(p []byte) (int, error) {
	c.cancel()
	return c.r.Read(p)
}

type eventConn struct {
	events chan string
}

func (c *eventConn) ID() string { return "observer" }

func (c *eventConn) Send(msg hub.Message) error {
	c.events <- msg.Event
	return nil
}

func TestUploadAbortedByClientStillFails(t *testing.T) {
	env := newTestEnv(t, 0)
	mem := jobs.NewMemoryRegistry[models.UploadJob]("upload")
	env.srv.Uploads = service.NewUploadTracker(contextBoundRegistry[models.UploadJob]{mem}, env.hub, time.Hour,
		metrics.NewPrometheus(prometheus.NewRegistry()))

	observer := &eventConn{events: make(chan string, 16)}
	env.hub.Subscribe(context.Background(), observer, hub.Topic(hub.KindUpload, "gone"))
	t.Cleanup(func() { env.hub.Disconnect(observer) })

	body, contentType := multipartBody(t,
		uploadFile{"a.txt", "text/plain", "Brace before you lift."},
		uploadFile{"b.txt", "text/plain", "Exhale at the top."},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &cancelOnRead{r: body, cancel: cancel}).WithContext(ctx)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Upload-Id", "gone")

	env.srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	job, ok := mem.Get(context.Background(), "gone")
	require.True(t, ok)
	assert.Equal(t, models.UploadStatusFailed, job.Status)
	assert.NotEmpty(t, job.Error)

	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-observer.events:
			if ev == models.EventUploadError {
				return
			}
		case <-deadline:
			t.Fatal("no uploadError published for the aborted upload")
		}
	}
}
