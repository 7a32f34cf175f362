package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/fitplan/internal/models"
)

// ErrStopWatch ends Watch without an error when returned by the handler.
var ErrStopWatch = errors.New("stop watching")

// Topic names a job whose events a watcher receives.
type Topic struct {
	Kind string // "upload" or "generation"
	ID   string
}

// UploadTopic covers upload and processing events of an upload.
func UploadTopic(uploadID string) Topic { return Topic{Kind: "upload", ID: uploadID} }

// GenerationTopic covers the events of a generation job.
func GenerationTopic(jobID string) Topic { return Topic{Kind: "generation", ID: jobID} }

// Event is one server push.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Name, err)
	}
	return nil
}

// Terminal reports whether the event ends its job.
func (e Event) Terminal() bool {
	switch e.Name {
	case models.EventUploadComplete, models.EventUploadError,
		models.EventProcessingComplete, models.EventGenerationComplete, models.EventGenerationError:
		return true
	case models.EventProcessingError:
		var ev models.ProcessingErrorEvent
		return e.Decode(&ev) == nil && ev.FileID == ""
	}
	return false
}

type controlMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// Watcher is an open event stream.
type Watcher struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

// Connect opens the event stream.
func (c *Client) Connect(ctx context.Context) (*Watcher, error) {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	u, err := url.Parse(wsURL + "/ws")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &Watcher{conn: conn}, nil
}

// Join subscribes to the events of t. The server replays the job's
// current state right after joining.
func (w *Watcher) Join(t Topic) error {
	return w.send(controlMessage{Type: "join-" + t.Kind + "-topic", Payload: t.ID})
}

// Leave unsubscribes from t.
func (w *Watcher) Leave(t Topic) error {
	return w.send(controlMessage{Type: "leave-" + t.Kind + "-topic", Payload: t.ID})
}

func (w *Watcher) send(msg controlMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// Run delivers events to handle until handle returns an error, the
// connection fails or ctx ends. ErrStopWatch is reported as nil.
func (w *Watcher) Run(ctx context.Context, handle func(Event) error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := w.conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := handle(ev); err != nil {
			if errors.Is(err, ErrStopWatch) {
				return nil
			}
			return err
		}
	}
}

// Close closes the stream.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
	})
	return err
}

// Watch joins topics and delivers their events until handle stops it.
func (c *Client) Watch(ctx context.Context, handle func(Event) error, topics ...Topic) error {
	w, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, t := range topics {
		if err := w.Join(t); err != nil {
			return err
		}
	}
	return w.Run(ctx, handle)
}
