// Package jobs provides registries for in-flight job state.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrDuplicateJob is returned by Create when the id is already registered.
var ErrDuplicateJob = errors.New("job already exists")

// Registry stores job snapshots keyed by id.
//
// Update applies mutate atomically with respect to other updates of the
// same job. mutate may run more than once, so anything it records outside
// the job must be derived from the snapshot it receives. Update on an
// unknown id is a lost update: it is logged and reported through the
// boolean result.
type Registry[T any] interface {
	Create(ctx context.Context, id string, initial T) error
	Update(ctx context.Context, id string, mutate func(*T)) (T, bool)
	Get(ctx context.Context, id string) (T, bool)
	Delete(ctx context.Context, id string)
	// ScheduleCleanup removes the job after delay. It cannot be canceled,
	// but a job deleted and created again under the same id in the meantime
	// is left alone.
	ScheduleCleanup(ctx context.Context, id string, delay time.Duration)
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry[T any] struct {
	kind string
	mu   sync.RWMutex
	jobs map[string]T
	// gens tags each stored job with the Create call that made it, so a
	// cleanup timer only removes the instance it was scheduled for.
	gens map[string]uint64
	next uint64
}

// NewMemoryRegistry creates an empty registry. kind labels log lines.
func NewMemoryRegistry[T any](kind string) *MemoryRegistry[T] {
	return &MemoryRegistry[T]{
		kind: kind,
		jobs: make(map[string]T),
		gens: make(map[string]uint64),
	}
}

// Create registers a job.
func (r *MemoryRegistry[T]) Create(_ context.Context, id string, initial T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return ErrDuplicateJob
	}
	r.jobs[id] = initial
	r.next++
	r.gens[id] = r.next

	slog.Debug("job registered", "kind", r.kind, "job_id", id)
	return nil
}

// Update applies mutate to the stored job and returns the new snapshot.
func (r *MemoryRegistry[T]) Update(_ context.Context, id string, mutate func(*T)) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		slog.Warn("update for unknown job dropped", "kind", r.kind, "job_id", id)
		var zero T
		return zero, false
	}
	job = clone(job)
	mutate(&job)
	r.jobs[id] = job
	return clone(job), true
}

// Get returns a snapshot of the job.
func (r *MemoryRegistry[T]) Get(_ context.Context, id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return job, false
	}
	return clone(job), true
}

// Delete removes the job immediately.
func (r *MemoryRegistry[T]) Delete(_ context.Context, id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	delete(r.gens, id)
	r.mu.Unlock()
}

// ScheduleCleanup removes the job after delay unless it has been replaced.
func (r *MemoryRegistry[T]) ScheduleCleanup(_ context.Context, id string, delay time.Duration) {
	r.mu.RLock()
	gen, ok := r.gens[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gens[id] != gen {
			slog.Debug("cleanup skipped for replaced job", "kind", r.kind, "job_id", id)
			return
		}
		delete(r.jobs, id)
		delete(r.gens, id)
		slog.Debug("job purged", "kind", r.kind, "job_id", id)
	})
}

// Len returns the number of registered jobs.
func (r *MemoryRegistry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// clone deep-copies job when the type knows how to, so snapshots handed
// out by Get never share backing arrays with the stored value.
func clone[T any](job T) T {
	if c, ok := any(job).(interface{ Clone() T }); ok {
		return c.Clone()
	}
	return job
}
