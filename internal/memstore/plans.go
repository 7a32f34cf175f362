package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/models"
)

// PlanStore keeps generated plans keyed by id.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[string]models.PlanRecord
}

// NewPlanStore creates an empty plan store.
func NewPlanStore() *PlanStore {
	return &PlanStore{plans: make(map[string]models.PlanRecord)}
}

// SavePlan stores rec, assigning an id and creation time when missing.
func (s *PlanStore) SavePlan(_ context.Context, rec models.PlanRecord) (models.PlanRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.FileIDs = slices.Clone(rec.FileIDs)

	s.mu.Lock()
	s.plans[rec.ID] = rec
	s.mu.Unlock()
	return rec, nil
}

// GetPlan returns the plan with id, or nil when absent.
func (s *PlanStore) GetPlan(_ context.Context, id string) (*models.PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.plans[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
