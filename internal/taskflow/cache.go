package taskflow

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/pkg/kv"
)

const listKey = "tasks"

// CachedStore keeps the last task listing for a fixed time to live. Every
// Create and Update, successful or not, drops the cached listing.
type CachedStore struct {
	store task.Store
	cache *kv.Store[string, []task.Task]
	log   zerolog.Logger
}

var _ task.Store = (*CachedStore)(nil)

// NewCachedStore wraps store. A zero ttl disables caching.
func NewCachedStore(store task.Store, ttl time.Duration, log zerolog.Logger) *CachedStore {
	cs := &CachedStore{
		store: store,
		log:   log.With().Str("component", "task-cache").Logger(),
	}
	if ttl > 0 {
		cs.cache = kv.New[string, []task.Task](ttl)
	}
	return cs
}

func (s *CachedStore) List(ctx context.Context) ([]task.Task, error) {
	if s.cache == nil {
		return s.store.List(ctx)
	}

	if tasks, ok := s.cache.Get(listKey); ok {
		return slices.Clone(tasks), nil
	}

	tasks, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(listKey, tasks)
	s.log.Debug().Int("tasks", len(tasks)).Msg("cached task list")
	return slices.Clone(tasks), nil
}

// Refresh reads the store, bypassing and then replacing the cached listing.
func (s *CachedStore) Refresh(ctx context.Context) ([]task.Task, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(listKey, tasks)
	}
	return slices.Clone(tasks), nil
}

func (s *CachedStore) Create(ctx context.Context, t task.Task) error {
	defer s.Invalidate()
	return s.store.Create(ctx, t)
}

func (s *CachedStore) Update(ctx context.Context, id int64, patch task.Patch, now time.Time) (task.Task, error) {
	defer s.Invalidate()
	return s.store.Update(ctx, id, patch, now)
}

// Invalidate drops the cached listing.
func (s *CachedStore) Invalidate() {
	if s.cache != nil {
		s.cache.Delete(listKey)
	}
}

// Sweep evicts expired entries. It satisfies sweep.Sweeper.
func (s *CachedStore) Sweep() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Sweep()
}
