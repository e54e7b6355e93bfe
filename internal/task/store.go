package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/storyreel/storyreel/internal/domain"
)

// record pairs a task snapshot with the cancel function for its context.
// The cancel function is fired outside the store lock.
type record struct {
	task   Task
	cancel context.CancelFunc
}

// Store is an in-memory task store. A single mutex serializes every mutation;
// no method blocks or calls out while holding it, so the lock is never held
// across a suspension point.
type Store struct {
	mu      sync.Mutex
	records map[string]*record

	// now is overridable in tests
	now func() time.Time
}

// NewStore creates an empty in-memory task store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Save adds a new pending task. The cancel function is retained so Cancel can
// interrupt the task's context later.
func (s *Store) Save(t Task, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[t.ID]; ok {
		return ErrTaskExists
	}
	s.records[t.ID] = &record{task: t, cancel: cancel}
	return nil
}

// Get returns a snapshot of the task with the given ID.
func (s *Store) Get(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return rec.task, nil
}

// List returns snapshots of all tasks ordered by creation time.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]Task, 0, len(s.records))
	for _, rec := range s.records {
		tasks = append(tasks, rec.task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

// MarkProcessing transitions a pending task to processing and stamps its
// start time.
func (s *Store) MarkProcessing(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if rec.task.Status != StatusPending {
		return Task{}, ErrInvalidTransition
	}
	now := s.now()
	rec.task.Status = StatusProcessing
	rec.task.StartedAt = now
	rec.task.UpdatedAt = now
	return rec.task, nil
}

// SetProgress records a progress update for a processing task.
func (s *Store) SetProgress(id string, pct int, message string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if rec.task.Status != StatusProcessing {
		return Task{}, ErrInvalidTransition
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	rec.task.Progress = pct
	rec.task.Message = message
	rec.task.UpdatedAt = s.now()
	return rec.task, nil
}

// Complete transitions a processing task to completed and stores its result.
func (s *Store) Complete(id string, result any) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if rec.task.Status != StatusProcessing {
		return Task{}, ErrInvalidTransition
	}
	now := s.now()
	rec.task.Status = StatusCompleted
	rec.task.Progress = 100
	rec.task.Result = result
	rec.task.UpdatedAt = now
	rec.task.EndedAt = now
	return rec.task, nil
}

// Fail transitions a processing task to failed and stores the classified
// error.
func (s *Store) Fail(id string, svcErr *domain.ServiceError) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if rec.task.Status != StatusProcessing {
		return Task{}, ErrInvalidTransition
	}
	now := s.now()
	rec.task.Status = StatusFailed
	rec.task.Err = svcErr
	rec.task.UpdatedAt = now
	rec.task.EndedAt = now
	return rec.task, nil
}

// Cancel requests cancellation of a task. Pending tasks transition to
// cancelled immediately; processing tasks keep their status until the running
// operation observes the context and the manager finishes the transition.
// The returned cancel function (possibly nil) must be invoked by the caller
// outside the lock; the bool reports whether cancellation was applied.
func (s *Store) Cancel(id string) (Task, context.CancelFunc, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Task{}, nil, false, ErrTaskNotFound
	}
	if rec.task.Status.Terminal() {
		return rec.task, nil, false, nil
	}
	if rec.task.Status == StatusPending {
		now := s.now()
		rec.task.Status = StatusCancelled
		rec.task.UpdatedAt = now
		rec.task.EndedAt = now
	}
	return rec.task, rec.cancel, true, nil
}

// FinishCancelled moves a non-terminal task to cancelled. The bool reports
// whether a transition happened; terminal tasks are left untouched.
func (s *Store) FinishCancelled(id string) (Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Task{}, false, ErrTaskNotFound
	}
	if rec.task.Status.Terminal() {
		return rec.task, false, nil
	}
	now := s.now()
	rec.task.Status = StatusCancelled
	rec.task.UpdatedAt = now
	rec.task.EndedAt = now
	return rec.task, true, nil
}

// Sweep deletes terminal tasks that ended before the cutoff and returns how
// many were removed. Pending and processing tasks are never touched.
func (s *Store) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.task.Status.Terminal() && rec.task.EndedAt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}
