package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/events"
)

// ManagerConfig holds configuration for the task manager
type ManagerConfig struct {
	// MaxConcurrentTasks bounds how many tasks execute at the same time.
	// Submissions beyond the bound wait for a slot.
	MaxConcurrentTasks int

	// RetentionPeriod defines how long finished tasks stay queryable before
	// the sweeper removes them. Zero disables sweeping entirely.
	RetentionPeriod time.Duration

	// SweepInterval defines how often the sweeper runs.
	// If zero, defaults to 1 hour.
	SweepInterval time.Duration
}

// DefaultManagerConfig returns a ManagerConfig with reasonable defaults
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConcurrentTasks: 3,
		RetentionPeriod:    24 * time.Hour,
		SweepInterval:      time.Hour,
	}
}

// Manager schedules and tracks asynchronous tasks. Submissions return an ID
// immediately; execution happens on a goroutine admitted through a weighted
// semaphore so at most MaxConcurrentTasks operations run concurrently.
type Manager struct {
	store      *Store
	sem        *semaphore.Weighted
	emitter    events.EventEmitter
	config     ManagerConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewManager creates a new Manager
func NewManager(config ManagerConfig, emitter events.EventEmitter, logger *slog.Logger) *Manager {
	// Apply defaults for unset fields
	if config.MaxConcurrentTasks < 1 {
		config.MaxConcurrentTasks = DefaultManagerConfig().MaxConcurrentTasks
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:      NewStore(),
		sem:        semaphore.NewWeighted(int64(config.MaxConcurrentTasks)),
		emitter:    emitter,
		config:     config,
		logger:     logger.With("component", "task_manager"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the background sweeper when retention is enabled.
func (m *Manager) Start() {
	if m.config.RetentionPeriod <= 0 {
		return
	}
	m.wg.Add(1)
	go m.sweeper()
}

// Stop cancels all in-flight task contexts and waits for them to drain.
func (m *Manager) Stop() {
	m.cancelFunc()
	m.wg.Wait()
}

// Submit registers a new task and schedules its operation. The task ID is
// returned synchronously; the operation runs in the background once the
// semaphore admits it.
func (m *Manager) Submit(ctx context.Context, taskType string, op Operation) (string, error) {
	if err := m.ctx.Err(); err != nil {
		return "", ErrManagerStopped
	}

	id := taskType + "-" + uuid.NewString()
	taskCtx, cancel := context.WithCancel(m.ctx)

	now := time.Now().UTC()
	t := Task{
		ID:        id,
		Type:      taskType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(t, cancel); err != nil {
		cancel()
		return "", err
	}
	m.emit(t)

	m.wg.Add(1)
	go m.run(taskCtx, id, op)

	m.logger.Debug("task submitted", "task_id", id, "task_type", taskType)
	return id, nil
}

// GetStatus returns a snapshot of the task with the given ID.
func (m *Manager) GetStatus(id string) (Task, error) {
	return m.store.Get(id)
}

// ListAll returns snapshots of every known task ordered by creation time.
func (m *Manager) ListAll() []Task {
	return m.store.List()
}

// GetResult returns the result of a finished task. It fails with
// ErrTaskNotFound for unknown IDs, ErrTaskCancelled for cancelled tasks,
// ErrTaskNotFinished for tasks still pending or processing, and the task's
// own error for failed ones.
func (m *Manager) GetResult(id string) (any, error) {
	t, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case StatusCompleted:
		return t.Result, nil
	case StatusCancelled:
		return nil, ErrTaskCancelled
	case StatusFailed:
		return nil, t.Err
	default:
		return nil, ErrTaskNotFinished
	}
}

// Cancel requests cancellation of a task. Pending tasks are cancelled
// immediately; processing tasks have their context cancelled and transition
// once the operation returns. The bool reports whether cancellation was
// applied; terminal tasks return false.
func (m *Manager) Cancel(id string) (bool, error) {
	t, cancel, applied, err := m.store.Cancel(id)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	if cancel != nil {
		cancel()
	}
	if t.Status == StatusCancelled {
		// Pending task: no operation ever started, so the transition is
		// already final and the event is emitted here.
		m.emit(t)
		m.logger.Info("task cancelled before start", "task_id", id)
	} else {
		m.logger.Info("task cancellation requested", "task_id", id)
	}
	return true, nil
}

// run executes a single task: admission through the semaphore, the operation
// itself, then the terminal transition.
func (m *Manager) run(ctx context.Context, id string, op Operation) {
	defer m.wg.Done()

	logger := m.logger.With("task_id", id)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		// Cancelled while waiting for a slot. Cancel on a pending task has
		// already transitioned it; the manager Stop path has not.
		if t, transitioned, fErr := m.store.FinishCancelled(id); fErr == nil && transitioned {
			m.emit(t)
		}
		logger.Debug("task cancelled while awaiting slot")
		return
	}
	defer m.sem.Release(1)

	t, err := m.store.MarkProcessing(id)
	if err != nil {
		// The task was cancelled between admission and start.
		logger.Debug("task no longer pending, skipping execution", "error", err)
		return
	}
	m.emit(t)
	logger.Info("task started", "task_type", t.Type)

	result, opErr := op(ctx, &progressReporter{manager: m, id: id})

	if opErr == nil {
		// A result that arrived despite late cancellation is kept.
		done, cErr := m.store.Complete(id, result)
		if cErr != nil {
			logger.Error("failed to record task completion", "error", cErr)
			return
		}
		m.emit(done)
		logger.Info("task completed")
		return
	}

	if ctx.Err() != nil {
		done, transitioned, fErr := m.store.FinishCancelled(id)
		if fErr == nil && transitioned {
			m.emit(done)
		}
		logger.Info("task cancelled")
		return
	}

	svcErr := domain.ServiceErrorFrom(opErr)
	done, fErr := m.store.Fail(id, svcErr)
	if fErr != nil {
		logger.Error("failed to record task failure", "error", fErr)
		return
	}
	m.emit(done)
	logger.Error("task failed", "error", opErr, "kind", svcErr.Kind)
}

// sweeper periodically removes finished tasks older than the retention
// window. Pending and processing tasks are never removed.
func (m *Manager) sweeper() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-m.config.RetentionPeriod)
			if removed := m.store.Sweep(cutoff); removed > 0 {
				m.logger.Info("swept expired tasks", "count", removed)
			}
		}
	}
}

// emit publishes a task status change. Delivery failures are logged by the
// emitter; they never affect the task lifecycle.
func (m *Manager) emit(t Task) {
	if m.emitter == nil {
		return
	}
	event := events.NewTaskEvent(t.ID, t.Type, string(t.Status), t.Progress, t.Err)
	if err := m.emitter.EmitEvent(context.Background(), event); err != nil {
		m.logger.Warn("event delivery failed", "task_id", t.ID, "error", err)
	}
}

// progressReporter forwards progress updates from a running operation into
// the store and onto the event stream.
type progressReporter struct {
	manager *Manager
	id      string
}

func (r *progressReporter) Progress(pct int, message string) {
	t, err := r.manager.store.SetProgress(r.id, pct, message)
	if err != nil {
		// The task left the processing state (late update after
		// cancellation); drop the report.
		if !errors.Is(err, ErrInvalidTransition) {
			r.manager.logger.Warn("progress update failed", "task_id", r.id, "error", err)
		}
		return
	}
	r.manager.emit(t)
}

var _ Reporter = (*progressReporter)(nil)
