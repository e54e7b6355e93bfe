package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/domain"
)

func TestNewTaskEvent(t *testing.T) {
	svcErr := domain.NewServiceError(domain.ErrorKindServerError, "veo", "poll", "UNAVAILABLE", "backend overloaded")

	event := NewTaskEvent("render-abc", "render", "failed", 40, svcErr)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "render-abc", event.TaskID)
	assert.Equal(t, "render", event.TaskType)
	assert.Equal(t, "failed", event.Status)
	assert.Equal(t, 40, event.Progress)
	assert.Equal(t, svcErr, event.Err)
	assert.WithinDuration(t, time.Now(), event.OccurredAt, 2*time.Second)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *TaskEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestEventHandler(t *testing.T) {
	handler := &MockEventHandler{}

	event := NewTaskEvent("render-abc", "render", "processing", 0, nil)

	err := handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
	assert.Equal(t, 1, handler.HandledCount)
	assert.Equal(t, event, handler.LastEvent)

	// Test error case
	expectedErr := errors.New("handler error")
	handler.HandlerError = expectedErr
	err = handler.HandleEvent(context.Background(), event)
	require.Equal(t, expectedErr, err)
	assert.Equal(t, 2, handler.HandledCount)
}
