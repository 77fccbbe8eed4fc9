package eventlogger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func (m *memoryEventLogger) Save(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memoryEventLogger) GetByType(_ context.Context, eventType string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryEventLogger) saved() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(
		WithType(TypeTripCreated),
		WithData(map[string]string{"trip_id": "abc"}),
		WithMetadata(map[string]string{"source": "test"}),
	)

	assert.NotEqual(t, "", e.ID.String())
	assert.Equal(t, TypeTripCreated, e.Type)
	assert.Equal(t, map[string]string{"trip_id": "abc"}, e.Data)
	assert.Equal(t, "test", e.Metadata["source"])
	assert.False(t, e.CreatedAt.IsZero())
}

func TestWorker_SavesLoggedEvents(t *testing.T) {
	logger := &memoryEventLogger{}
	worker := NewWorker(logger, 16)
	worker.Start()

	worker.Log(NewEvent(WithType(TypeExpenseAdded)))
	worker.Log(NewEvent(WithType(TypeExpenseDeleted)))

	worker.Shutdown()

	saved := logger.saved()
	require.Len(t, saved, 2)
	assert.Equal(t, TypeExpenseAdded, saved[0].Type)
	assert.Equal(t, TypeExpenseDeleted, saved[1].Type)
}

func TestWorker_DrainsBufferOnShutdown(t *testing.T) {
	logger := &memoryEventLogger{}
	worker := NewWorker(logger, 64)

	for i := 0; i < 10; i++ {
		worker.Log(NewEvent(WithType(TypeUserLoggedIn)))
	}

	// Start after queuing so the drain path does the work.
	worker.Start()
	worker.Shutdown()

	assert.Len(t, logger.saved(), 10)
}

func TestWorker_DropsWhenBufferFull(t *testing.T) {
	logger := &memoryEventLogger{}
	worker := NewWorker(logger, 1)

	worker.Log(NewEvent(WithType(TypeUserRegistered)))
	worker.Log(NewEvent(WithType(TypeUserRegistered))) // dropped, buffer of one

	worker.Start()
	worker.Shutdown()

	assert.Len(t, logger.saved(), 1)
}
