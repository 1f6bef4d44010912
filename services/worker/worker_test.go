package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dealmungchi/dealextractor/services/publisher"
)

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu      sync.Mutex
	trims   int
	trimErr error
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return m.trimErr
}

func (m *MockPublisher) Close() error {
	return nil
}

func (m *MockPublisher) Trims() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trims
}

func TestWorkerTrimsPeriodically(t *testing.T) {
	pub := &MockPublisher{}
	w := NewWorker(pub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	assert.Eventually(t, func() bool { return pub.Trims() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerKeepsRunningAfterErrors(t *testing.T) {
	pub := &MockPublisher{trimErr: errors.New("redis down")}
	w := NewWorker(pub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	assert.Eventually(t, func() bool { return pub.Trims() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestWorkerDisabled(t *testing.T) {
	pub := &MockPublisher{}
	w := NewWorker(pub, 0)

	assert.NoError(t, w.Start(context.Background()))
	assert.Equal(t, 0, pub.Trims())
}
