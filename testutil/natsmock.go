package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// MockNATSClient is a simple in-memory NATS client for testing core message
// passing. Matches the natsclient.Client signatures for Subscribe/Publish.
// Thread-safe for concurrent use from multiple goroutines.
type MockNATSClient struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions map[string][]func(context.Context, []byte)
	closed        bool
}

// NewMockNATSClient creates a new mock NATS client.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages:      make(map[string][][]byte),
		subscriptions: make(map[string][]func(context.Context, []byte)),
	}
}

// Publish publishes a message to a subject.
func (c *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}

	c.messages[subject] = append(c.messages[subject], data)

	// Deliver to exact-subject handlers and wildcard handlers. Only the
	// trailing ">" wildcard is supported; that covers the tap's
	// vision.fused.> subscription.
	var handlers []func(context.Context, []byte)
	for pattern, h := range c.subscriptions {
		if subjectMatches(pattern, subject) {
			handlers = append(handlers, h...)
		}
	}
	c.mu.Unlock()

	// Call handlers outside the lock to prevent deadlock
	for _, handler := range handlers {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		handler(msgCtx, data)
		cancel()
	}
	return nil
}

// subjectMatches reports whether a subscription pattern covers a subject.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	const wildcard = ".>"
	if len(pattern) > len(wildcard) && pattern[len(pattern)-len(wildcard):] == wildcard {
		prefix := pattern[:len(pattern)-1] // keep the trailing dot
		return len(subject) > len(prefix) && subject[:len(prefix)] == prefix
	}
	return false
}

// Subscribe registers a handler for a subject or trailing-wildcard pattern.
func (c *MockNATSClient) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	c.subscriptions[subject] = append(c.subscriptions[subject], handler)
	return nil
}

// GetMessages returns all messages published to a subject.
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// GetMessageCount returns the number of messages on a subject.
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// Clear clears all messages from a subject.
func (c *MockNATSClient) Clear(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[subject] = nil
}

// Close closes the mock client.
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// IsClosed returns whether the client is closed.
func (c *MockNATSClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// MessageSource is anything that records messages per subject. Both
// MockNATSClient and RecordingPublisher satisfy it.
type MessageSource interface {
	GetMessages(subject string) [][]byte
	GetMessageCount(subject string) int
}

// WaitForMessage waits for a message on a subject and returns the latest.
func WaitForMessage(t *testing.T, source MessageSource, subject string, timeout time.Duration) []byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for message on subject %s", subject)
			return nil
		case <-ticker.C:
			messages := source.GetMessages(subject)
			if len(messages) > 0 {
				return messages[len(messages)-1]
			}
		}
	}
}

// WaitForMessageCount waits for at least count messages on a subject.
func WaitForMessageCount(t *testing.T, source MessageSource, subject string, count int, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			got := source.GetMessageCount(subject)
			t.Fatalf("timeout waiting for %d messages on subject %s (got %d)", count, subject, got)
			return
		case <-ticker.C:
			if source.GetMessageCount(subject) >= count {
				return
			}
		}
	}
}

// AssertNoMessages checks that no messages were recorded on a subject.
func AssertNoMessages(t *testing.T, source MessageSource, subject string) {
	t.Helper()

	if n := source.GetMessageCount(subject); n > 0 {
		t.Fatalf("expected no messages on subject %s, got %d", subject, n)
	}
}
