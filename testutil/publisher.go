package testutil

import (
	"context"
	"sync"
)

// PublishedMessage is one captured publish call.
type PublishedMessage struct {
	Subject string
	Data    []byte
}

// RecordingPublisher captures publishes for verification. Its Publish
// method has the bus publish-capability signature, so tests hand
// rec.Publish wherever a publish function is expected.
// Thread-safe for concurrent use from multiple goroutines.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage

	// FailFunc, when set, decides per subject whether Publish fails.
	FailFunc func(subject string) error
}

// NewRecordingPublisher creates an empty recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{
		messages: make([]PublishedMessage, 0),
	}
}

// Publish records the message, or fails when FailFunc says so.
func (p *RecordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	failFunc := p.FailFunc
	p.mu.Unlock()

	if failFunc != nil {
		if err := failFunc(subject); err != nil {
			return err
		}
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Subject: subject, Data: stored})
	return nil
}

// GetMessages returns all captured messages for a subject.
func (p *RecordingPublisher) GetMessages(subject string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result [][]byte
	for _, msg := range p.messages {
		if msg.Subject == subject {
			result = append(result, msg.Data)
		}
	}
	return result
}

// GetMessageCount returns the number of captured messages for a subject.
func (p *RecordingPublisher) GetMessageCount(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for _, msg := range p.messages {
		if msg.Subject == subject {
			count++
		}
	}
	return count
}

// All returns every captured message in publish order.
func (p *RecordingPublisher) All() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]PublishedMessage, len(p.messages))
	copy(result, p.messages)
	return result
}

// Last returns the most recent captured message.
func (p *RecordingPublisher) Last() (PublishedMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.messages) == 0 {
		return PublishedMessage{}, false
	}
	return p.messages[len(p.messages)-1], true
}

// Clear drops all captured messages.
func (p *RecordingPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = p.messages[:0]
}
