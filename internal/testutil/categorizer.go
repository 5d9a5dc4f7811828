package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/taskflow-ai/taskflow-api/internal/events"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// StubCategorizer returns a fixed result or error, optionally after a delay
type StubCategorizer struct {
	Result *models.Categorization
	Err    error
	Delay  time.Duration

	mu    sync.Mutex
	calls []CategorizeCall
}

// CategorizeCall records the arguments of one Categorize call
type CategorizeCall struct {
	Title       string
	Description *string
}

// Categorize implements ai.Categorizer. A delay longer than the context
// deadline yields the context error.
func (c *StubCategorizer) Categorize(ctx context.Context, title string, description *string) (*models.Categorization, error) {
	c.mu.Lock()
	c.calls = append(c.calls, CategorizeCall{Title: title, Description: description})
	c.mu.Unlock()

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.Err != nil {
		return nil, c.Err
	}
	r := *c.Result
	return &r, nil
}

// Calls returns the recorded calls
func (c *StubCategorizer) Calls() []CategorizeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CategorizeCall(nil), c.calls...)
}

// RecordingPublisher collects published events
type RecordingPublisher struct {
	mu     sync.Mutex
	Err    error
	events []string
}

// Publish implements events.Publisher. The event is recorded even when Err is set.
func (p *RecordingPublisher) Publish(_ context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, string(event.Type))
	return p.Err
}

// Types returns the published event types in order
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
