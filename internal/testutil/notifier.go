//go:build integration

package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// NotifyCall records a single notification delivered by CaptureNotifier.
type NotifyCall struct {
	RunID uuid.UUID
	Event any
}

// CaptureNotifier is a test double for port/notifier.RunNotifier. It is safe
// for concurrent use.
type CaptureNotifier struct {
	mu    sync.Mutex
	Calls []NotifyCall
}

func (c *CaptureNotifier) NotifyRunWatchers(_ context.Context, runID uuid.UUID, event any) error {
	c.mu.Lock()
	c.Calls = append(c.Calls, NotifyCall{RunID: runID, Event: event})
	c.mu.Unlock()
	return nil
}

// RunNotifications returns all calls made for runID.
func (c *CaptureNotifier) RunNotifications(runID uuid.UUID) []NotifyCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []NotifyCall
	for _, call := range c.Calls {
		if call.RunID == runID {
			out = append(out, call)
		}
	}
	return out
}

func (c *CaptureNotifier) Reset() {
	c.mu.Lock()
	c.Calls = nil
	c.mu.Unlock()
}
