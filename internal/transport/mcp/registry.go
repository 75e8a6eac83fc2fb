package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// SessionRegistry tracks which MCP sessions watch which benchmark runs.
// It implements port/notifier.RunNotifier.
//
// [SRP] Watch bookkeeping and notification dispatch only.
// [DIP] The run service depends on the port interface, not this concrete type.
type SessionRegistry struct {
	mu        sync.RWMutex
	bySession map[string]map[uuid.UUID]struct{} // sessionID → watched runs
	byRun     map[uuid.UUID]map[string]struct{} // runID → watching sessions

	// mcpSrv is set after the MCP server is constructed (avoids circular init dependency).
	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

// NewSessionRegistry creates a registry without an MCP server reference.
// Call SetMCPServer once the mcp-go server is constructed.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		bySession: make(map[string]map[uuid.UUID]struct{}),
		byRun:     make(map[uuid.UUID]map[string]struct{}),
	}
}

// SetMCPServer injects the mcp-go server after construction (breaks the init cycle).
func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

// Watch subscribes a session to a run's progress. Called by the watch_run tool.
func (r *SessionRegistry) Watch(sessionID string, runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bySession[sessionID] == nil {
		r.bySession[sessionID] = make(map[uuid.UUID]struct{})
	}
	r.bySession[sessionID][runID] = struct{}{}

	if r.byRun[runID] == nil {
		r.byRun[runID] = make(map[string]struct{})
	}
	r.byRun[runID][sessionID] = struct{}{}
}

// Unwatch drops one run from a session.
func (r *SessionRegistry) Unwatch(sessionID string, runID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(sessionID, runID)
}

// Unregister removes a closed session and returns how many runs it watched.
func (r *SessionRegistry) Unregister(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs := r.bySession[sessionID]
	n := len(runs)
	for runID := range runs {
		r.dropLocked(sessionID, runID)
	}
	delete(r.bySession, sessionID)
	return n
}

func (r *SessionRegistry) dropLocked(sessionID string, runID uuid.UUID) {
	if runs, ok := r.bySession[sessionID]; ok {
		delete(runs, runID)
		if len(runs) == 0 {
			delete(r.bySession, sessionID)
		}
	}
	if sessions, ok := r.byRun[runID]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.byRun, runID)
		}
	}
}

// Watchers returns the sessions watching runID.
func (r *SessionRegistry) Watchers(runID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byRun[runID]))
	for sessionID := range r.byRun[runID] {
		out = append(out, sessionID)
	}
	return out
}

// NotifyRunWatchers implements port/notifier.RunNotifier.
func (r *SessionRegistry) NotifyRunWatchers(_ context.Context, runID uuid.UUID, event any) error {
	targets := r.Watchers(runID)
	if len(targets) == 0 {
		return nil // nobody watching
	}

	r.mcpMu.RLock()
	srv := r.mcpSrv
	r.mcpMu.RUnlock()

	if srv == nil {
		return fmt.Errorf("mcp server not initialized")
	}

	params, err := toParams(event)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}

	var lastErr error
	for _, sessionID := range targets {
		if err := srv.SendNotificationToSpecificClient(sessionID, "notifications/message", params); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func toParams(event any) (map[string]any, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return map[string]any{"data": event}, nil
	}
	return params, nil
}
