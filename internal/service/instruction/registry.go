package instruction

import (
	"sort"
	"sync"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
)

// Registry maps keys to instructions. Keys are unique and the last write wins.
// Instances are independent; the server builds exactly one in wire and shares
// it between requests, hence the lock.
type Registry struct {
	mu    sync.RWMutex
	items map[string]domaininstruction.Instruction
}

// NewRegistry returns a registry seeded with the default instructions.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for key, ins := range domaininstruction.Defaults() {
		r.items[key] = ins
	}
	return r
}

func NewEmptyRegistry() *Registry {
	return &Registry{items: make(map[string]domaininstruction.Instruction)}
}

// Register inserts or overwrites the instruction under key. The template is
// not validated here; a malformed one fails when rendered.
func (r *Registry) Register(key string, ins domaininstruction.Instruction) {
	r.mu.Lock()
	r.items[key] = ins
	r.mu.Unlock()
}

// Get returns the instruction for key. A missing key is not an error.
func (r *Registry) Get(key string) (domaininstruction.Instruction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ins, ok := r.items[key]
	return ins, ok
}

// ListAll returns key → description for every registered instruction.
func (r *Registry) ListAll() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.items))
	for key, ins := range r.items {
		out[key] = ins.Description
	}
	return out
}

// AddCustom registers a runtime instruction under "custom_"+name and returns
// that key. An existing custom instruction with the same name is replaced.
func (r *Registry) AddCustom(name, systemPrompt, userPromptTemplate, description string) string {
	key := CustomKey(name)
	r.Register(key, domaininstruction.New(name, systemPrompt, userPromptTemplate, description))
	return key
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.items))
	for key := range r.items {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// CustomKey is the registry key AddCustom uses for name.
func CustomKey(name string) string {
	return domaininstruction.CustomPrefix + name
}
