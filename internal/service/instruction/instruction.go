package instruction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainevent "github.com/alanyang/nlq-bench/internal/domain/event"
	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
	portinstruction "github.com/alanyang/nlq-bench/internal/port/instruction"
)

var (
	ErrNotFound    = errors.New("instruction not found")
	ErrInvalidName = errors.New("instruction name is required")
)

// Entry is one row of the instruction listing.
type Entry struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Custom      bool   `json:"custom"`
}

// Rendered is a previewed prompt for one instruction.
type Rendered struct {
	Key    string `json:"key"`
	System string `json:"system"`
	User   string `json:"user"`
	Prompt string `json:"prompt"`
}

// Service fronts the shared Registry for the transports and keeps runtime
// custom instructions in durable storage.
// [SRP] Instruction lookup, registration and persistence only.
// [DIP] Depends on the Repository and EventBus ports.
type Service struct {
	reg      *Registry
	repo     portinstruction.Repository
	eventBus porteventbus.EventBus
}

func NewService(reg *Registry, repo portinstruction.Repository, eventBus porteventbus.EventBus) *Service {
	return &Service{reg: reg, repo: repo, eventBus: eventBus}
}

// Registry returns the registry agents resolve instructions from.
func (s *Service) Registry() *Registry { return s.reg }

// Load registers every stored custom instruction. Called once at startup.
func (s *Service) Load(ctx context.Context) (int, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load custom instructions: %w", err)
	}
	for key, ins := range stored {
		s.reg.Register(key, ins)
	}
	return len(stored), nil
}

// Ensure makes key resolvable, reloading stored instructions when another
// process registered it. It reports whether key is now known.
func (s *Service) Ensure(ctx context.Context, key string) (bool, error) {
	if _, ok := s.reg.Get(key); ok {
		return true, nil
	}
	if _, err := s.Load(ctx); err != nil {
		return false, err
	}
	_, ok := s.reg.Get(key)
	return ok, nil
}

func (s *Service) Get(key string) (domaininstruction.Instruction, error) {
	ins, ok := s.reg.Get(key)
	if !ok {
		return domaininstruction.Instruction{}, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return ins, nil
}

// List returns every registered instruction sorted by key.
func (s *Service) List() []Entry {
	descriptions := s.reg.ListAll()
	out := make([]Entry, 0, len(descriptions))
	for _, key := range s.reg.Keys() {
		desc, ok := descriptions[key]
		if !ok {
			continue
		}
		out = append(out, Entry{
			Key:         key,
			Description: desc,
			Custom:      strings.HasPrefix(key, domaininstruction.CustomPrefix),
		})
	}
	return out
}

// AddCustom registers the instruction in memory, then persists it and
// announces the new key. The in-memory registration stands even when
// persistence fails.
func (s *Service) AddCustom(ctx context.Context, name, systemPrompt, userPromptTemplate, description string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}

	key := s.reg.AddCustom(name, systemPrompt, userPromptTemplate, description)
	ins, _ := s.reg.Get(key)

	if err := s.repo.Upsert(ctx, key, ins); err != nil {
		return key, fmt.Errorf("persist instruction %q: %w", key, err)
	}

	if err := s.eventBus.Publish(ctx, domainevent.InstructionAdded(key)); err != nil {
		slog.WarnContext(ctx, "failed to publish instruction event", "key", key, "error", err)
	}
	return key, nil
}

// Render previews the prompt an agent would send for key.
func (s *Service) Render(key, input, context string) (Rendered, error) {
	ins, err := s.Get(key)
	if err != nil {
		return Rendered{}, err
	}
	system, user, err := ins.RenderPrompt(input, context)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Key:    key,
		System: system,
		User:   user,
		Prompt: domaininstruction.Compose(system, user),
	}, nil
}
