package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

// Sentinel errors for catalog operations.
var (
	ErrTargetInvalid  = errors.New("target definition invalid")
	ErrTargetExists   = errors.New("target already exists")
	ErrTargetNotFound = errors.New("target not found")
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventTargetAdded EventType = iota
	EventElementsUpdated
	EventTargetRemoved
)

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type   EventType
	Target model.TargetDefinition
}

// TargetCatalog is an in-memory, thread-safe store of trackable
// targets and their orbital elements.
type TargetCatalog struct {
	mu sync.RWMutex

	targets map[string]*model.TargetDefinition

	subs []func(Event)
}

// NewTargetCatalog constructs an empty catalog.
func NewTargetCatalog() *TargetCatalog {
	return &TargetCatalog{
		targets: make(map[string]*model.TargetDefinition),
	}
}

// Add stores a new target. It returns ErrTargetExists if the ID is
// taken and ErrTargetInvalid if the definition does not hold up.
func (c *TargetCatalog) Add(t model.TargetDefinition) error {
	if err := ValidateTarget(t); err != nil {
		return err
	}
	if t.Name == "" {
		t.Name = t.ID
	}

	c.mu.Lock()
	if _, exists := c.targets[t.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTargetExists, t.ID)
	}
	c.targets[t.ID] = &t
	event := Event{Type: EventTargetAdded, Target: t}
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Get returns a copy of the target with the given ID.
func (c *TargetCatalog) Get(id string) (model.TargetDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.targets[id]
	if !ok {
		return model.TargetDefinition{}, fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}
	return *t, nil
}

// List returns a snapshot of all targets, ordered by ID.
func (c *TargetCatalog) List() []model.TargetDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.TargetDefinition, 0, len(c.targets))
	for _, t := range c.targets {
		res = append(res, *t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Len returns the number of targets.
func (c *TargetCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.targets)
}

// UpdateElements swaps in a fresh element set for a target and stamps
// the refresh time. Subscribers see an EventElementsUpdated carrying
// the new definition.
func (c *TargetCatalog) UpdateElements(id, line1, line2 string) error {
	if err := ValidateElements(line1, line2); err != nil {
		return err
	}

	c.mu.Lock()
	t, ok := c.targets[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}
	t.Line1 = line1
	t.Line2 = line2
	t.RefreshedAt = time.Now().UTC()
	event := Event{Type: EventElementsUpdated, Target: *t}
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Remove deletes a target.
func (c *TargetCatalog) Remove(id string) error {
	c.mu.Lock()
	t, ok := c.targets[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}
	delete(c.targets, id)
	event := Event{Type: EventTargetRemoved, Target: *t}
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Clear removes every target. Subscribers see one EventTargetRemoved
// per target, so bound scanners invalidate their pass lists.
func (c *TargetCatalog) Clear() {
	c.mu.Lock()
	events := make([]Event, 0, len(c.targets))
	for _, t := range c.targets {
		events = append(events, Event{Type: EventTargetRemoved, Target: *t})
	}
	c.targets = make(map[string]*model.TargetDefinition)
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Target.ID < events[j].Target.ID })
	for _, event := range events {
		for _, sub := range subs {
			sub(event)
		}
	}
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function.
func (c *TargetCatalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	idx := len(c.subs) - 1

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < 0 || idx >= len(c.subs) {
			return
		}
		c.subs = append(c.subs[:idx], c.subs[idx+1:]...)
		idx = -1
	}
}
