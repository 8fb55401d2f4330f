package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownEntity is returned for entity types without a definition.
	ErrUnknownEntity = errors.New("workflow: unknown entity type")
	// ErrUnknownStatus is returned when a status is not registered for an entity.
	ErrUnknownStatus = errors.New("workflow: unknown status")
	// ErrIllegalTransition is returned when the target is not reachable from the current status.
	ErrIllegalTransition = errors.New("workflow: illegal transition")
)

// StatusDescriptor is the display style of one status.
type StatusDescriptor struct {
	Name            string `json:"name" yaml:"name"`
	Label           string `json:"label" yaml:"label"`
	TextColor       string `json:"textColor" yaml:"text_color"`
	BackgroundColor string `json:"backgroundColor" yaml:"background_color"`
	BorderColor     string `json:"borderColor" yaml:"border_color"`
}

// DefaultDescriptor is the neutral style used when a status is not registered.
func DefaultDescriptor(name string) StatusDescriptor {
	return StatusDescriptor{
		Name:            name,
		Label:           name,
		TextColor:       "#344054",
		BackgroundColor: "#F2F4F7",
		BorderColor:     "#D0D5DD",
	}
}

// Definition is one row of the workflow table: the statuses of an entity
// type, the transitions a user may trigger, and the terminal statuses.
type Definition struct {
	Entity      string              `json:"entity" yaml:"entity"`
	Statuses    []StatusDescriptor  `json:"statuses" yaml:"statuses"`
	Transitions map[string][]string `json:"transitions" yaml:"transitions"`
	Terminal    []string            `json:"terminal,omitempty" yaml:"terminal"`
	// Aliases maps display labels (e.g. "Accepted") to status tokens (e.g. "accepted").
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases"`
	// Disabled turns off user transitions for the whole entity.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled"`
}

type entry struct {
	def         Definition
	statuses    map[string]StatusDescriptor
	transitions map[string]map[string]struct{}
	terminal    map[string]struct{}
	aliases     map[string]string
	order       map[string]int
}

// Registry holds validated workflow definitions. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	entries map[string]*entry
}

// NewRegistry validates defs and builds a Registry.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry, len(defs))}
	var errs []error
	for _, def := range defs {
		e, err := buildEntry(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.entries[def.Entity]; dup {
			errs = append(errs, fmt.Errorf("workflow %s: duplicate definition", def.Entity))
			continue
		}
		r.entries[def.Entity] = e
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func buildEntry(def Definition) (*entry, error) {
	name := strings.TrimSpace(def.Entity)
	if name == "" {
		return nil, errors.New("workflow: entity type is required")
	}
	e := &entry{
		def:         def,
		statuses:    make(map[string]StatusDescriptor, len(def.Statuses)),
		transitions: make(map[string]map[string]struct{}, len(def.Transitions)),
		terminal:    make(map[string]struct{}, len(def.Terminal)),
		aliases:     make(map[string]string, len(def.Aliases)),
		order:       make(map[string]int, len(def.Statuses)),
	}
	var errs []error
	for i, s := range def.Statuses {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("workflow %s: status #%d has no name", name, i))
			continue
		}
		if _, dup := e.statuses[s.Name]; dup {
			errs = append(errs, fmt.Errorf("workflow %s: duplicate status %q", name, s.Name))
			continue
		}
		if s.Label == "" {
			s.Label = s.Name
		}
		e.statuses[s.Name] = s
		e.order[s.Name] = i
	}
	for from, targets := range def.Transitions {
		if _, ok := e.statuses[from]; !ok {
			errs = append(errs, fmt.Errorf("workflow %s: transition from unknown status %q", name, from))
			continue
		}
		set := make(map[string]struct{}, len(targets))
		for _, to := range targets {
			if _, ok := e.statuses[to]; !ok {
				errs = append(errs, fmt.Errorf("workflow %s: transition %s -> unknown status %q", name, from, to))
				continue
			}
			if to == from {
				continue
			}
			set[to] = struct{}{}
		}
		e.transitions[from] = set
	}
	for _, t := range def.Terminal {
		if _, ok := e.statuses[t]; !ok {
			errs = append(errs, fmt.Errorf("workflow %s: unknown terminal status %q", name, t))
			continue
		}
		if len(e.transitions[t]) > 0 {
			errs = append(errs, fmt.Errorf("workflow %s: terminal status %q has outgoing transitions", name, t))
			continue
		}
		e.terminal[t] = struct{}{}
	}
	for label, token := range def.Aliases {
		if _, ok := e.statuses[token]; !ok {
			errs = append(errs, fmt.Errorf("workflow %s: alias %q points to unknown status %q", name, label, token))
			continue
		}
		e.aliases[strings.ToLower(strings.TrimSpace(label))] = token
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return e, nil
}

// Entities lists the registered entity types in sorted order.
func (r *Registry) Entities() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Definition returns the definition registered for entity.
func (r *Registry) Definition(entity string) (Definition, bool) {
	e, ok := r.entries[entity]
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// Resolve maps a status token or display label to its canonical token.
func (r *Registry) Resolve(entity, status string) (string, error) {
	e, ok := r.entries[entity]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return e.resolve(status)
}

func (e *entry) resolve(status string) (string, error) {
	if _, ok := e.statuses[status]; ok {
		return status, nil
	}
	if token, ok := e.aliases[strings.ToLower(strings.TrimSpace(status))]; ok {
		return token, nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnknownStatus, e.def.Entity, status)
}

// Describe returns the display style of status for entity.
func (r *Registry) Describe(entity, status string) (StatusDescriptor, error) {
	e, ok := r.entries[entity]
	if !ok {
		return StatusDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	token, err := e.resolve(status)
	if err != nil {
		return StatusDescriptor{}, err
	}
	return e.statuses[token], nil
}

// DescribeOrDefault is Describe with the neutral style as fallback.
func (r *Registry) DescribeOrDefault(entity, status string) StatusDescriptor {
	d, err := r.Describe(entity, status)
	if err != nil {
		return DefaultDescriptor(status)
	}
	return d
}

// IsTerminal reports whether status is a terminal status of entity.
func (r *Registry) IsTerminal(entity, status string) bool {
	e, ok := r.entries[entity]
	if !ok {
		return false
	}
	token, err := e.resolve(status)
	if err != nil {
		return false
	}
	_, terminal := e.terminal[token]
	return terminal
}

// ReachableFrom returns the statuses a user may move entity to from current,
// in declaration order. It is empty for terminal or unknown statuses and for
// disabled entities. The slice is a fresh copy.
func (r *Registry) ReachableFrom(entity, current string) []string {
	e, ok := r.entries[entity]
	if !ok || e.def.Disabled {
		return []string{}
	}
	token, err := e.resolve(current)
	if err != nil {
		return []string{}
	}
	if _, terminal := e.terminal[token]; terminal {
		return []string{}
	}
	out := make([]string, 0, len(e.transitions[token]))
	for to := range e.transitions[token] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return e.order[out[i]] < e.order[out[j]] })
	return out
}

// IsLegalTransition reports whether to is reachable from from in one step.
func (r *Registry) IsLegalTransition(entity, from, to string) bool {
	e, ok := r.entries[entity]
	if !ok {
		return false
	}
	target, err := e.resolve(to)
	if err != nil {
		return false
	}
	for _, s := range r.ReachableFrom(entity, from) {
		if s == target {
			return true
		}
	}
	return false
}

// CheckTransition is IsLegalTransition returning ErrIllegalTransition.
func (r *Registry) CheckTransition(entity, from, to string) error {
	if !r.IsLegalTransition(entity, from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, entity, from, to)
	}
	return nil
}
