package permission

import (
	"errors"
	"strings"
	"sync"
)

// Action is one of the four capabilities a screen grants.
type Action string

const (
	ActionView   Action = "view"
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// ErrPermissionDenied is returned when the signed-in role lacks a capability.
var ErrPermissionDenied = errors.New("permission: denied")

// DeniedMessage is the user-facing notification text for a denied action.
func DeniedMessage(a Action) string {
	switch a {
	case ActionEdit:
		return "no permission to update status"
	case ActionDelete:
		return "no permission to delete"
	case ActionAdd:
		return "no permission to create"
	default:
		return "no permission to view"
	}
}

// ParseAction maps a string to an Action.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionView:
		return ActionView, true
	case ActionAdd:
		return ActionAdd, true
	case ActionEdit:
		return ActionEdit, true
	case ActionDelete:
		return ActionDelete, true
	}
	return "", false
}

// Capability is what one role may do on one screen.
type Capability struct {
	ScreenID string `json:"screenId"`
	View     bool   `json:"view"`
	Add      bool   `json:"add"`
	Edit     bool   `json:"edit"`
	Delete   bool   `json:"delete"`
}

// Allows reports whether the capability grants a.
func (c Capability) Allows(a Action) bool {
	switch a {
	case ActionView:
		return c.View
	case ActionAdd:
		return c.Add
	case ActionEdit:
		return c.Edit
	case ActionDelete:
		return c.Delete
	}
	return false
}

// Intersect keeps only the flags granted by both capabilities.
func (c Capability) Intersect(o Capability) Capability {
	return Capability{
		ScreenID: c.ScreenID,
		View:     c.View && o.View,
		Add:      c.Add && o.Add,
		Edit:     c.Edit && o.Edit,
		Delete:   c.Delete && o.Delete,
	}
}

// Check reports whether c grants a. It is called before rendering a mutating
// affordance and again before committing the mutation.
func Check(c Capability, a Action) bool {
	return c.Allows(a)
}

// Table maps screen -> role -> capability.
type Table struct {
	screens map[string]map[string]Capability
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{screens: make(map[string]map[string]Capability)}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// Grant adds actions for role on screen.
func (t *Table) Grant(screen, role string, actions ...Action) {
	screen = strings.TrimSpace(screen)
	role = normalizeRole(role)
	if screen == "" || role == "" {
		return
	}
	roles, ok := t.screens[screen]
	if !ok {
		roles = make(map[string]Capability)
		t.screens[screen] = roles
	}
	c := roles[role]
	c.ScreenID = screen
	for _, a := range actions {
		switch a {
		case ActionView:
			c.View = true
		case ActionAdd:
			c.Add = true
		case ActionEdit:
			c.Edit = true
		case ActionDelete:
			c.Delete = true
		}
	}
	roles[role] = c
}

// Set replaces the capability of role on screen.
func (t *Table) Set(screen, role string, c Capability) {
	screen = strings.TrimSpace(screen)
	role = normalizeRole(role)
	if screen == "" || role == "" {
		return
	}
	roles, ok := t.screens[screen]
	if !ok {
		roles = make(map[string]Capability)
		t.screens[screen] = roles
	}
	c.ScreenID = screen
	roles[role] = c
}

// Merge copies every entry of other into t, replacing existing ones.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for screen, roles := range other.screens {
		for role, c := range roles {
			t.Set(screen, role, c)
		}
	}
}

// Lookup returns the stored capability and whether one exists.
func (t *Table) Lookup(screen, role string) (Capability, bool) {
	roles, ok := t.screens[screen]
	if !ok {
		return Capability{}, false
	}
	c, ok := roles[normalizeRole(role)]
	return c, ok
}

// Screens returns the number of screens in the table.
func (t *Table) Screens() int {
	return len(t.screens)
}

// Gate resolves capabilities for a screen and role. The table can be
// replaced at runtime; lookups are safe for concurrent use.
type Gate struct {
	mu    sync.RWMutex
	table *Table
}

// NewGate constructs a Gate over t.
func NewGate(t *Table) *Gate {
	if t == nil {
		t = NewTable()
	}
	return &Gate{table: t}
}

// Replace swaps the underlying table.
func (g *Gate) Replace(t *Table) {
	if t == nil {
		t = NewTable()
	}
	g.mu.Lock()
	g.table = t
	g.mu.Unlock()
}

// CapabilitiesFor returns the capability of role on screen. Unknown screens
// and roles yield an all-false capability.
func (g *Gate) CapabilitiesFor(screenID, role string) Capability {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.table.Lookup(screenID, role)
	if !ok {
		return Capability{ScreenID: screenID}
	}
	return c
}
