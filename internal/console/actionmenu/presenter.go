package actionmenu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/workflow"
)

// Mode is how a table exposes row actions. It is static per table.
type Mode string

const (
	ModeDetails Mode = "details"
	ModeMenu    Mode = "menu"
	ModeDirect  Mode = "direct"
)

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDetails, ModeMenu, ModeDirect:
		return m, nil
	}
	return "", fmt.Errorf("actionmenu: unknown mode %q", s)
}

// Kind of a single affordance item.
type Kind string

const (
	KindDetails    Kind = "details"
	KindTransition Kind = "transition"
	KindToggle     Kind = "toggle"
	KindDelete     Kind = "delete"
)

// ErrUnsupportedChoice is returned by Dispatch for choices that do not mutate.
var ErrUnsupportedChoice = errors.New("actionmenu: unsupported choice")

// Item is one affordance offered for a row.
type Item struct {
	Kind   Kind                       `json:"kind"`
	Target string                     `json:"target,omitempty"`
	Status *workflow.StatusDescriptor `json:"status,omitempty"`
	Href   string                     `json:"href,omitempty"`
}

// Affordance is everything a row offers to the signed-in role.
type Affordance struct {
	Mode  Mode   `json:"mode"`
	RowID string `json:"rowId"`
	Items []Item `json:"items"`
}

// Mutating reports whether any item changes data.
func (a Affordance) Mutating() bool {
	for _, it := range a.Items {
		if it.Kind != KindDetails {
			return true
		}
	}
	return false
}

// Describer resolves the display descriptor of a status.
type Describer interface {
	DescribeOrDefault(entity, status string) workflow.StatusDescriptor
}

// Config is the static presentation of one table.
type Config struct {
	Entity string
	Mode   Mode
	IDKey  string
	// DetailsPath is a route template; ":id" is replaced by the row ID.
	DetailsPath string
}

// Presenter derives per-row affordances. It holds no mutable state.
type Presenter struct {
	cfg       Config
	describer Describer
}

// NewPresenter constructs a Presenter.
func NewPresenter(cfg Config, describer Describer) *Presenter {
	if cfg.IDKey == "" {
		cfg.IDKey = "id"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeMenu
	}
	return &Presenter{cfg: cfg, describer: describer}
}

// Mode returns the table's mode.
func (p *Presenter) Mode() Mode {
	return p.cfg.Mode
}

// Describe computes the affordance of row from the role's capability and the
// statuses reachable from the row's current status.
func (p *Presenter) Describe(row listview.Row, c permission.Capability, reachable []string) Affordance {
	id := row.String(p.cfg.IDKey)
	a := Affordance{Mode: p.cfg.Mode, RowID: id, Items: []Item{}}

	switch p.cfg.Mode {
	case ModeDetails:
		if c.View {
			a.Items = append(a.Items, Item{Kind: KindDetails, Href: p.detailsHref(id)})
		}
	case ModeMenu:
		if c.Edit {
			for _, target := range reachable {
				a.Items = append(a.Items, Item{Kind: KindTransition, Target: target, Status: p.describe(target)})
			}
		}
		if c.Delete {
			a.Items = append(a.Items, Item{Kind: KindDelete})
		}
	case ModeDirect:
		switch {
		case c.Edit && len(reachable) == 1:
			a.Items = append(a.Items, Item{Kind: KindToggle, Target: reachable[0], Status: p.describe(reachable[0])})
		case c.Delete:
			a.Items = append(a.Items, Item{Kind: KindDelete})
		}
	}
	return a
}

func (p *Presenter) describe(status string) *workflow.StatusDescriptor {
	var d workflow.StatusDescriptor
	if p.describer != nil {
		d = p.describer.DescribeOrDefault(p.cfg.Entity, status)
	} else {
		d = workflow.DefaultDescriptor(status)
	}
	return &d
}

func (p *Presenter) detailsHref(id string) string {
	if p.cfg.DetailsPath == "" || id == "" {
		return ""
	}
	return strings.ReplaceAll(p.cfg.DetailsPath, ":id", id)
}

// Handler receives the user's choice. The list controller implements it.
type Handler interface {
	OnTransitionRequest(ctx context.Context, row listview.Row, target string) error
	OnDeleteRequest(ctx context.Context, row listview.Row) error
}

// Choice is what the user picked from an affordance.
type Choice struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target,omitempty"`
}

// Dispatch forwards choice to h.
func Dispatch(ctx context.Context, h Handler, row listview.Row, choice Choice) error {
	switch choice.Kind {
	case KindTransition, KindToggle:
		if choice.Target == "" {
			return fmt.Errorf("%w: %s without target", ErrUnsupportedChoice, choice.Kind)
		}
		return h.OnTransitionRequest(ctx, row, choice.Target)
	case KindDelete:
		return h.OnDeleteRequest(ctx, row)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedChoice, choice.Kind)
	}
}
