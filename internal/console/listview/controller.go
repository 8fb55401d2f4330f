package listview

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/querystate"
	"naimuAdmin/internal/console/workflow"
)

var (
	// ErrFetchFailed wraps failures of the data collaborator.
	ErrFetchFailed = errors.New("listview: fetch failed")
	// ErrMutationFailed wraps failures of the mutation collaborator.
	ErrMutationFailed = errors.New("listview: mutation failed")
	// ErrSuperseded is returned when a newer request took over the view
	// before this one settled; its response was discarded.
	ErrSuperseded = errors.New("listview: superseded by a newer request")
	// ErrNoExporter is returned by Export when no exporter is configured.
	ErrNoExporter = errors.New("listview: export not configured")
)

// Phase is the state of a page view.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseLoading       Phase = "loading"
	PhaseLoaded        Phase = "loaded"
	PhaseFiltering     Phase = "filtering"
	PhasePaginating    Phase = "paginating"
	PhaseTransitioning Phase = "transitioning"
	PhaseError         Phase = "error"
)

// TableConfig is the static description of one list table.
type TableConfig struct {
	Entity     string
	ScreenID   string
	IDKey      string
	StatusKey  string
	Columns    []Column
	FilterKeys []string
}

func (c TableConfig) withDefaults() TableConfig {
	if c.IDKey == "" {
		c.IDKey = "id"
	}
	if c.StatusKey == "" {
		c.StatusKey = "status"
	}
	if c.ScreenID == "" {
		c.ScreenID = c.Entity
	}
	return c
}

// Deps aggregates the collaborators of a Controller.
type Deps struct {
	Codec     *querystate.Codec
	Navigator Navigator
	Fetcher   Fetcher
	Mutator   Mutator
	Exporter  Exporter
	Notifier  Notifier
	Gate      CapabilityResolver
	Workflow  Workflow
	Logger    Logger
	Role      string
}

// Validate ensures the mandatory collaborators are present.
func (d *Deps) Validate() error {
	if d == nil {
		return fmt.Errorf("listview deps are nil")
	}
	if d.Codec == nil {
		return fmt.Errorf("listview deps Codec is required")
	}
	if d.Navigator == nil {
		return fmt.Errorf("listview deps Navigator is required")
	}
	if d.Fetcher == nil {
		return fmt.Errorf("listview deps Fetcher is required")
	}
	if d.Mutator == nil {
		return fmt.Errorf("listview deps Mutator is required")
	}
	if d.Gate == nil {
		return fmt.Errorf("listview deps Gate is required")
	}
	if d.Workflow == nil {
		return fmt.Errorf("listview deps Workflow is required")
	}
	if d.Notifier == nil {
		d.Notifier = discardNotifier{}
	}
	if d.Logger == nil {
		d.Logger = discardLogger{}
	}
	return nil
}

// Controller drives one list page view. The URL behind the Navigator is the
// source of truth for filters and pagination; every fetch decodes it at
// dispatch time and only the latest fetch may update the view.
type Controller struct {
	cfg  TableConfig
	deps Deps

	// navMu serialises read-merge-write cycles on the URL.
	navMu sync.Mutex

	mu         sync.Mutex
	phase      Phase
	seq        uint64
	filters    querystate.FilterState
	page       querystate.PageState
	rows       []Row
	total      int
	totalPages int
	lastErr    error
}

// NewController constructs a Controller for one table.
func NewController(cfg TableConfig, deps Deps) (*Controller, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if cfg.Entity == "" {
		return nil, fmt.Errorf("listview table entity is required")
	}
	return &Controller{
		cfg:   cfg.withDefaults(),
		deps:  deps,
		phase: PhaseIdle,
		page:  deps.Codec.DefaultPageState(),
	}, nil
}

// Config returns the table configuration.
func (c *Controller) Config() TableConfig {
	return c.cfg
}

// Capability returns the signed-in role's capability on this screen.
func (c *Controller) Capability() permission.Capability {
	return c.deps.Gate.CapabilitiesFor(c.cfg.ScreenID, c.deps.Role)
}

// Reachable returns the statuses row may be moved to.
func (c *Controller) Reachable(row Row) []string {
	return c.deps.Workflow.ReachableFrom(c.cfg.Entity, row.String(c.cfg.StatusKey))
}

// RowID returns the identity of row.
func (c *Controller) RowID(row Row) string {
	return row.String(c.cfg.IDKey)
}

// Load fetches the page described by the current URL.
func (c *Controller) Load(ctx context.Context) error {
	return c.refresh(ctx, PhaseLoading)
}

// Refresh re-fetches the current URL; it is the retry affordance after a
// failed fetch.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.refresh(ctx, PhaseLoading)
}

// OnFilterSubmit replaces the table's filters and resets to page 1.
func (c *Controller) OnFilterSubmit(ctx context.Context, filters querystate.FilterState) error {
	c.ApplyFilter(filters)
	return c.RefreshAs(ctx, PhaseFiltering)
}

// OnPageChange moves to page n; filters are untouched.
func (c *Controller) OnPageChange(ctx context.Context, n int) error {
	c.ApplyPage(n)
	return c.RefreshAs(ctx, PhasePaginating)
}

// OnLimitChange changes the page size and resets to page 1.
func (c *Controller) OnLimitChange(ctx context.Context, n int) error {
	if err := c.ApplyLimit(n); err != nil {
		return err
	}
	return c.RefreshAs(ctx, PhasePaginating)
}

// ApplyFilter merges filters into the URL and resets to page 1 without
// fetching. Callers that queue user input apply merges in arrival order and
// fetch with RefreshAs afterwards.
func (c *Controller) ApplyFilter(filters querystate.FilterState) {
	c.navigate(c.deps.Codec.FilterUpdate(filters))
}

// ApplyPage merges page n into the URL without fetching.
func (c *Controller) ApplyPage(n int) {
	if n < 1 {
		n = 1
	}
	c.navigate(querystate.PageUpdate(n))
}

// ApplyLimit merges limit n into the URL, resetting to page 1, without
// fetching.
func (c *Controller) ApplyLimit(n int) error {
	if !c.deps.Codec.AllowsLimit(n) {
		return fmt.Errorf("%w: limit %d", querystate.ErrInvalidQueryState, n)
	}
	c.navigate(querystate.LimitUpdate(n))
	return nil
}

// RefreshAs fetches the current URL with the view in phase.
func (c *Controller) RefreshAs(ctx context.Context, phase Phase) error {
	return c.refresh(ctx, phase)
}

// OnTransitionRequest moves row to target. The permission and legality
// checks run here even when the menu already filtered the choice.
func (c *Controller) OnTransitionRequest(ctx context.Context, row Row, target string) error {
	if !permission.Check(c.Capability(), permission.ActionEdit) {
		c.deps.Notifier.Notify(permission.DeniedMessage(permission.ActionEdit), SeverityWarning)
		return fmt.Errorf("%w: %s on %s", permission.ErrPermissionDenied, permission.ActionEdit, c.cfg.ScreenID)
	}

	id := c.RowID(row)
	from := row.String(c.cfg.StatusKey)
	if !c.deps.Workflow.IsLegalTransition(c.cfg.Entity, from, target) {
		c.deps.Logger.Infof("listview: %s %s: refused %s -> %s", c.cfg.Entity, id, from, target)
		return fmt.Errorf("%w: %s %s -> %s", workflow.ErrIllegalTransition, c.cfg.Entity, from, target)
	}

	prev := c.setPhase(PhaseTransitioning)
	if err := c.deps.Mutator.Mutate(ctx, c.cfg.Entity, id, Patch{c.cfg.StatusKey: target}); err != nil {
		c.restorePhase(PhaseTransitioning, prev)
		c.deps.Logger.Errorf("listview: %s %s: transition %s -> %s failed: %v", c.cfg.Entity, id, from, target, err)
		c.deps.Notifier.Notify("failed to update status", SeverityError)
		return fmt.Errorf("%w: %v", ErrMutationFailed, err)
	}
	return c.refresh(ctx, PhaseTransitioning)
}

// OnDeleteRequest deletes row after the delete capability check.
func (c *Controller) OnDeleteRequest(ctx context.Context, row Row) error {
	if !permission.Check(c.Capability(), permission.ActionDelete) {
		c.deps.Notifier.Notify(permission.DeniedMessage(permission.ActionDelete), SeverityWarning)
		return fmt.Errorf("%w: %s on %s", permission.ErrPermissionDenied, permission.ActionDelete, c.cfg.ScreenID)
	}

	id := c.RowID(row)
	prev := c.setPhase(PhaseTransitioning)
	if err := c.deps.Mutator.Delete(ctx, c.cfg.Entity, id); err != nil {
		c.restorePhase(PhaseTransitioning, prev)
		c.deps.Logger.Errorf("listview: %s %s: delete failed: %v", c.cfg.Entity, id, err)
		c.deps.Notifier.Notify("failed to delete", SeverityError)
		return fmt.Errorf("%w: %v", ErrMutationFailed, err)
	}
	return c.refresh(ctx, PhaseTransitioning)
}

// Export hands the full filtered row-set of the current URL to the exporter.
func (c *Controller) Export(ctx context.Context) (string, error) {
	if !permission.Check(c.Capability(), permission.ActionView) {
		c.deps.Notifier.Notify(permission.DeniedMessage(permission.ActionView), SeverityWarning)
		return "", fmt.Errorf("%w: %s on %s", permission.ErrPermissionDenied, permission.ActionView, c.cfg.ScreenID)
	}
	set, err := c.ExportSet(ctx)
	if err != nil {
		return "", err
	}
	if c.deps.Exporter == nil {
		return "", ErrNoExporter
	}
	ref, err := c.deps.Exporter.Export(ctx, set)
	if err != nil {
		c.deps.Notifier.Notify("export failed", SeverityError)
		return "", fmt.Errorf("listview: export %s: %w", c.cfg.Entity, err)
	}
	return ref, nil
}

// ExportSet collects the unpaginated rows matching the current filters.
func (c *Controller) ExportSet(ctx context.Context) (ExportSet, error) {
	filters, _ := c.decode(c.deps.Navigator.Query())
	rows, err := c.deps.Fetcher.FetchAll(ctx, c.cfg.Entity, filters)
	if err != nil {
		return ExportSet{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if rows == nil {
		rows = []Row{}
	}
	return ExportSet{
		Entity:  c.cfg.Entity,
		Columns: append([]Column(nil), c.cfg.Columns...),
		Filters: filters.Map(),
		Rows:    rows,
	}, nil
}

func (c *Controller) navigate(u querystate.Update) {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	c.deps.Navigator.Navigate(querystate.Encode(c.deps.Navigator.Query(), u))
}

func (c *Controller) decode(q url.Values) (querystate.FilterState, querystate.PageState) {
	filters, page, err := c.deps.Codec.Decode(q)
	if err != nil {
		c.deps.Logger.Infof("listview: %s: %v", c.cfg.Entity, err)
	}
	return filters, page
}

func (c *Controller) setPhase(p Phase) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.phase
	c.phase = p
	return prev
}

// restorePhase puts prev back unless another request changed the phase.
func (c *Controller) restorePhase(expected, prev Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == expected {
		c.phase = prev
	}
}

func (c *Controller) refresh(ctx context.Context, phase Phase) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.phase = phase
	c.mu.Unlock()

	filters, page := c.decode(c.deps.Navigator.Query())
	result, err := c.deps.Fetcher.Fetch(ctx, c.cfg.Entity, filters, page)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.deps.Logger.Infof("listview: %s: discarding response #%d, latest is #%d", c.cfg.Entity, seq, c.seq)
		return ErrSuperseded
	}
	c.filters = filters
	c.page = page
	if err != nil {
		c.phase = PhaseError
		c.lastErr = fmt.Errorf("%w: %v", ErrFetchFailed, err)
		c.rows = nil
		c.total = 0
		c.totalPages = 0
		c.deps.Logger.Errorf("listview: %s: %v", c.cfg.Entity, c.lastErr)
		return c.lastErr
	}
	c.rows = result.Rows
	c.total = result.Total
	c.totalPages = result.TotalPages
	c.lastErr = nil
	c.phase = PhaseLoaded
	return nil
}

// View is a snapshot of the controller state.
type View struct {
	Entity     string               `json:"entity"`
	Phase      Phase                `json:"phase"`
	Filters    map[string]string    `json:"filters"`
	Page       querystate.PageState `json:"pagination"`
	Query      string               `json:"query"`
	Rows       []Row                `json:"rows"`
	Total      int                  `json:"total"`
	TotalPages int                  `json:"totalPages"`
	Error      string               `json:"error,omitempty"`
	Retryable  bool                 `json:"retryable,omitempty"`
	Seq        uint64               `json:"seq"`
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make([]Row, len(c.rows))
	copy(rows, c.rows)
	v := View{
		Entity:     c.cfg.Entity,
		Phase:      c.phase,
		Filters:    c.filters.Map(),
		Page:       c.page,
		Query:      querystate.EncodeState(c.filters, c.page).Encode(),
		Rows:       rows,
		Total:      c.total,
		TotalPages: c.totalPages,
		Seq:        c.seq,
	}
	if c.lastErr != nil {
		v.Error = c.lastErr.Error()
		v.Retryable = c.phase == PhaseError
	}
	return v
}

type discardNotifier struct{}

func (discardNotifier) Notify(string, Severity) {}

type discardLogger struct{}

func (discardLogger) Infof(string, ...interface{})  {}
func (discardLogger) Errorf(string, ...interface{}) {}
