package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"naimuAdmin/internal/console/actionmenu"
	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/querystate"
	"naimuAdmin/internal/console/workflow"
	"naimuAdmin/internal/console/ws"
)

// Config is the subset of runtime configuration required by the HTTP handlers.
type Config struct {
	DefaultLimit  int
	AllowedLimits []int
	FetchTimeout  time.Duration
}

// Logger captures the logging contract required by the server.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// CapabilitySource resolves capabilities for a signed-in session.
type CapabilitySource interface {
	CapabilitiesFor(ctx context.Context, sessionID, screen, role string) permission.Capability
}

// Table is one list page served by the console.
type Table struct {
	Config    listview.TableConfig
	Presenter *actionmenu.Presenter
}

// Options aggregates the collaborators of the Server.
type Options struct {
	Tables        []Table
	Fetcher       listview.Fetcher
	Mutator       listview.Mutator
	Exporter      listview.Exporter
	Capabilities  CapabilitySource
	Workflows     *workflow.Registry
	Notifications *ws.NotificationHub
}

// Server provides HTTP handlers for the admin console list pages.
type Server struct {
	cfg     Config
	logger  Logger
	opts    Options
	tables  map[string]Table
	console *ws.ConsoleHub
}

// NewServer constructs a Server instance.
func NewServer(cfg Config, logger Logger, opts Options) (*Server, error) {
	if opts.Fetcher == nil || opts.Mutator == nil || opts.Capabilities == nil || opts.Workflows == nil {
		return nil, fmt.Errorf("console http: fetcher, mutator, capabilities and workflows are required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	s := &Server{cfg: cfg, logger: logger, opts: opts, tables: make(map[string]Table, len(opts.Tables))}
	for _, t := range opts.Tables {
		if t.Presenter == nil {
			t.Presenter = actionmenu.NewPresenter(actionmenu.Config{Entity: t.Config.Entity}, opts.Workflows)
		}
		s.tables[t.Config.Entity] = t
	}
	s.console = ws.NewConsoleHub(logger, s.bindConsole, cfg.FetchTimeout)
	return s, nil
}

// Register mounts console routes on the mux behind the auth chain.
func (s *Server) Register(mux *pat.PatternServeMux, auth alice.Chain) {
	mux.Get("/admin/resources/:entity/export", auth.ThenFunc(s.handleExport))
	mux.Get("/admin/resources/:entity", auth.ThenFunc(s.handleList))
	mux.Post("/admin/resources/:entity/filter", auth.ThenFunc(s.handleFilter))
	mux.Post("/admin/resources/:entity/page", auth.ThenFunc(s.handlePage))
	mux.Post("/admin/resources/:entity/limit", auth.ThenFunc(s.handleLimit))
	mux.Post("/admin/resources/:entity/:id/status", auth.ThenFunc(s.handleTransition))
	mux.Del("/admin/resources/:entity/:id", auth.ThenFunc(s.handleDelete))
	mux.Get("/admin/workflows/:entity", auth.ThenFunc(s.handleWorkflow))
	if s.opts.Notifications != nil {
		mux.Get("/ws/notifications", auth.ThenFunc(s.opts.Notifications.ServeWS))
	}
	mux.Get("/ws/console/:entity", auth.ThenFunc(s.console.ServeWS))
}

// ConsoleHub returns the live session hub.
func (s *Server) ConsoleHub() *ws.ConsoleHub {
	return s.console
}

type binding struct {
	table    Table
	ctrl     *listview.Controller
	nav      *requestNavigator
	notifier *collectingNotifier
}

type httpError struct {
	status int
	msg    string
}

func (e httpError) Error() string   { return e.msg }
func (e httpError) StatusCode() int { return e.status }

func (s *Server) codec(t Table) *querystate.Codec {
	return querystate.NewCodec(querystate.Config{
		FilterKeys:    t.Config.FilterKeys,
		DefaultLimit:  s.cfg.DefaultLimit,
		AllowedLimits: s.cfg.AllowedLimits,
	})
}

func (s *Server) controller(ctx context.Context, r *http.Request, t Table, nav listview.Navigator, notifier listview.Notifier) (*listview.Controller, error) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		return nil, httpError{status: http.StatusUnauthorized, msg: "unauthorized"}
	}
	return listview.NewController(t.Config, listview.Deps{
		Codec:     s.codec(t),
		Navigator: nav,
		Fetcher:   s.opts.Fetcher,
		Mutator:   s.opts.Mutator,
		Exporter:  s.opts.Exporter,
		Notifier:  notifier,
		Gate:      capabilityResolver{ctx: ctx, source: s.opts.Capabilities, sessionID: id.SessionID},
		Workflow:  s.opts.Workflows,
		Logger:    s.logger,
		Role:      id.Role,
	})
}

func (s *Server) bind(r *http.Request) (*binding, error) {
	entity := r.URL.Query().Get(":entity")
	t, ok := s.tables[entity]
	if !ok {
		return nil, httpError{status: http.StatusNotFound, msg: "unknown resource " + entity}
	}
	b := &binding{table: t, nav: newRequestNavigator(r.URL.Query()), notifier: &collectingNotifier{}}
	if id, ok := IdentityFrom(r.Context()); ok && s.opts.Notifications != nil {
		b.notifier.forward = s.opts.Notifications.Notifier(id.UserID)
	}
	ctrl, err := s.controller(r.Context(), r, t, b.nav, b.notifier)
	if err != nil {
		return nil, err
	}
	b.ctrl = ctrl
	return b, nil
}

func (s *Server) bindConsole(r *http.Request, nav listview.Navigator, notifier listview.Notifier) (*ws.Binding, error) {
	entity := r.URL.Query().Get(":entity")
	t, ok := s.tables[entity]
	if !ok {
		return nil, httpError{status: http.StatusNotFound, msg: "unknown resource " + entity}
	}
	ctrl, err := s.controller(context.Background(), r, t, nav, notifier)
	if err != nil {
		return nil, err
	}
	if !ctrl.Capability().View {
		return nil, httpError{status: http.StatusForbidden, msg: permission.DeniedMessage(permission.ActionView)}
	}
	return &ws.Binding{
		Controller: ctrl,
		Render:     func(v listview.View) interface{} { return render(t, ctrl, v, nil) },
	}, nil
}

// ListResponse is the body of every list-view response.
type ListResponse struct {
	View        listview.View           `json:"view"`
	Columns     []listview.Column       `json:"columns"`
	Capability  permission.Capability   `json:"capability"`
	Mode        actionmenu.Mode         `json:"mode"`
	Affordances []actionmenu.Affordance `json:"affordances"`
	Notes       []Note                  `json:"notifications,omitempty"`
	Location    string                  `json:"location,omitempty"`
}

func render(t Table, ctrl *listview.Controller, v listview.View, notes []Note) ListResponse {
	capability := ctrl.Capability()
	affordances := make([]actionmenu.Affordance, 0, len(v.Rows))
	for _, row := range v.Rows {
		affordances = append(affordances, t.Presenter.Describe(row, capability, ctrl.Reachable(row)))
	}
	columns := t.Config.Columns
	if columns == nil {
		columns = []listview.Column{}
	}
	return ListResponse{
		View:        v,
		Columns:     columns,
		Capability:  capability,
		Mode:        t.Presenter.Mode(),
		Affordances: affordances,
		Notes:       notes,
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *binding, err error) {
	if err != nil && !errors.Is(err, listview.ErrFetchFailed) {
		s.logger.Infof("console: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, statusFor(err), map[string]interface{}{
			"error":         err.Error(),
			"notifications": b.notifier.collected(),
		})
		return
	}

	resp := render(b.table, b.ctrl, b.ctrl.View(), b.notifier.collected())
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	if loc, moved := b.nav.location("/admin/resources/" + b.table.Config.Entity); moved {
		resp.Location = loc
		w.Header().Set("Location", loc)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	b, err := s.bind(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !b.ctrl.Capability().View {
		writeError(w, http.StatusForbidden, permission.DeniedMessage(permission.ActionView))
		return
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()
	s.respond(w, r, b, b.ctrl.Load(ctx))
}

type filterRequest struct {
	Filters map[string]string `json:"filters"`
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	b, err := s.bind(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()
	s.respond(w, r, b, b.ctrl.OnFilterSubmit(ctx, querystate.NewFilterState(req.Filters)))
}

type pageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	b, err := s.bind(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()
	s.respond(w, r, b, b.ctrl.OnPageChange(ctx, req.Page))
}

func (s *Server) handleLimit(w http.ResponseWriter, r *http.Request) {
	b, err := s.bind(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()
	s.respond(w, r, b, b.ctrl.OnLimitChange(ctx, req.Limit))
}

type transitionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	b, err := s.bind(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil || req.To == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cfg := b.ctrl.Config()
	row := listview.Row{cfg.IDKey: r.URL.Query().Get(":id"), cfg.StatusKey: req.From}

	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()
	err = actionmenu.Dispatch(ctx, b.ctrl, row, actionmenu.Choice{Kind: actionmenu.KindTransition, Target: req.To})
	s.respond(w, r, b, err)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	b, err := s.bind(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	row := listview.Row{b.ctrl.Config().IDKey: r.URL.Query().Get(":id")}

	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()
	err = actionmenu.Dispatch(ctx, b.ctrl, row, actionmenu.Choice{Kind: actionmenu.KindDelete})
	s.respond(w, r, b, err)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	b, err := s.bind(r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	ctx, cancel := s.contextWithTimeout(r)
	defer cancel()
	ref, err := b.ctrl.Export(ctx)
	if err != nil {
		s.logger.Errorf("console: export %s: %v", b.table.Config.Entity, err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"export": ref})
}

type workflowResponse struct {
	Entity      string                      `json:"entity"`
	Statuses    []workflow.StatusDescriptor `json:"statuses"`
	Transitions map[string][]string         `json:"transitions"`
	Terminal    []string                    `json:"terminal"`
	Aliases     map[string]string           `json:"aliases,omitempty"`
	Disabled    bool                        `json:"disabled,omitempty"`
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get(":entity")
	def, ok := s.opts.Workflows.Definition(entity)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown workflow "+entity)
		return
	}
	transitions := make(map[string][]string, len(def.Statuses))
	for _, st := range def.Statuses {
		transitions[st.Name] = s.opts.Workflows.ReachableFrom(entity, st.Name)
	}
	terminal := def.Terminal
	if terminal == nil {
		terminal = []string{}
	}
	writeJSON(w, http.StatusOK, workflowResponse{
		Entity:      def.Entity,
		Statuses:    def.Statuses,
		Transitions: transitions,
		Terminal:    terminal,
		Aliases:     def.Aliases,
		Disabled:    def.Disabled,
	})
}
