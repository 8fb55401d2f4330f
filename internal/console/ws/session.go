package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"naimuAdmin/internal/console/actionmenu"
	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/querystate"
)

// Binding is what a console session drives: one list controller and the
// function turning its view into the pushed payload.
type Binding struct {
	Controller *listview.Controller
	Render     func(listview.View) interface{}
}

// Binder builds the binding of a console session. nav starts at the query
// string of the websocket request.
type Binder func(r *http.Request, nav listview.Navigator, notifier listview.Notifier) (*Binding, error)

// Command is a client message of a console session.
type Command struct {
	Type    string            `json:"type"`
	Filters map[string]string `json:"filters,omitempty"`
	Page    int               `json:"page,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	ID      string            `json:"id,omitempty"`
	Target  string            `json:"target,omitempty"`
}

type message struct {
	Type     string            `json:"type"`
	Command  string            `json:"command,omitempty"`
	Data     interface{}       `json:"data,omitempty"`
	Error    string            `json:"error,omitempty"`
	Message  string            `json:"message,omitempty"`
	Severity listview.Severity `json:"severity,omitempty"`
}

// ErrRowNotLoaded is returned for commands naming a row outside the view.
var ErrRowNotLoaded = errors.New("ws: row not in current view")

// ConsoleHub serves live list-page sessions. Each session owns a long-lived
// controller whose URL is kept in memory. URL changes are applied in the
// order commands arrive; fetches run concurrently and the controller
// discards stale responses.
type ConsoleHub struct {
	logger   Logger
	bind     Binder
	timeout  time.Duration
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

// NewConsoleHub constructs a ConsoleHub. timeout bounds every command.
func NewConsoleHub(logger Logger, bind Binder, timeout time.Duration) *ConsoleHub {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ConsoleHub{
		logger:  logger,
		bind:    bind,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type session struct {
	hub     *ConsoleHub
	binding *Binding
	ctx     context.Context
	cancel  context.CancelFunc

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// ServeWS upgrades the request and runs a console session until the client
// goes away.
func (h *ConsoleHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	s := &session{hub: h}
	nav := listview.NewMemoryNavigator(sessionQuery(r.URL.Query()))
	binding, err := h.bind(r, nav, sessionNotifier{s})
	if err != nil {
		status := http.StatusBadRequest
		var se interface{ StatusCode() int }
		if errors.As(err, &se) {
			status = se.StatusCode()
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.binding = binding

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.errorf("console ws upgrade failed: %v", err)
		return
	}
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	entity := binding.Controller.Config().Entity
	h.infof("console: session on %s opened", entity)

	go s.pingLoop()
	s.run("load", func(ctx context.Context) error { return binding.Controller.Load(ctx) })
	s.readLoop()
	h.infof("console: session on %s closed", entity)
}

// Wait blocks until every in-flight command of every session settled.
func (h *ConsoleHub) Wait() {
	h.wg.Wait()
}

func (s *session) readLoop() {
	defer s.close()

	s.conn.SetReadLimit(16 << 10)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(data)), "ping") {
			s.writeRaw([]byte("pong"))
			continue
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.write(message{Type: "error", Error: "invalid command"})
			continue
		}
		s.dispatch(cmd)
	}
}

// dispatch applies URL merges on the read loop, in arrival order, and runs
// only the fetch or mutation off it.
func (s *session) dispatch(cmd Command) {
	ctrl := s.binding.Controller
	var fn func(ctx context.Context) error
	switch cmd.Type {
	case "load":
		fn = ctrl.Load
	case "refresh":
		fn = ctrl.Refresh
	case "filter":
		ctrl.ApplyFilter(querystate.NewFilterState(cmd.Filters))
		fn = func(ctx context.Context) error { return ctrl.RefreshAs(ctx, listview.PhaseFiltering) }
	case "page":
		ctrl.ApplyPage(cmd.Page)
		fn = func(ctx context.Context) error { return ctrl.RefreshAs(ctx, listview.PhasePaginating) }
	case "limit":
		if err := ctrl.ApplyLimit(cmd.Limit); err != nil {
			s.write(message{Type: "error", Command: cmd.Type, Error: err.Error()})
			return
		}
		fn = func(ctx context.Context) error { return ctrl.RefreshAs(ctx, listview.PhasePaginating) }
	case "transition", "delete":
		choice := actionmenu.Choice{Kind: actionmenu.KindTransition, Target: cmd.Target}
		if cmd.Type == "delete" {
			choice = actionmenu.Choice{Kind: actionmenu.KindDelete}
		}
		fn = func(ctx context.Context) error {
			row, ok := s.findRow(cmd.ID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrRowNotLoaded, cmd.ID)
			}
			return actionmenu.Dispatch(ctx, ctrl, row, choice)
		}
	default:
		s.write(message{Type: "error", Command: cmd.Type, Error: "unknown command"})
		return
	}
	s.run(cmd.Type, fn)
}

func (s *session) findRow(id string) (listview.Row, bool) {
	ctrl := s.binding.Controller
	for _, row := range ctrl.View().Rows {
		if ctrl.RowID(row) == id {
			return row, true
		}
	}
	return nil, false
}

// run executes fn off the read loop and pushes the settled view.
func (s *session) run(name string, fn func(ctx context.Context) error) {
	s.hub.wg.Add(1)
	go func() {
		defer s.hub.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.hub.timeout)
		defer cancel()

		err := fn(ctx)
		if errors.Is(err, listview.ErrSuperseded) {
			return
		}
		if err != nil {
			s.write(message{Type: "error", Command: name, Error: err.Error()})
		}
		s.write(message{Type: "view", Command: name, Data: s.render()})
	}()
}

func (s *session) render() interface{} {
	v := s.binding.Controller.View()
	if s.binding.Render == nil {
		return v
	}
	return s.binding.Render(v)
}

func (s *session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *session) write(m message) {
	data, err := json.Marshal(m)
	if err != nil {
		s.hub.errorf("console: marshal failed: %v", err)
		return
	}
	s.writeRaw(data)
}

func (s *session) writeRaw(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.hub.errorf("console: write failed: %v", err)
	}
}

func (s *session) close() {
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.conn.Close()
}

type sessionNotifier struct{ s *session }

func (n sessionNotifier) Notify(msg string, severity listview.Severity) {
	n.s.write(message{Type: "notify", Message: msg, Severity: severity})
}

// sessionQuery drops router parameters and the access token from q.
func sessionQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vs := range q {
		if strings.HasPrefix(k, ":") || k == "access_token" {
			continue
		}
		out[k] = vs
	}
	return out
}

func (h *ConsoleHub) infof(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Infof(format, args...)
	}
}

func (h *ConsoleHub) errorf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Errorf(format, args...)
	}
}
