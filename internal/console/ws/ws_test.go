package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/querystate"
	"naimuAdmin/internal/console/workflow"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, _ string, filters querystate.FilterState, page querystate.PageState) (listview.Page, error) {
	return listview.Page{
		Rows:       []listview.Row{{"id": "7", "status": workflow.StatusLinked, "city": filters.Get("city")}},
		Page:       page.Page,
		TotalPages: 1,
		Total:      1,
	}, nil
}

func (stubFetcher) FetchAll(context.Context, string, querystate.FilterState) ([]listview.Row, error) {
	return nil, nil
}

type stubMutator struct {
	mu      sync.Mutex
	targets []string
}

func (m *stubMutator) Mutate(_ context.Context, _, _ string, patch listview.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, patch["status"].(string))
	return nil
}

func (m *stubMutator) Delete(context.Context, string, string) error { return nil }

func (m *stubMutator) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.targets...)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestNotificationHubDelivers(t *testing.T) {
	hub := NewNotificationHub(testLogger{}, func(r *http.Request) (int64, bool) {
		id, err := strconv.ParseInt(r.URL.Query().Get("admin_id"), 10, 64)
		return id, err == nil
	})
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "/?admin_id=5")
	require.Eventually(t, func() bool { return hub.Connected(5) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))

	hub.Notifier(5).Notify("status updated", listview.SeveritySuccess)
	hub.Notifier(6).Notify("nobody listens", listview.SeverityInfo)

	var n Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, Notification{Type: "notify", Message: "status updated", Severity: listview.SeveritySuccess}, n)
}

func TestNotificationHubRejectsAnonymous(t *testing.T) {
	hub := NewNotificationHub(testLogger{}, func(*http.Request) (int64, bool) { return 0, false })
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type wireMessage struct {
	Type     string        `json:"type"`
	Command  string        `json:"command"`
	Data     listview.View `json:"data"`
	Error    string        `json:"error"`
	Message  string        `json:"message"`
	Severity string        `json:"severity"`
}

func newConsoleServer(t *testing.T, mutator *stubMutator, caps permission.Capability) (*ConsoleHub, *httptest.Server) {
	t.Helper()
	table := permission.NewTable()
	table.Set("car-drivers", "operator", caps)
	gate := permission.NewGate(table)
	registry := workflow.NewBuiltinRegistry()

	bind := func(r *http.Request, nav listview.Navigator, notifier listview.Notifier) (*Binding, error) {
		if r.URL.Query().Get("deny") != "" {
			return nil, errors.New("no such table")
		}
		ctrl, err := listview.NewController(listview.TableConfig{
			Entity:   workflow.EntityCarDriver,
			ScreenID: "car-drivers",
		}, listview.Deps{
			Codec:     querystate.NewCodec(querystate.Config{FilterKeys: []string{"status", "city"}}),
			Navigator: nav,
			Fetcher:   stubFetcher{},
			Mutator:   mutator,
			Notifier:  notifier,
			Gate:      gate,
			Workflow:  registry,
			Logger:    testLogger{},
			Role:      "operator",
		})
		if err != nil {
			return nil, err
		}
		return &Binding{Controller: ctrl}, nil
	}
	hub := NewConsoleHub(testLogger{}, bind, time.Second)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) wireMessage {
	t.Helper()
	for {
		var m wireMessage
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

func TestConsoleSessionLoadsAndTransitions(t *testing.T) {
	mutator := &stubMutator{}
	hub, srv := newConsoleServer(t, mutator, permission.Capability{View: true, Edit: true})
	conn := dial(t, srv, "/?city=Almaty&limit=25")

	m := readUntil(t, conn, "view")
	assert.Equal(t, "load", m.Command)
	assert.Equal(t, "Almaty", m.Data.Filters["city"])
	assert.Equal(t, 25, m.Data.Page.Limit)
	require.Len(t, m.Data.Rows, 1)

	require.NoError(t, conn.WriteJSON(Command{Type: "transition", ID: "7", Target: workflow.StatusRejected}))
	m = readUntil(t, conn, "view")
	assert.Equal(t, "transition", m.Command)
	assert.Equal(t, []string{workflow.StatusRejected}, mutator.snapshot())

	require.NoError(t, conn.WriteJSON(Command{Type: "page", Page: 3}))
	m = readUntil(t, conn, "view")
	assert.Equal(t, 3, m.Data.Page.Page)
	assert.Equal(t, "Almaty", m.Data.Filters["city"])

	hub.Wait()
}

func TestConsoleSessionErrors(t *testing.T) {
	mutator := &stubMutator{}
	_, srv := newConsoleServer(t, mutator, permission.Capability{View: true})
	conn := dial(t, srv, "/")
	readUntil(t, conn, "view")

	require.NoError(t, conn.WriteJSON(Command{Type: "transition", ID: "99", Target: workflow.StatusRejected}))
	m := readUntil(t, conn, "error")
	assert.Contains(t, m.Error, "row not in current view")

	require.NoError(t, conn.WriteJSON(Command{Type: "transition", ID: "7", Target: workflow.StatusRejected}))
	m = readUntil(t, conn, "notify")
	assert.Equal(t, "no permission to update status", m.Message)
	assert.Equal(t, "warning", m.Severity)
	m = readUntil(t, conn, "error")
	assert.Contains(t, m.Error, "permission: denied")
	readUntil(t, conn, "view")

	require.NoError(t, conn.WriteJSON(Command{Type: "fly"}))
	m = readUntil(t, conn, "error")
	assert.Equal(t, "unknown command", m.Error)

	assert.Empty(t, mutator.snapshot())
}

func TestConsoleSessionBindFailure(t *testing.T) {
	_, srv := newConsoleServer(t, &stubMutator{}, permission.Capability{})

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?deny=1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConsoleSessionAppliesCommandsInArrivalOrder(t *testing.T) {
	hub, srv := newConsoleServer(t, &stubMutator{}, permission.Capability{View: true})

	for i := 0; i < 50; i++ {
		conn := dial(t, srv, "/?page=2")
		readUntil(t, conn, "view")

		require.NoError(t, conn.WriteJSON(Command{Type: "filter", Filters: map[string]string{"city": "Almaty"}}))
		require.NoError(t, conn.WriteJSON(Command{Type: "page", Page: 3}))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
		for {
			_, data, err := conn.ReadMessage()
			require.NoError(t, err)
			if string(data) == "pong" {
				break
			}
		}
		hub.Wait()

		require.NoError(t, conn.WriteJSON(Command{Type: "refresh"}))
		var m wireMessage
		for m.Command != "refresh" {
			m = readUntil(t, conn, "view")
		}
		require.Equal(t, 3, m.Data.Page.Page, "session %d", i)
		require.Equal(t, "Almaty", m.Data.Filters["city"], "session %d", i)
		conn.Close()
	}
}

func TestConsoleSessionRejectsUnknownLimit(t *testing.T) {
	_, srv := newConsoleServer(t, &stubMutator{}, permission.Capability{View: true})
	conn := dial(t, srv, "/?page=4")
	readUntil(t, conn, "view")

	require.NoError(t, conn.WriteJSON(Command{Type: "limit", Limit: 7}))
	m := readUntil(t, conn, "error")
	assert.Equal(t, "limit", m.Command)

	require.NoError(t, conn.WriteJSON(Command{Type: "refresh"}))
	m = readUntil(t, conn, "view")
	assert.Equal(t, 4, m.Data.Page.Page)
}
