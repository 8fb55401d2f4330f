package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/querystate"
	"naimuAdmin/internal/console/repo"
	"naimuAdmin/internal/console/workflow"
)

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.FetchTimeout)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps console errors onto HTTP statuses.
func statusFor(err error) int {
	var he httpError
	if errors.As(err, &he) {
		return he.status
	}
	switch {
	case errors.Is(err, permission.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrIllegalTransition), errors.Is(err, repo.ErrStaleStatus):
		return http.StatusConflict
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, repo.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, querystate.ErrInvalidQueryState), errors.Is(err, repo.ErrUnsupportedPatch):
		return http.StatusBadRequest
	case errors.Is(err, listview.ErrMutationFailed), errors.Is(err, listview.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// cleanQuery drops router parameters and the access token from q.
func cleanQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vs := range q {
		if strings.HasPrefix(k, ":") || k == TokenParam {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// requestNavigator is the URL of a single HTTP request. Navigations are
// recorded and returned to the client as the new location.
type requestNavigator struct {
	mu        sync.Mutex
	query     url.Values
	navigated bool
}

func newRequestNavigator(q url.Values) *requestNavigator {
	return &requestNavigator{query: cleanQuery(q)}
}

func (n *requestNavigator) Query() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	return cleanQuery(n.query)
}

func (n *requestNavigator) Navigate(q url.Values) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.query = cleanQuery(q)
	n.navigated = true
}

func (n *requestNavigator) location(path string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.query) == 0 {
		return path, n.navigated
	}
	return path + "?" + n.query.Encode(), n.navigated
}

// Note is a notification raised while serving a request.
type Note struct {
	Message  string            `json:"message"`
	Severity listview.Severity `json:"severity"`
}

// collectingNotifier records notifications for the response and forwards
// them to the admin's live connection.
type collectingNotifier struct {
	mu      sync.Mutex
	notes   []Note
	forward listview.Notifier
}

func (n *collectingNotifier) Notify(message string, severity listview.Severity) {
	n.mu.Lock()
	n.notes = append(n.notes, Note{Message: message, Severity: severity})
	n.mu.Unlock()
	if n.forward != nil {
		n.forward.Notify(message, severity)
	}
}

func (n *collectingNotifier) collected() []Note {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Note{}, n.notes...)
}

// capabilityResolver binds a session to the capability source.
type capabilityResolver struct {
	ctx       context.Context
	source    CapabilitySource
	sessionID string
}

func (c capabilityResolver) CapabilitiesFor(screenID, role string) permission.Capability {
	return c.source.CapabilitiesFor(c.ctx, c.sessionID, screenID, role)
}

const defaultFetchTimeout = 5 * time.Second
