package listview

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/querystate"
)

// Row is one entity record as returned by the data collaborator.
type Row map[string]any

// String returns the value under key formatted as a string.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// Column describes one rendered column. Label is a translation key.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// Page is one page of rows returned by the data collaborator.
type Page struct {
	Rows       []Row
	Page       int
	TotalPages int
	Total      int
}

// Patch is a partial update sent to the mutation collaborator.
type Patch map[string]any

// ExportSet is the filtered, unpaginated row-set handed to an exporter.
type ExportSet struct {
	Entity  string            `json:"entity"`
	Columns []Column          `json:"columns"`
	Filters map[string]string `json:"filters,omitempty"`
	Rows    []Row             `json:"rows"`
}

// Severity of a user notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Navigator is the URL port: the controller reads the current query from it
// and writes new queries only through Navigate.
type Navigator interface {
	Query() url.Values
	Navigate(q url.Values)
}

// Fetcher is the data collaborator. Calls must be idempotent.
type Fetcher interface {
	Fetch(ctx context.Context, entity string, filters querystate.FilterState, page querystate.PageState) (Page, error)
	FetchAll(ctx context.Context, entity string, filters querystate.FilterState) ([]Row, error)
}

// Mutator is the mutation collaborator.
type Mutator interface {
	Mutate(ctx context.Context, entity, id string, patch Patch) error
	Delete(ctx context.Context, entity, id string) error
}

// Exporter turns an ExportSet into a spreadsheet, PDF or print view and
// returns a reference to the result.
type Exporter interface {
	Export(ctx context.Context, set ExportSet) (string, error)
}

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	Notify(message string, severity Severity)
}

// CapabilityResolver resolves the capability of a role on a screen.
type CapabilityResolver interface {
	CapabilitiesFor(screenID, role string) permission.Capability
}

// Workflow answers status-workflow questions for an entity type.
type Workflow interface {
	ReachableFrom(entity, current string) []string
	IsLegalTransition(entity, from, to string) bool
}

// Logger captures the logging contract required by the controller.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}
