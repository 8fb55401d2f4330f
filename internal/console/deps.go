package console

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"naimuAdmin/internal/console/events"
	"naimuAdmin/internal/console/export"
	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/workflow"
	"naimuAdmin/internal/console/ws"
)

// Logger is the minimal logging interface required by the console module.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Deps aggregates runtime dependencies for the console module.
type Deps struct {
	DB     *sql.DB
	Driver string
	Logger Logger
	Config Config

	Redis         *redis.Client
	Publisher     events.Publisher
	Exporter      listview.Exporter
	Permissions   *permission.Gate
	Workflows     *workflow.Registry
	Notifications *ws.NotificationHub
}

// Validate ensures that the deps struct contains the essentials before bootstrapping services.
func (d *Deps) Validate() error {
	if d == nil {
		return fmt.Errorf("console deps are nil")
	}
	if d.DB == nil {
		return fmt.Errorf("console deps DB is required")
	}
	if d.Logger == nil {
		return fmt.Errorf("console deps Logger is required")
	}
	if d.Driver == "" {
		d.Driver = "mysql"
	}
	if d.Config.DefaultLimit == 0 {
		d.Config.DefaultLimit = defaultListLimit
	}
	if d.Config.FetchTimeout == 0 {
		d.Config.FetchTimeout = defaultFetchTimeout
	}
	if d.Publisher == nil {
		d.Publisher = events.Noop{}
	}
	if d.Exporter == nil {
		d.Exporter = export.NewInlineSink()
	}
	if d.Workflows == nil {
		d.Workflows = workflow.NewBuiltinRegistry()
	}
	return nil
}
