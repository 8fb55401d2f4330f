package console

import (
	"context"
	"fmt"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	consolehttp "naimuAdmin/internal/console/http"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/repo"
)

// RegisterConsoleRoutes wires the console handlers into the provided mux.
func RegisterConsoleRoutes(ctx context.Context, mux *pat.PatternServeMux, auth alice.Chain, deps *Deps) (*consolehttp.Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}

	gate := deps.Permissions
	if gate == nil {
		table, err := permission.NewRepo(deps.DB).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load permissions: %w", err)
		}
		gate = permission.NewGate(table)
	}

	specs := repo.DefaultSpecs()
	store, err := repo.NewStore(deps.DB, deps.Driver, deps.Workflows, deps.Config.ExportMaxRows, specs...)
	if err != nil {
		return nil, err
	}

	httpCfg := consolehttp.Config{
		DefaultLimit:  deps.Config.DefaultLimit,
		AllowedLimits: deps.Config.AllowedLimits,
		FetchTimeout:  deps.Config.FetchTimeout,
	}
	server, err := consolehttp.NewServer(httpCfg, deps.Logger, consolehttp.Options{
		Tables:        Tables(specs, deps.Workflows),
		Fetcher:       store,
		Mutator:       newPublishingMutator(store, deps.Publisher, deps.Logger),
		Exporter:      deps.Exporter,
		Capabilities:  permission.NewSessionCache(deps.Redis, gate, deps.Config.CapsTTL, deps.Logger),
		Workflows:     deps.Workflows,
		Notifications: deps.Notifications,
	})
	if err != nil {
		return nil, err
	}
	server.Register(mux, auth)
	return server, nil
}
