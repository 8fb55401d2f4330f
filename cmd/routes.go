package main

import (
	"context"
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"naimuAdmin/internal/console"
	consolehttp "naimuAdmin/internal/console/http"
)

func (app *application) routes(ctx context.Context) (http.Handler, error) {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	adminAuthMiddleware := alice.New(consolehttp.JWTMiddleware(app.secret))

	mux := pat.New()

	mux.Get("/healthz", http.HandlerFunc(app.healthz))

	server, err := console.RegisterConsoleRoutes(ctx, mux, adminAuthMiddleware, app.deps)
	if err != nil {
		return nil, err
	}
	app.console = server

	return standardMiddleware.Then(mux), nil
}

func (app *application) healthz(w http.ResponseWriter, r *http.Request) {
	if err := app.db.PingContext(r.Context()); err != nil {
		app.serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
