package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naimuAdmin/internal/console/permission"
)

func newTestApp() *application {
	return &application{
		errorLog: log.New(io.Discard, "", 0),
		infoLog:  log.New(io.Discard, "", 0),
	}
}

func TestRecoverPanic(t *testing.T) {
	app := newTestApp()
	h := app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestSecureHeaders(t *testing.T) {
	h := secureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "deny", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestPermissionSourceLayersFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM role_permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"screen_id", "role", "can_view", "can_add", "can_edit", "can_delete"}).
			AddRow("drivers", "support", true, false, true, false).
			AddRow("trips", "support", true, false, false, false))

	path := filepath.Join(t.TempDir(), "permissions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("screens:\n  drivers:\n    support: [view]\n"), 0o600))

	table, err := permissionSource{repo: permission.NewRepo(db), file: path}.Load(context.Background())
	require.NoError(t, err)

	gate := permission.NewGate(table)
	assert.False(t, gate.CapabilitiesFor("drivers", "support").Edit)
	assert.True(t, gate.CapabilitiesFor("trips", "support").View)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	_, err := openDB("sqlite3", "file::memory:")
	assert.Error(t, err)
}
