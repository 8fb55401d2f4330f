package console

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"naimuAdmin/internal/console/events"
	consolehttp "naimuAdmin/internal/console/http"
	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/permission"
	"naimuAdmin/internal/console/repo"
	"naimuAdmin/internal/console/workflow"
)

type testLogger struct{ errors int }

func (l *testLogger) Infof(string, ...interface{})  {}
func (l *testLogger) Errorf(string, ...interface{}) { l.errors++ }

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DefaultLimit != 10 || cfg.FetchTimeout != 5*time.Second || cfg.ExportMaxRows != 5000 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.AllowedLimits) != 4 {
		t.Fatalf("unexpected allowed limits %v", cfg.AllowedLimits)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONSOLE_DEFAULT_LIMIT", "20")
	t.Setenv("CONSOLE_ALLOWED_LIMITS", "20, 40")
	t.Setenv("CONSOLE_FETCH_TIMEOUT_SECONDS", "3")
	t.Setenv("CONSOLE_CAPS_TTL_SECONDS", "60")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DefaultLimit != 20 || cfg.FetchTimeout != 3*time.Second || cfg.CapsTTL != time.Minute {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.AllowedLimits) != 2 || cfg.AllowedLimits[1] != 40 {
		t.Fatalf("unexpected allowed limits %v", cfg.AllowedLimits)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CONSOLE_DEFAULT_LIMIT", "ten"},
		{"CONSOLE_DEFAULT_LIMIT", "33"},
		{"CONSOLE_ALLOWED_LIMITS", "10,-5"},
		{"CONSOLE_FETCH_TIMEOUT_SECONDS", "0"},
		{"CONSOLE_EXPORT_MAX_ROWS", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTableConfigFromSpec(t *testing.T) {
	var spec repo.TableSpec
	for _, s := range repo.DefaultSpecs() {
		if s.Entity == workflow.EntityWalletTransaction {
			spec = s
		}
	}
	cfg := TableConfig(spec)

	if cfg.ScreenID != "wallet-transactions" {
		t.Fatalf("unexpected screen %q", cfg.ScreenID)
	}
	want := []string{"status", "userType", "date", "dateFrom", "dateTo"}
	if len(cfg.FilterKeys) != len(want) {
		t.Fatalf("unexpected filter keys %v", cfg.FilterKeys)
	}
	for i := range want {
		if cfg.FilterKeys[i] != want[i] {
			t.Fatalf("unexpected filter keys %v", cfg.FilterKeys)
		}
	}
	if cfg.Columns[0].Label != "walletTransaction.id" {
		t.Fatalf("unexpected column label %q", cfg.Columns[0].Label)
	}
}

func TestEveryEntityHasScreenAndWorkflow(t *testing.T) {
	registry := workflow.NewBuiltinRegistry()
	for _, spec := range repo.DefaultSpecs() {
		if _, ok := Screens[spec.Entity]; !ok {
			t.Fatalf("no screen for %s", spec.Entity)
		}
		if _, ok := registry.Definition(spec.Entity); !ok {
			t.Fatalf("no workflow for %s", spec.Entity)
		}
	}
}

type stubStore struct {
	from       string
	to         string
	err        error
	mutated    int
	deleted    []string
	transition []string
}

func (s *stubStore) Mutate(context.Context, string, string, listview.Patch) error {
	s.mutated++
	return s.err
}

func (s *stubStore) Delete(_ context.Context, _, id string) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *stubStore) Transition(_ context.Context, _, _, target string) (string, string, error) {
	s.transition = append(s.transition, target)
	to := target
	if s.to != "" {
		to = s.to
	}
	return s.from, to, s.err
}

type published struct {
	subject string
	event   any
}

type stubPublisher struct {
	events []published
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, subject string, event any) error {
	p.events = append(p.events, published{subject, event})
	return p.err
}

func (p *stubPublisher) Close() error { return nil }

func TestPublishingMutatorTransition(t *testing.T) {
	store := &stubStore{from: workflow.StatusLinked}
	pub := &stubPublisher{}
	m := newPublishingMutator(store, pub, &testLogger{})
	ctx := consolehttp.WithIdentity(context.Background(), consolehttp.Identity{UserID: 3, Role: "admin"})

	if err := m.Mutate(ctx, workflow.EntityCarDriver, "7", listview.Patch{"status": workflow.StatusLeaved}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	if len(pub.events) != 1 || pub.events[0].subject != events.SubjectStatusChanged {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	ev := pub.events[0].event.(events.StatusChanged)
	if ev.From != workflow.StatusLinked || ev.To != workflow.StatusLeaved || ev.Actor != "admin:3" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPublishingMutatorPublishesStoredToken(t *testing.T) {
	store := &stubStore{from: workflow.WalletPending, to: workflow.WalletAccepted}
	pub := &stubPublisher{}
	m := newPublishingMutator(store, pub, &testLogger{})

	if err := m.Mutate(context.Background(), workflow.EntityWalletTransaction, "55", listview.Patch{"status": workflow.StatusAccepted}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	ev := pub.events[0].event.(events.StatusChanged)
	if ev.From != workflow.WalletPending || ev.To != workflow.WalletAccepted {
		t.Fatalf("expected %s -> %s, got %+v", workflow.WalletPending, workflow.WalletAccepted, ev)
	}

	store.from = workflow.WalletAccepted
	if err := m.Mutate(context.Background(), workflow.EntityWalletTransaction, "55", listview.Patch{"status": workflow.StatusAccepted}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("label of the current status must not publish, got %+v", pub.events)
	}
}

func TestPublishingMutatorSkipsFailuresAndNoops(t *testing.T) {
	store := &stubStore{err: repo.ErrStaleStatus}
	pub := &stubPublisher{}
	m := newPublishingMutator(store, pub, &testLogger{})

	err := m.Mutate(context.Background(), workflow.EntityDriver, "1", listview.Patch{"status": workflow.StatusActive})
	if !errors.Is(err, repo.ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}

	store.err = nil
	store.from = workflow.StatusActive
	if err := m.Mutate(context.Background(), workflow.EntityDriver, "1", listview.Patch{"status": workflow.StatusActive}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events, got %+v", pub.events)
	}

	if err := m.Mutate(context.Background(), workflow.EntityDriver, "1", listview.Patch{"name": "x"}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if store.mutated != 1 {
		t.Fatalf("non-status patches must go to the store")
	}
}

func TestPublishingMutatorDeleteLogsPublishFailure(t *testing.T) {
	store := &stubStore{}
	pub := &stubPublisher{err: errors.New("nats down")}
	logger := &testLogger{}
	m := newPublishingMutator(store, pub, logger)

	if err := m.Delete(context.Background(), workflow.EntityCoupon, "4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if logger.errors != 1 {
		t.Fatalf("expected publish failure to be logged")
	}
	if _, ok := pub.events[0].event.(events.RowDeleted); !ok {
		t.Fatalf("unexpected event %+v", pub.events[0])
	}
}

func TestRegisterConsoleRoutes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM role_permissions`).
		WillReturnRows(sqlmock.NewRows([]string{"screen_id", "role", "can_view", "can_add", "can_edit", "can_delete"}).
			AddRow("coupons", "marketing", true, false, true, false))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM coupons WHERE (code LIKE ? ESCAPE '\\')`)).
		WithArgs("%SPRING%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM coupons WHERE (code LIKE ? ESCAPE '\\') ORDER BY id DESC LIMIT ? OFFSET ?`)).
		WithArgs("%SPRING%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "discount", "valid_until", "status", "created_at"}).
			AddRow(1, "SPRING", 10, nil, "Active", nil))

	secret := []byte("s")
	mux := pat.New()
	deps := &Deps{DB: db, Logger: &testLogger{}}
	if _, err := RegisterConsoleRoutes(context.Background(), mux, alice.New(consolehttp.JWTMiddleware(secret)), deps); err != nil {
		t.Fatalf("RegisterConsoleRoutes: %v", err)
	}

	token, err := consolehttp.IssueToken(secret, consolehttp.Identity{UserID: 2, Role: "marketing"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/resources/coupon?keyword=SPRING", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDepsValidate(t *testing.T) {
	var d *Deps
	if err := d.Validate(); err == nil {
		t.Fatalf("expected error for nil deps")
	}
	d = &Deps{}
	if err := d.Validate(); err == nil {
		t.Fatalf("expected error without DB")
	}
}

type stubLoader struct {
	table *permission.Table
	err   error
}

func (l stubLoader) Load(context.Context) (*permission.Table, error) { return l.table, l.err }

func TestRefreshPermissionsSwapsTable(t *testing.T) {
	gate := permission.NewGate(nil)
	table := permission.NewTable()
	table.Grant("drivers", "operator", permission.ActionView)

	refreshPermissions(context.Background(), stubLoader{table: table}, gate, &testLogger{})
	if !gate.CapabilitiesFor("drivers", "operator").View {
		t.Fatalf("expected refreshed table to grant view")
	}

	logger := &testLogger{}
	refreshPermissions(context.Background(), stubLoader{err: errors.New("db down")}, gate, logger)
	if !gate.CapabilitiesFor("drivers", "operator").View {
		t.Fatalf("failed reload must keep the previous table")
	}
	if logger.errors != 1 {
		t.Fatalf("expected reload failure to be logged")
	}
}
