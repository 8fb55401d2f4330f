package permission

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{ errors int }

func (l *testLogger) Infof(string, ...interface{})  {}
func (l *testLogger) Errorf(string, ...interface{}) { l.errors++ }

func newTestGate() *Gate {
	t := NewTable()
	t.Grant("drivers", "admin", ActionView, ActionAdd, ActionEdit, ActionDelete)
	t.Grant("drivers", "Support", ActionView)
	t.Grant("wallets", "finance", ActionView, ActionEdit)
	return NewGate(t)
}

func TestCapabilitiesForKnownRole(t *testing.T) {
	g := newTestGate()

	c := g.CapabilitiesFor("drivers", "admin")
	assert.Equal(t, Capability{ScreenID: "drivers", View: true, Add: true, Edit: true, Delete: true}, c)

	c = g.CapabilitiesFor("drivers", " SUPPORT ")
	assert.True(t, c.View)
	assert.False(t, c.Edit)
}

func TestCapabilitiesFailClosed(t *testing.T) {
	g := newTestGate()

	tests := []struct{ screen, role string }{
		{"drivers", "guest"},
		{"coupons", "admin"},
		{"", ""},
	}
	for _, tt := range tests {
		c := g.CapabilitiesFor(tt.screen, tt.role)
		assert.Equal(t, Capability{ScreenID: tt.screen}, c, "%s/%s", tt.screen, tt.role)
		for _, a := range []Action{ActionView, ActionAdd, ActionEdit, ActionDelete} {
			assert.False(t, Check(c, a))
		}
	}
}

func TestReplaceTable(t *testing.T) {
	g := newTestGate()
	g.Replace(nil)

	assert.False(t, g.CapabilitiesFor("drivers", "admin").View)
}

func TestDeniedMessages(t *testing.T) {
	assert.Equal(t, "no permission to update status", DeniedMessage(ActionEdit))
	assert.Equal(t, "no permission to delete", DeniedMessage(ActionDelete))
}

func TestParseYAML(t *testing.T) {
	data := []byte(`screens:
  drivers:
    admin: [view, add, edit, delete]
    support: [view]
  tickets:
    support: [view, edit]
`)
	table, err := Parse(data)
	require.NoError(t, err)
	g := NewGate(table)

	assert.True(t, g.CapabilitiesFor("tickets", "support").Edit)
	assert.False(t, g.CapabilitiesFor("drivers", "support").Delete)
	assert.Equal(t, 2, table.Screens())
}

func TestParseYAMLUnknownAction(t *testing.T) {
	_, err := Parse([]byte("screens:\n  drivers:\n    admin: [fly]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "fly"`)
}

func TestMergeOverridesPerRole(t *testing.T) {
	base := NewTable()
	base.Grant("drivers", "support", ActionView, ActionEdit)
	override := NewTable()
	override.Grant("drivers", "support", ActionView)

	base.Merge(override)

	c, ok := base.Lookup("drivers", "support")
	require.True(t, ok)
	assert.False(t, c.Edit)
}

func TestRepoLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"screen_id", "role", "can_view", "can_add", "can_edit", "can_delete"}).
		AddRow("drivers", "admin", true, true, true, true).
		AddRow("drivers", "support", true, false, false, false)
	mock.ExpectQuery(`SELECT screen_id, role, can_view, can_add, can_edit, can_delete\s+FROM role_permissions`).
		WillReturnRows(rows)

	table, err := NewRepo(db).Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	g := NewGate(table)
	assert.True(t, g.CapabilitiesFor("drivers", "admin").Delete)
	assert.False(t, g.CapabilitiesFor("drivers", "support").Edit)
}

func TestFlagsEncoding(t *testing.T) {
	c := Capability{ScreenID: "drivers", View: true, Edit: true}
	got, ok := decodeFlags("drivers", encodeFlags(c))
	require.True(t, ok)
	assert.Equal(t, c, got)

	_, ok = decodeFlags("drivers", "10x1")
	assert.False(t, ok)
}

func TestSessionCacheFallsBackWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	logger := &testLogger{}
	cache := NewSessionCache(rdb, newTestGate(), time.Hour, logger)

	c := cache.CapabilitiesFor(context.Background(), "sess-1", "drivers", "admin")

	assert.True(t, c.Edit)
	assert.Equal(t, 1, logger.errors)
}

func TestSessionCacheWithoutSession(t *testing.T) {
	cache := NewSessionCache(nil, newTestGate(), time.Hour, nil)

	c := cache.CapabilitiesFor(context.Background(), "", "drivers", "support")

	assert.True(t, c.View)
	assert.False(t, c.Edit)
	assert.NoError(t, cache.Forget(context.Background(), ""))
}

func TestIntersectNarrows(t *testing.T) {
	pinned := Capability{ScreenID: "drivers", View: true, Edit: true}
	current := Capability{ScreenID: "drivers", View: true, Edit: false, Delete: true}

	assert.Equal(t, Capability{ScreenID: "drivers", View: true}, pinned.Intersect(current))
}
