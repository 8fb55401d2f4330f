package permission

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type fileFormat struct {
	Screens map[string]map[string][]string `yaml:"screens"`
}

// LoadFile reads a role/capability table from YAML:
//
//	screens:
//	  drivers:
//	    admin: [view, add, edit, delete]
//	    support: [view]
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permissions file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML role/capability table.
func Parse(data []byte) (*Table, error) {
	var f fileFormat
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse permissions: %w", err)
	}
	t := NewTable()
	for screen, roles := range f.Screens {
		for role, names := range roles {
			actions := make([]Action, 0, len(names))
			for _, n := range names {
				a, ok := ParseAction(n)
				if !ok {
					return nil, fmt.Errorf("parse permissions: screen %s role %s: unknown action %q", screen, role, n)
				}
				actions = append(actions, a)
			}
			t.Set(screen, role, Capability{})
			t.Grant(screen, role, actions...)
		}
	}
	return t, nil
}

// Repo reads the role_permissions table.
type Repo struct {
	db *sql.DB
}

// NewRepo constructs a Repo.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Load returns the table stored in the database.
func (r *Repo) Load(ctx context.Context) (*Table, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT screen_id, role, can_view, can_add, can_edit, can_delete
        FROM role_permissions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := NewTable()
	for rows.Next() {
		var (
			screen, role string
			c            Capability
		)
		if err := rows.Scan(&screen, &role, &c.View, &c.Add, &c.Edit, &c.Delete); err != nil {
			return nil, err
		}
		t.Set(screen, role, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
