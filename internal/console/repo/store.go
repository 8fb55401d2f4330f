package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"naimuAdmin/internal/console/listview"
	"naimuAdmin/internal/console/querystate"
	"naimuAdmin/internal/console/workflow"
)

var (
	// ErrNotFound indicates a missing row.
	ErrNotFound = errors.New("console: not found")
	// ErrStaleStatus indicates the row changed status between read and update.
	ErrStaleStatus = errors.New("console: status changed concurrently")
	// ErrUnknownEntity is returned for entities without a table spec.
	ErrUnknownEntity = errors.New("console: unknown entity")
	// ErrUnsupportedPatch is returned for patches touching columns other than status.
	ErrUnsupportedPatch = errors.New("console: unsupported patch")
)

// Filter keys with fixed meaning.
const (
	FilterDate     = "date"
	FilterDateFrom = "dateFrom"
	FilterDateTo   = "dateTo"
)

// Workflow is the subset of the status registry used server-side.
type Workflow interface {
	Resolve(entity, status string) (string, error)
	IsLegalTransition(entity, from, to string) bool
}

// Store is the SQL data and mutation collaborator of the list pages.
type Store struct {
	db       *sql.DB
	driver   string
	workflow Workflow
	maxRows  int
	specs    map[string]TableSpec
}

// NewStore validates specs and constructs a Store. driver is the
// database/sql driver name; "pgx" switches placeholders to $n.
func NewStore(db *sql.DB, driver string, wf Workflow, maxRows int, specs ...TableSpec) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("repo: db is required")
	}
	if wf == nil {
		return nil, fmt.Errorf("repo: workflow is required")
	}
	s := &Store{db: db, driver: driver, workflow: wf, maxRows: maxRows, specs: make(map[string]TableSpec, len(specs))}
	for _, spec := range specs {
		spec = spec.withDefaults()
		if err := spec.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.specs[spec.Entity]; dup {
			return nil, fmt.Errorf("repo: duplicate spec for %q", spec.Entity)
		}
		s.specs[spec.Entity] = spec
	}
	return s, nil
}

func (s *Store) spec(entity string) (TableSpec, error) {
	spec, ok := s.specs[entity]
	if !ok {
		return TableSpec{}, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return spec, nil
}

// Fetch returns one page of rows matching filters, newest first.
func (s *Store) Fetch(ctx context.Context, entity string, filters querystate.FilterState, page querystate.PageState) (listview.Page, error) {
	spec, err := s.spec(entity)
	if err != nil {
		return listview.Page{}, err
	}
	where, args := s.where(spec, filters)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, spec.Table, where)
	if err := s.db.QueryRowContext(ctx, s.rebind(countQuery), args...).Scan(&total); err != nil {
		return listview.Page{}, fmt.Errorf("count %s: %w", entity, err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = querystate.DefaultLimit
	}
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY %s DESC LIMIT ? OFFSET ?`,
		strings.Join(spec.Columns, ", "), spec.Table, where, spec.IDColumn)
	rows, err := s.query(ctx, query, append(args, limit, page.Offset())...)
	if err != nil {
		return listview.Page{}, fmt.Errorf("fetch %s: %w", entity, err)
	}

	return listview.Page{
		Rows:       rows,
		Page:       page.Page,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// FetchAll returns every row matching filters, capped at the export limit.
func (s *Store) FetchAll(ctx context.Context, entity string, filters querystate.FilterState) ([]listview.Row, error) {
	spec, err := s.spec(entity)
	if err != nil {
		return nil, err
	}
	where, args := s.where(spec, filters)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY %s DESC`,
		strings.Join(spec.Columns, ", "), spec.Table, where, spec.IDColumn)
	if s.maxRows > 0 {
		query += ` LIMIT ?`
		args = append(args, s.maxRows)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch all %s: %w", entity, err)
	}
	return rows, nil
}

// Mutate applies a status patch. Only the status column may be patched.
func (s *Store) Mutate(ctx context.Context, entity, id string, patch listview.Patch) error {
	spec, err := s.spec(entity)
	if err != nil {
		return err
	}
	var target string
	for k, v := range patch {
		if k != spec.StatusColumn {
			return fmt.Errorf("%w: column %q", ErrUnsupportedPatch, k)
		}
		target = fmt.Sprint(v)
	}
	if target == "" {
		return fmt.Errorf("%w: empty status", ErrUnsupportedPatch)
	}
	_, _, err = s.Transition(ctx, entity, id, target)
	return err
}

// Transition moves row id to target inside a transaction and returns the
// status it left and the stored token it moved to. Legality is checked
// again against the registry.
func (s *Store) Transition(ctx context.Context, entity, id, target string) (from, to string, err error) {
	spec, err := s.spec(entity)
	if err != nil {
		return "", "", err
	}
	if resolved, rerr := s.workflow.Resolve(entity, target); rerr == nil {
		target = resolved
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? FOR UPDATE`, spec.StatusColumn, spec.Table, spec.IDColumn)
	if err = tx.QueryRowContext(ctx, s.rebind(selectQuery), id).Scan(&from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
		}
		return "", "", err
	}

	if from == target {
		return from, target, tx.Commit()
	}
	if !s.workflow.IsLegalTransition(entity, from, target) {
		err = fmt.Errorf("%w: %s %s -> %s", workflow.ErrIllegalTransition, entity, from, target)
		return "", "", err
	}

	set := spec.StatusColumn + " = ?"
	if col, ok := spec.Stamps[target]; ok {
		set += ", " + col + " = CURRENT_TIMESTAMP"
	}
	updateQuery := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ? AND %s = ?`, spec.Table, set, spec.IDColumn, spec.StatusColumn)
	res, err := tx.ExecContext(ctx, s.rebind(updateQuery), target, id, from)
	if err != nil {
		return "", "", err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", "", err
	}
	if affected == 0 {
		err = fmt.Errorf("%w: %s %s", ErrStaleStatus, entity, id)
		return "", "", err
	}
	if err = tx.Commit(); err != nil {
		return "", "", err
	}
	return from, target, nil
}

// Delete removes row id.
func (s *Store) Delete(ctx context.Context, entity, id string) error {
	spec, err := s.spec(entity)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, spec.Table, spec.IDColumn)
	res, err := s.db.ExecContext(ctx, s.rebind(query), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}
	return nil
}

func (s *Store) where(spec TableSpec, filters querystate.FilterState) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	for _, key := range filters.Keys() {
		value := filters.Get(key)
		switch {
		case key == querystate.KeyKeyword:
			if len(spec.KeywordColumns) == 0 {
				continue
			}
			likes := make([]string, len(spec.KeywordColumns))
			pattern := "%" + likeEscaper.Replace(value) + "%"
			for i, col := range spec.KeywordColumns {
				likes[i] = col + " LIKE ?" + s.likeEscape()
				args = append(args, pattern)
			}
			conds = append(conds, "("+strings.Join(likes, " OR ")+")")
		case key == FilterDate && spec.DateColumn != "":
			conds = append(conds, "DATE("+spec.DateColumn+") = ?")
			args = append(args, value)
		case key == FilterDateFrom && spec.DateColumn != "":
			conds = append(conds, "DATE("+spec.DateColumn+") >= ?")
			args = append(args, value)
		case key == FilterDateTo && spec.DateColumn != "":
			conds = append(conds, "DATE("+spec.DateColumn+") <= ?")
			args = append(args, value)
		default:
			col, ok := spec.Filters[key]
			if !ok {
				continue
			}
			if col == spec.StatusColumn {
				if resolved, err := s.workflow.Resolve(spec.Entity, value); err == nil {
					value = resolved
				}
			}
			conds = append(conds, col+" = ?")
			args = append(args, value)
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]listview.Row, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []listview.Row{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(listview.Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeEscape is the ESCAPE clause naming backslash; MySQL string literals
// need it doubled, postgres ones do not.
func (s *Store) likeEscape() string {
	if s.postgres() {
		return ` ESCAPE '\'`
	}
	return ` ESCAPE '\\'`
}

func (s *Store) postgres() bool {
	return s.driver == "pgx" || s.driver == "postgres"
}

func (s *Store) rebind(query string) string {
	if !s.postgres() {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
