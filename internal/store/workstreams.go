package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pioj/pioj/internal/query"
)

// ErrNotFound is returned when a page or workstream ID does not exist.
var ErrNotFound = errors.New("not found")

// Page groups workstreams for display.
type Page struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Workstream is a named query stack attached to a page.
type Workstream struct {
	ID        string             `json:"id"`
	PageID    string             `json:"page_id"`
	Name      string             `json:"name"`
	Position  int                `json:"position"`
	Stack     []query.Definition `json:"stack"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CreatePage inserts a new page and returns it with a generated ID.
// Position defaults to one past the current highest position.
func (s *Store) CreatePage(ctx context.Context, title string) (Page, error) {
	now := s.timestamp()
	id := s.ids.Generate()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, title, position, created_at, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM pages), ?, ?)
	`, id, title, now, now)
	if err != nil {
		return Page{}, fmt.Errorf("create page: %w", err)
	}

	return s.GetPage(ctx, id)
}

// GetPage returns a single page by ID.
func (s *Store) GetPage(ctx context.Context, id string) (Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, position, created_at, updated_at
		FROM pages WHERE id = ?
	`, id)

	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	return p, nil
}

// ListPages returns all pages ordered by position.
func (s *Store) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, position, created_at, updated_at
		FROM pages ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("list pages: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// RenamePage updates a page title.
func (s *Store) RenamePage(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pages SET title = ?, updated_at = ? WHERE id = ?
	`, title, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("rename page: %w", err)
	}
	return requireAffected(res, "page", id)
}

// DeletePage removes a page. Workstreams, stacks, and snapshots under
// it are removed by foreign key cascade.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return requireAffected(res, "page", id)
}

// CreateWorkstream inserts a workstream with its query stack in a
// single transaction. The page must exist (foreign key constraint).
func (s *Store) CreateWorkstream(ctx context.Context, pageID, name string, stack []query.Definition) (Workstream, error) {
	now := s.timestamp()
	id := s.ids.Generate()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Workstream{}, fmt.Errorf("create workstream: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workstreams (id, page_id, name, position, created_at, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM workstreams WHERE page_id = ?), ?, ?)
	`, id, pageID, name, pageID, now, now)
	if err != nil {
		return Workstream{}, fmt.Errorf("create workstream: %w", err)
	}

	if err := writeStack(ctx, tx, id, stack); err != nil {
		return Workstream{}, fmt.Errorf("create workstream: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Workstream{}, fmt.Errorf("create workstream: commit: %w", err)
	}

	return s.GetWorkstream(ctx, id)
}

// GetWorkstream returns a workstream with its full query stack.
func (s *Store) GetWorkstream(ctx context.Context, id string) (Workstream, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, name, position, created_at, updated_at
		FROM workstreams WHERE id = ?
	`, id)

	w, err := scanWorkstream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Workstream{}, fmt.Errorf("workstream %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Workstream{}, fmt.Errorf("get workstream: %w", err)
	}

	w.Stack, err = s.readStack(ctx, id)
	if err != nil {
		return Workstream{}, fmt.Errorf("get workstream: %w", err)
	}
	return w, nil
}

// ListWorkstreams returns the workstreams for a page ordered by
// position, each with its full stack.
func (s *Store) ListWorkstreams(ctx context.Context, pageID string) ([]Workstream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, name, position, created_at, updated_at
		FROM workstreams WHERE page_id = ? ORDER BY position, id
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list workstreams: %w", err)
	}
	defer rows.Close()

	var streams []Workstream
	for rows.Next() {
		w, err := scanWorkstream(rows)
		if err != nil {
			return nil, fmt.Errorf("list workstreams: %w", err)
		}
		streams = append(streams, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workstreams: %w", err)
	}

	for i := range streams {
		streams[i].Stack, err = s.readStack(ctx, streams[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list workstreams: %w", err)
		}
	}
	return streams, nil
}

// AllWorkstreams returns every workstream across all pages, ordered by
// page then position. Used by refresh-all.
func (s *Store) AllWorkstreams(ctx context.Context) ([]Workstream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.page_id, w.name, w.position, w.created_at, w.updated_at
		FROM workstreams w
		JOIN pages p ON p.id = w.page_id
		ORDER BY p.position, p.id, w.position, w.id
	`)
	if err != nil {
		return nil, fmt.Errorf("all workstreams: %w", err)
	}
	defer rows.Close()

	var streams []Workstream
	for rows.Next() {
		w, err := scanWorkstream(rows)
		if err != nil {
			return nil, fmt.Errorf("all workstreams: %w", err)
		}
		streams = append(streams, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("all workstreams: %w", err)
	}

	for i := range streams {
		streams[i].Stack, err = s.readStack(ctx, streams[i].ID)
		if err != nil {
			return nil, fmt.Errorf("all workstreams: %w", err)
		}
	}
	return streams, nil
}

// UpdateWorkstream replaces a workstream's name and query stack
// atomically. The old stack rows are deleted and rewritten so
// positions stay dense.
func (s *Store) UpdateWorkstream(ctx context.Context, id, name string, stack []query.Definition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update workstream: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE workstreams SET name = ?, updated_at = ? WHERE id = ?
	`, name, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("update workstream: %w", err)
	}
	if err := requireAffected(res, "workstream", id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queries WHERE workstream_id = ?`, id); err != nil {
		return fmt.Errorf("update workstream: clear stack: %w", err)
	}
	if err := writeStack(ctx, tx, id, stack); err != nil {
		return fmt.Errorf("update workstream: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update workstream: commit: %w", err)
	}
	return nil
}

// DeleteWorkstream removes a workstream and, by cascade, its stack and
// snapshot.
func (s *Store) DeleteWorkstream(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workstreams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workstream: %w", err)
	}
	return requireAffected(res, "workstream", id)
}

func (s *Store) readStack(ctx context.Context, workstreamID string) ([]query.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, expression
		FROM queries WHERE workstream_id = ? ORDER BY position
	`, workstreamID)
	if err != nil {
		return nil, fmt.Errorf("read stack: %w", err)
	}
	defer rows.Close()

	var stack []query.Definition
	for rows.Next() {
		var def query.Definition
		var kind string
		if err := rows.Scan(&def.Name, &kind, &def.Expression); err != nil {
			return nil, fmt.Errorf("read stack: %w", err)
		}
		def.Kind, err = query.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("read stack: %w", err)
		}
		stack = append(stack, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stack: %w", err)
	}
	return stack, nil
}

func writeStack(ctx context.Context, tx *sql.Tx, workstreamID string, stack []query.Definition) error {
	for i, def := range stack {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO queries (workstream_id, position, name, kind, expression)
			VALUES (?, ?, ?, ?, ?)
		`, workstreamID, i, def.Name, def.Kind.String(), def.Expression)
		if err != nil {
			return fmt.Errorf("write stack step %d: %w", i+1, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (Page, error) {
	var p Page
	var created, updated string
	if err := row.Scan(&p.ID, &p.Title, &p.Position, &created, &updated); err != nil {
		return Page{}, err
	}
	var err error
	if p.CreatedAt, err = parseTimestamp(created); err != nil {
		return Page{}, err
	}
	if p.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return Page{}, err
	}
	return p, nil
}

func scanWorkstream(row rowScanner) (Workstream, error) {
	var w Workstream
	var created, updated string
	if err := row.Scan(&w.ID, &w.PageID, &w.Name, &w.Position, &created, &updated); err != nil {
		return Workstream{}, err
	}
	var err error
	if w.CreatedAt, err = parseTimestamp(created); err != nil {
		return Workstream{}, err
	}
	if w.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return Workstream{}, err
	}
	return w, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
