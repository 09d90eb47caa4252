// Package source provides tree data: a SQLite-backed store whose children are
// fetched lazily, and a deterministic generator for demos and tests.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	key        TEXT PRIMARY KEY,
	parent_key TEXT,
	position   INTEGER NOT NULL,
	text       TEXT NOT NULL,
	icon       TEXT NOT NULL DEFAULT '',
	lazy       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS nodes_parent ON nodes(parent_key, position);
`

// ErrNoKey is returned when a node to fetch carries no storage key.
var ErrNoKey = errors.New("node has no key")

// SQLite stores nodes in a single table keyed by Node.Key. Roots have a NULL
// parent_key.
type SQLite struct {
	db    *sql.DB
	group singleflight.Group
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Seed replaces the table contents with t. Nodes without a Key get one
// derived from their position. Lazy nodes are stored with their children so
// later fetches can return them; the lazy flag marks where fetching starts.
func (s *SQLite) Seed(ctx context.Context, t model.Tree) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (key, parent_key, position, text, icon, lazy) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var insert func(nodes []*model.Node, parent sql.NullString) error
	insert = func(nodes []*model.Node, parent sql.NullString) error {
		for i, n := range nodes {
			key := n.Key
			if key == "" {
				key = strconv.Itoa(i)
				if parent.Valid {
					key = parent.String + "/" + key
				}
			}
			if _, err := stmt.ExecContext(ctx, key, parent, i, n.Text, n.Icon, n.LazyLoad); err != nil {
				return fmt.Errorf("insert %s: %w", key, err)
			}
			if err := insert(n.Nodes, sql.NullString{String: key, Valid: true}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert(t, sql.NullString{}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// Roots returns the top-level nodes.
func (s *SQLite) Roots(ctx context.Context) (model.Tree, error) {
	nodes, err := s.query(ctx, `SELECT key, text, icon, lazy FROM nodes WHERE parent_key IS NULL ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load roots: %w", err)
	}
	return nodes, nil
}

// Children returns the children of n, looked up by its Key. Concurrent calls
// for the same key share one query. It satisfies session.Fetcher.
func (s *SQLite) Children(ctx context.Context, n *model.Node) ([]*model.Node, error) {
	if n.Key == "" {
		return nil, fmt.Errorf("children of %s: %w", n.ID, ErrNoKey)
	}
	v, err, _ := s.group.Do(n.Key, func() (any, error) {
		return s.query(ctx, `SELECT key, text, icon, lazy FROM nodes WHERE parent_key = ? ORDER BY position`, n.Key)
	})
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", n.Key, err)
	}
	return cloneNodes(v.([]*model.Node)), nil
}

var _ session.Fetcher = (*SQLite)(nil).Children

// query returns one node per row. Non-lazy nodes are loaded with their whole
// subtree so only lazy boundaries fetch later.
func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]*model.Node, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var nodes []*model.Node
	for rows.Next() {
		var n model.Node
		if err := rows.Scan(&n.Key, &n.Text, &n.Icon, &n.LazyLoad); err != nil {
			rows.Close()
			return nil, err
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, n := range nodes {
		if n.LazyLoad {
			continue
		}
		kids, err := s.query(ctx, `SELECT key, text, icon, lazy FROM nodes WHERE parent_key = ? ORDER BY position`, n.Key)
		if err != nil {
			return nil, err
		}
		if len(kids) > 0 {
			n.Nodes = kids
		}
	}
	if nodes == nil {
		nodes = []*model.Node{}
	}
	return nodes, nil
}

// cloneNodes copies a shared singleflight result so each caller owns its
// nodes.
func cloneNodes(nodes []*model.Node) []*model.Node {
	out := make([]*model.Node, len(nodes))
	for i, n := range nodes {
		c := *n
		if n.Nodes != nil {
			c.Nodes = cloneNodes(n.Nodes)
		}
		out[i] = &c
	}
	return out
}
