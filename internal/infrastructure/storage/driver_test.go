package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

const memoryDriverName = "wikitracker-memory"

// memoryDriver answers the two statements the repository issues: the batched INSERT and the
// grouped label count. Each DSN is a separate store.
type memoryDriver struct {
	mu     sync.Mutex
	stores map[string]*memoryStore
}

type memoryStore struct {
	mu      sync.Mutex
	rows    []storedRow
	pending []storedRow
	inserts int
}

type storedRow struct {
	runID string
	label string
}

var memDriver = &memoryDriver{stores: map[string]*memoryStore{}}

func init() {
	sql.Register(memoryDriverName, memDriver)
}

func (d *memoryDriver) store(dsn string) *memoryStore {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.stores[dsn]
	if !ok {
		s = &memoryStore{}
		d.stores[dsn] = s
	}
	return s
}

func (d *memoryDriver) Open(dsn string) (driver.Conn, error) {
	return &memoryConn{store: d.store(dsn)}, nil
}

type memoryConn struct {
	store *memoryStore
	inTx  bool
}

func (c *memoryConn) Prepare(query string) (driver.Stmt, error) {
	return &memoryStmt{conn: c, query: query}, nil
}

func (c *memoryConn) Close() error { return nil }

func (c *memoryConn) Begin() (driver.Tx, error) {
	c.inTx = true
	return c, nil
}

func (c *memoryConn) Commit() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.rows = append(c.store.rows, c.store.pending...)
	c.store.pending = nil
	c.inTx = false
	return nil
}

func (c *memoryConn) Rollback() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.pending = nil
	c.inTx = false
	return nil
}

type memoryStmt struct {
	conn  *memoryConn
	query string
}

func (s *memoryStmt) Close() error  { return nil }
func (s *memoryStmt) NumInput() int { return -1 }

func (s *memoryStmt) Exec(args []driver.Value) (driver.Result, error) {
	if !strings.HasPrefix(s.query, "INSERT INTO") {
		return nil, fmt.Errorf("unsupported exec: %s", s.query)
	}
	if len(args)%7 != 0 {
		return nil, fmt.Errorf("expected 7 values per row, got %d", len(args))
	}

	store := s.conn.store
	store.mu.Lock()
	defer store.mu.Unlock()
	store.inserts++
	for i := 0; i < len(args); i += 7 {
		row := storedRow{runID: fmt.Sprint(args[i]), label: fmt.Sprint(args[i+4])}
		if s.conn.inTx {
			store.pending = append(store.pending, row)
		} else {
			store.rows = append(store.rows, row)
		}
	}
	return driver.RowsAffected(len(args) / 7), nil
}

func (s *memoryStmt) Query(args []driver.Value) (driver.Rows, error) {
	if !strings.HasPrefix(s.query, "SELECT label, COUNT(*)") || len(args) != 1 {
		return nil, fmt.Errorf("unsupported query: %s", s.query)
	}
	runID := fmt.Sprint(args[0])

	store := s.conn.store
	store.mu.Lock()
	counts := map[string]int64{}
	for _, row := range store.rows {
		if row.runID == runID {
			counts[row.label]++
		}
	}
	store.mu.Unlock()

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := &memoryRows{}
	for _, label := range labels {
		out.values = append(out.values, []driver.Value{label, counts[label]})
	}
	return out, nil
}

type memoryRows struct {
	values [][]driver.Value
	pos    int
}

func (r *memoryRows) Columns() []string { return []string{"label", "count"} }
func (r *memoryRows) Close() error      { return nil }

func (r *memoryRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.pos])
	r.pos++
	return nil
}

var errNoStore = errors.New("no store for dsn")

func storeFor(dsn string) (*memoryStore, error) {
	memDriver.mu.Lock()
	defer memDriver.mu.Unlock()
	s, ok := memDriver.stores[dsn]
	if !ok {
		return nil, errNoStore
	}
	return s, nil
}
