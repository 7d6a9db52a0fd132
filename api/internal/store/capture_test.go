package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// captureDriver records Exec calls; queries are not supported.
type captureDriver struct{ conn *captureConn }

func (d captureDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type execCall struct {
	query string
	args  []any
}

type captureConn struct {
	mu    sync.Mutex
	execs []execCall
}

func (c *captureConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *captureConn) Close() error              { return nil }
func (c *captureConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c *captureConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call := execCall{query: query}
	for _, a := range args {
		call.args = append(call.args, a.Value)
	}
	c.execs = append(c.execs, call)
	return driver.RowsAffected(1), nil
}

func openCaptureDB(t *testing.T) (*sql.DB, *captureConn) {
	t.Helper()
	conn := &captureConn{}
	name := "capture-" + uuid.NewString()
	sql.Register(name, captureDriver{conn: conn})
	db, err := sql.Open(name, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, conn
}
