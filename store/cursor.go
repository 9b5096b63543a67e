package store

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Cursor is the durable pointer into the update stream. The file holds
// a single base-10 integer: the id of the next unseen update. It only
// ever grows. The polling loop is the only writer; the status endpoint
// reads concurrently.
type Cursor struct {
	path string

	mu      sync.Mutex
	current int
}

// OpenCursor reads the cursor from path, creating the file with 0 on
// first run.
func OpenCursor(path string) (*Cursor, error) {
	c := &Cursor{path: path}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, c.write(0)
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read cursor file")
	}
	current, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, errors.Wrap(err, "malformed cursor file")
	}
	c.current = current
	return c, nil
}

// Next returns the id of the next unseen update.
func (c *Cursor) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance records that the update with lastID has been consumed, moving
// the cursor to lastID+1. A stale id never moves the cursor backwards.
func (c *Cursor) Advance(lastID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := lastID + 1
	if next <= c.current {
		return nil
	}
	return c.write(next)
}

func (c *Cursor) write(next int) error {
	if err := os.WriteFile(c.path, []byte(strconv.Itoa(next)), 0o644); err != nil {
		return errors.Wrap(err, "unable to write cursor file")
	}
	c.current = next
	return nil
}
