// Package cursor tracks a single file's position through a three-way merge:
// which row is current, which rows have been set aside to wait for a
// matching row elsewhere (the backlog), and how far away a given key still
// is (its relevance), so the merge driver can decide whether to resync now
// or defer.
package cursor

import (
	"math"

	"github.com/tablestream/csvmerge3/internal/row"
)

// Infinite is the relevance value returned for a key that cannot be found
// anywhere ahead of or deferred by the cursor.
const Infinite = math.MaxInt32

// Cursor walks one file's rows in order, skipping rows already consumed,
// and holds the backlog of rows set aside earlier in the merge so they can
// be recalled by key later without rescanning the file.
type Cursor struct {
	rows     []*row.Row
	byKey    map[string]int
	pos      int
	backlog  map[string]*row.Row
	consumed map[string]bool
}

// New builds a cursor over rows, which must already be indexed by the
// resolved primary key (row.Key set on every row, no duplicates).
func New(rows []*row.Row) *Cursor {
	byKey := make(map[string]int, len(rows))
	for i, r := range rows {
		byKey[r.Key] = i
	}
	return &Cursor{
		rows:     rows,
		byKey:    byKey,
		backlog:  map[string]*row.Row{},
		consumed: map[string]bool{},
	}
}

func (c *Cursor) skipConsumed() {
	for c.pos < len(c.rows) && c.rows[c.pos].Consumed {
		c.pos++
	}
}

// Current returns the row at the cursor's position, or nil if the file is
// exhausted (backlog entries are not "current"; they are recalled by key).
func (c *Cursor) Current() *row.Row {
	c.skipConsumed()
	if c.pos >= len(c.rows) {
		return nil
	}
	return c.rows[c.pos]
}

// CurrentKey returns the key of the current row and true, or ("", false)
// at end of file.
func (c *Cursor) CurrentKey() (string, bool) {
	r := c.Current()
	if r == nil {
		return "", false
	}
	return r.Key, true
}

// advance moves past the current row without marking it consumed. Used
// after the row has been handed off elsewhere (Defer, or Consume once it
// has marked the current row consumed itself).
func (c *Cursor) advance() {
	c.pos++
	c.skipConsumed()
}

// Defer moves the current row into the backlog and advances past it. The
// row remains available to Match/Consume by key until it is later pulled
// back out.
func (c *Cursor) Defer() {
	r := c.Current()
	if r == nil {
		return
	}
	c.backlog[r.Key] = r
	c.advance()
}

// Match returns the row for key if it is reachable from here: already
// waiting in the backlog, or present at or after the cursor's position and
// not yet consumed. It does not mutate cursor state.
func (c *Cursor) Match(key string) *row.Row {
	if r, ok := c.backlog[key]; ok {
		return r
	}
	if c.consumed[key] {
		return nil
	}
	idx, ok := c.byKey[key]
	if !ok || idx < c.pos {
		return nil
	}
	return c.rows[idx]
}

// Relevance returns how many rows away key is from the cursor's current
// position: 0 if it is already in the backlog, d if it is d rows ahead and
// unconsumed, or Infinite if it cannot be found at all.
func (c *Cursor) Relevance(key string) int {
	if _, ok := c.backlog[key]; ok {
		return 0
	}
	if c.consumed[key] {
		return Infinite
	}
	idx, ok := c.byKey[key]
	if !ok || idx < c.pos {
		return Infinite
	}
	return idx - c.pos
}

// Consume marks key fully handled by this file: removed from the backlog
// if it was waiting there, or marked consumed in place. If the consumed
// row was the cursor's current row, the cursor advances past it (and any
// further already-consumed rows).
func (c *Cursor) Consume(key string) {
	if r, ok := c.backlog[key]; ok {
		delete(c.backlog, key)
		r.Consumed = true
		c.consumed[key] = true
		return
	}
	idx, ok := c.byKey[key]
	if !ok {
		return
	}
	r := c.rows[idx]
	r.Consumed = true
	c.consumed[key] = true
	if idx == c.pos {
		c.advance()
	}
}

// Drained reports whether the cursor has nothing left to offer: every row
// has been passed or consumed, and the backlog is empty.
func (c *Cursor) Drained() bool {
	c.skipConsumed()
	return c.pos >= len(c.rows) && len(c.backlog) == 0
}

// BacklogLen reports how many rows are currently deferred, mainly for
// diagnostics and crash dumps.
func (c *Cursor) BacklogLen() int {
	return len(c.backlog)
}

// InBacklog reports whether key is specifically waiting in the backlog, as
// opposed to being reachable by scanning forward from the current
// position. The merge driver uses this to give a previously deferred row
// priority over the cursor's own positional current row.
func (c *Cursor) InBacklog(key string) bool {
	_, ok := c.backlog[key]
	return ok
}
