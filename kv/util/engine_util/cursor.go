package engine_util

import (
	"bytes"

	"github.com/Connor1996/badger"
)

// cursor steps over physical keys in both directions. Badger iterators only move one way, so the
// cursor keeps a forward and a reverse iterator and re-seeks the other one when the direction changes.
// Both are created lazily from the borrowed transaction.
type cursor struct {
	txn     *badger.Txn
	fwd     *badger.Iterator
	rev     *badger.Iterator
	reverse bool
}

func newCursor(txn *badger.Txn) *cursor {
	return &cursor{txn: txn}
}

func (c *cursor) forward() *badger.Iterator {
	if c.fwd == nil {
		c.fwd = c.txn.NewIterator(badger.IteratorOptions{})
	}
	c.reverse = false
	return c.fwd
}

func (c *cursor) backward() *badger.Iterator {
	if c.rev == nil {
		c.rev = c.txn.NewIterator(badger.IteratorOptions{Reverse: true})
	}
	c.reverse = true
	return c.rev
}

func (c *cursor) current() *badger.Iterator {
	if c.reverse {
		return c.rev
	}
	return c.fwd
}

func (c *cursor) valid() bool {
	it := c.current()
	return it != nil && it.Valid()
}

func (c *cursor) item() *badger.Item {
	return c.current().Item()
}

func (c *cursor) key() []byte {
	return c.item().Key()
}

// seek positions at the first key >= target.
func (c *cursor) seek(target []byte) {
	c.forward().Seek(target)
}

// seekForPrev positions at the last key <= target. target must not be empty, badger treats an empty
// reverse seek as a rewind to the end.
func (c *cursor) seekForPrev(target []byte) {
	c.backward().Seek(target)
}

// seekBefore positions at the last key < target.
func (c *cursor) seekBefore(target []byte) {
	c.seekForPrev(target)
	if c.valid() && bytes.Equal(c.key(), target) {
		c.rev.Next()
	}
}

func (c *cursor) next() {
	if !c.reverse {
		c.fwd.Next()
		return
	}
	k := c.item().KeyCopy(nil)
	it := c.forward()
	it.Seek(k)
	if it.Valid() && bytes.Equal(it.Item().Key(), k) {
		it.Next()
	}
}

func (c *cursor) prev() {
	if c.reverse {
		c.rev.Next()
		return
	}
	k := c.item().KeyCopy(nil)
	c.seekBefore(k)
}

func (c *cursor) close() {
	if c.fwd != nil {
		c.fwd.Close()
		c.fwd = nil
	}
	if c.rev != nil {
		c.rev.Close()
		c.rev = nil
	}
}
