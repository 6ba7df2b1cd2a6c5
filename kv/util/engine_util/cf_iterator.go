package engine_util

import (
	"bytes"

	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
)

// IterOptions bounds an iterator to [LowerBound, UpperBound) in logical keys. An empty bound is open.
type IterOptions struct {
	LowerBound []byte
	UpperBound []byte
}

// Iterator is implemented by the engine and sst iterators of one column family.
type Iterator interface {
	// SeekToFirst positions at the first key not less than the lower bound.
	SeekToFirst() bool
	// SeekToLast positions at the last key less than the upper bound.
	SeekToLast() bool
	// Seek positions at the first key >= max(key, lower bound).
	Seek(key []byte) bool
	// SeekForPrev positions at the last key <= key.
	SeekForPrev(key []byte) bool
	// Next and Prev return ErrCursorMisuse unless the iterator is positioned.
	Next() (bool, error)
	Prev() (bool, error)
	Valid() bool
	// Key returns the logical key. It is only valid until the iterator moves.
	Key() []byte
	Value() ([]byte, error)
	Close()
}

type DBItem interface {
	// Key returns the key.
	Key() []byte
	// KeyCopy returns a copy of the key of the item, writing it to dst slice.
	// If nil is passed, or capacity of dst isn't sufficient, a new slice would be allocated and
	// returned.
	KeyCopy(dst []byte) []byte
	// Value retrieves the value of the item.
	Value() ([]byte, error)
	// ValueSize returns the size of the value.
	ValueSize() int
	// ValueCopy returns a copy of the value of the item from the value log, writing it to dst slice.
	// If nil is passed, or capacity of dst isn't sufficient, a new slice would be allocated and
	// returned.
	ValueCopy(dst []byte) ([]byte, error)
}

type CFItem struct {
	item      *badger.Item
	prefixLen int
}

// String returns a string representation of Item
func (i *CFItem) String() string {
	return i.item.String()
}

func (i *CFItem) Key() []byte {
	return i.item.Key()[i.prefixLen:]
}

func (i *CFItem) KeyCopy(dst []byte) []byte {
	return append(dst[:0], i.Key()...)
}

func (i *CFItem) Version() uint64 {
	return i.item.Version()
}

func (i *CFItem) Value() ([]byte, error) {
	return i.item.Value()
}

func (i *CFItem) ValueSize() int {
	return i.item.ValueSize()
}

func (i *CFItem) ValueCopy(dst []byte) ([]byte, error) {
	return i.item.ValueCopy(dst)
}

type iterState int

const (
	stateUnpositioned iterState = iota
	statePositioned
	stateExhausted
)

// CFIterator iterates one column family of a badger transaction as if it were its own bounded map.
type CFIterator struct {
	cur    *cursor
	cf     string
	prefix []byte
	lower  []byte // inclusive physical bound
	upper  []byte // exclusive physical bound
	state  iterState

	// ownedTxn is discarded on Close.
	ownedTxn *badger.Txn
}

// NewCFIterator borrows txn, which must outlive the iterator.
func NewCFIterator(cf string, txn *badger.Txn, opts IterOptions) *CFIterator {
	it := &CFIterator{
		cur:    newCursor(txn),
		cf:     cf,
		prefix: CFPrefix(cf),
		lower:  KeyWithCF(cf, opts.LowerBound),
		upper:  CFUpperBound(cf),
	}
	if len(opts.UpperBound) > 0 {
		it.upper = KeyWithCF(cf, opts.UpperBound)
	}
	return it
}

func (it *CFIterator) CF() string {
	return it.cf
}

func (it *CFIterator) inRange(key []byte) bool {
	return bytes.Compare(key, it.lower) >= 0 && bytes.Compare(key, it.upper) < 0
}

func (it *CFIterator) settle() bool {
	if it.cur.valid() && it.inRange(it.cur.key()) {
		it.state = statePositioned
		return true
	}
	it.state = stateExhausted
	return false
}

func (it *CFIterator) SeekToFirst() bool {
	it.cur.seek(it.lower)
	return it.settle()
}

func (it *CFIterator) SeekToLast() bool {
	it.cur.seekBefore(it.upper)
	return it.settle()
}

func (it *CFIterator) Seek(key []byte) bool {
	target := KeyWithCF(it.cf, key)
	if bytes.Compare(target, it.lower) < 0 {
		target = it.lower
	}
	it.cur.seek(target)
	return it.settle()
}

func (it *CFIterator) SeekForPrev(key []byte) bool {
	target := KeyWithCF(it.cf, key)
	if bytes.Compare(target, it.upper) >= 0 {
		return it.SeekToLast()
	}
	it.cur.seekForPrev(target)
	return it.settle()
}

func (it *CFIterator) Next() (bool, error) {
	if it.state != statePositioned {
		return false, errors.WithStack(ErrCursorMisuse)
	}
	it.cur.next()
	return it.settle(), nil
}

func (it *CFIterator) Prev() (bool, error) {
	if it.state != statePositioned {
		return false, errors.WithStack(ErrCursorMisuse)
	}
	it.cur.prev()
	return it.settle(), nil
}

func (it *CFIterator) Valid() bool {
	return it.state == statePositioned
}

func (it *CFIterator) Item() DBItem {
	return &CFItem{
		item:      it.cur.item(),
		prefixLen: len(it.prefix),
	}
}

func (it *CFIterator) Key() []byte {
	return it.cur.key()[len(it.prefix):]
}

func (it *CFIterator) Value() ([]byte, error) {
	v, err := it.cur.item().Value()
	return v, errors.Trace(err)
}

func (it *CFIterator) Close() {
	it.cur.close()
	if it.ownedTxn != nil {
		it.ownedTxn.Discard()
		it.ownedTxn = nil
	}
}
