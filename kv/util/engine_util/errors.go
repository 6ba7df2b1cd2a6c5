package engine_util

import "github.com/pingcap/errors"

var (
	ErrUnknownColumnFamily = errors.New("unknown column family")
	ErrInvalidRange        = errors.New("invalid range: end key is less than start key")
	ErrKeyOrderViolation   = errors.New("keys must be added in strict ascending order")
	ErrCursorMisuse        = errors.New("iterator is not positioned")
	ErrNoSavePoint         = errors.New("no save point")
	ErrNotSupported        = errors.New("not supported")
)

// IsInvalidRequest reports whether err was caused by the caller rather than by storage.
func IsInvalidRequest(err error) bool {
	switch errors.Cause(err) {
	case ErrUnknownColumnFamily, ErrInvalidRange, ErrKeyOrderViolation, ErrCursorMisuse, ErrNoSavePoint:
		return true
	}
	return false
}
