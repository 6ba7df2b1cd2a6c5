package engine_util

import (
	"bytes"

	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
)

// GetCFFromTxn returns nil without error when the key does not exist.
func GetCFFromTxn(txn *badger.Txn, cf string, key []byte) (val []byte, err error) {
	item, err := txn.Get(KeyWithCF(cf, key))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	val, err = item.ValueCopy(val)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if val == nil {
		// An existing key with an empty value is not a miss.
		val = []byte{}
	}
	return val, nil
}

func scanCF(txn *badger.Txn, cf string, start, end []byte, fn func(key, value []byte) (bool, error)) error {
	if err := checkRange(cf, start, end); err != nil {
		return err
	}
	opts := IterOptions{LowerBound: start}
	if len(end) > 0 {
		opts.UpperBound = end
	}
	it := NewCFIterator(cf, txn, opts)
	defer it.Close()
	for ok := it.SeekToFirst(); ok; {
		val, err := it.Value()
		if err != nil {
			return err
		}
		cont, err := fn(it.Key(), val)
		if err != nil || !cont {
			return err
		}
		if ok, err = it.Next(); err != nil {
			return err
		}
	}
	return nil
}

func checkRange(cf string, start, end []byte) error {
	if len(end) > 0 && bytes.Compare(end, start) < 0 {
		return errors.Annotatef(ErrInvalidRange, "cf %s, range [%x, %x)", cf, start, end)
	}
	return nil
}
