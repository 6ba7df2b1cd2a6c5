package engine_util

import "github.com/Connor1996/badger"

// Snapshot is a point in time view of the engine backed by a badger read transaction. Iterators created
// from it borrow the transaction and must be closed before the snapshot.
type Snapshot struct {
	engine *Engine
	txn    *badger.Txn
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	return s.GetCF(CfDefault, key)
}

func (s *Snapshot) GetCF(cf string, key []byte) ([]byte, error) {
	if err := s.engine.checkCF(cf); err != nil {
		return nil, err
	}
	return GetCFFromTxn(s.txn, cf, key)
}

func (s *Snapshot) Iterator() (*CFIterator, error) {
	return s.IteratorCF(CfDefault, IterOptions{})
}

func (s *Snapshot) IteratorCF(cf string, opts IterOptions) (*CFIterator, error) {
	if err := s.engine.checkCF(cf); err != nil {
		return nil, err
	}
	return NewCFIterator(cf, s.txn, opts), nil
}

func (s *Snapshot) ScanCF(cf string, start, end []byte, fn func(key, value []byte) (bool, error)) error {
	if err := s.engine.checkCF(cf); err != nil {
		return err
	}
	return scanCF(s.txn, cf, start, end, fn)
}

func (s *Snapshot) CFNames() []string {
	return s.engine.CFNames()
}

func (s *Snapshot) Close() {
	s.txn.Discard()
}
