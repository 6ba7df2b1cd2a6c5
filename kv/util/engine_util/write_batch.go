package engine_util

import (
	"bytes"
	"sync"
	"time"

	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// WriteBatchMaxKeys is the record count above which ShouldWriteToEngine asks for a flush.
const WriteBatchMaxKeys = 128

type mutationType byte

const (
	mutationPut mutationType = iota
	mutationDelete
	mutationDeleteRange
)

type mutation struct {
	tp    mutationType
	cf    string
	key   []byte
	value []byte
	// end is the exclusive end of a range deletion.
	end []byte
}

func (m *mutation) size() int {
	return len(m.key) + len(m.value) + len(m.end)
}

type savePoint struct {
	count int
	size  int
}

// WriteBatch buffers mutations of several column families and commits them in one badger transaction.
// Nothing is validated until Write.
type WriteBatch struct {
	mu         sync.Mutex
	engine     *Engine
	mutations  []mutation
	size       int
	savePoints []savePoint
}

func (wb *WriteBatch) append(m mutation) {
	wb.mu.Lock()
	wb.mutations = append(wb.mutations, m)
	wb.size += m.size()
	wb.mu.Unlock()
}

func (wb *WriteBatch) Put(key, value []byte) {
	wb.PutCF(CfDefault, key, value)
}

func (wb *WriteBatch) PutCF(cf string, key, value []byte) {
	wb.append(mutation{
		tp:    mutationPut,
		cf:    cf,
		key:   append([]byte(nil), key...),
		value: append([]byte{}, value...),
	})
}

func (wb *WriteBatch) Delete(key []byte) {
	wb.DeleteCF(CfDefault, key)
}

func (wb *WriteBatch) DeleteCF(cf string, key []byte) {
	wb.append(mutation{
		tp:  mutationDelete,
		cf:  cf,
		key: append([]byte(nil), key...),
	})
}

func (wb *WriteBatch) DeleteRange(begin, end []byte) {
	wb.DeleteRangeCF(CfDefault, begin, end)
}

// DeleteRangeCF removes every key of cf in [begin, end) at commit time. An empty end means the rest of
// the column family.
func (wb *WriteBatch) DeleteRangeCF(cf string, begin, end []byte) {
	wb.append(mutation{
		tp:  mutationDeleteRange,
		cf:  cf,
		key: append([]byte(nil), begin...),
		end: append([]byte(nil), end...),
	})
}

func (wb *WriteBatch) Count() int {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return len(wb.mutations)
}

func (wb *WriteBatch) IsEmpty() bool {
	return wb.Count() == 0
}

// DataSize is the total length of buffered keys and values.
func (wb *WriteBatch) DataSize() int {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.size
}

func (wb *WriteBatch) ShouldWriteToEngine() bool {
	return wb.Count() > WriteBatchMaxKeys
}

func (wb *WriteBatch) Clear() {
	wb.mu.Lock()
	wb.mutations = wb.mutations[:0]
	wb.size = 0
	wb.savePoints = wb.savePoints[:0]
	wb.mu.Unlock()
}

func (wb *WriteBatch) SetSavePoint() {
	wb.mu.Lock()
	wb.savePoints = append(wb.savePoints, savePoint{count: len(wb.mutations), size: wb.size})
	wb.mu.Unlock()
}

// PopSavePoint drops the latest save point and keeps the mutations after it.
func (wb *WriteBatch) PopSavePoint() error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if len(wb.savePoints) == 0 {
		return errors.WithStack(ErrNoSavePoint)
	}
	wb.savePoints = wb.savePoints[:len(wb.savePoints)-1]
	return nil
}

// RollbackToSavePoint drops the mutations added since the latest save point and pops it.
func (wb *WriteBatch) RollbackToSavePoint() error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if len(wb.savePoints) == 0 {
		return errors.WithStack(ErrNoSavePoint)
	}
	sp := wb.savePoints[len(wb.savePoints)-1]
	wb.savePoints = wb.savePoints[:len(wb.savePoints)-1]
	for i := sp.count; i < len(wb.mutations); i++ {
		wb.mutations[i] = mutation{}
	}
	wb.mutations = wb.mutations[:sp.count]
	wb.size = sp.size
	return nil
}

// Merge appends the mutations of other. other is left unchanged.
func (wb *WriteBatch) Merge(other *WriteBatch) {
	other.mu.Lock()
	mutations := append([]mutation(nil), other.mutations...)
	size := other.size
	other.mu.Unlock()

	wb.mu.Lock()
	wb.mutations = append(wb.mutations, mutations...)
	wb.size += size
	wb.mu.Unlock()
}

func (wb *WriteBatch) validate() error {
	for i := range wb.mutations {
		m := &wb.mutations[i]
		if err := wb.engine.checkCF(m.cf); err != nil {
			return err
		}
		if m.tp == mutationDeleteRange && len(m.end) > 0 && bytes.Compare(m.end, m.key) < 0 {
			return errors.Annotatef(ErrInvalidRange, "cf %s, range [%x, %x)", m.cf, m.key, m.end)
		}
	}
	return nil
}

// Write commits every buffered mutation atomically in append order. The batch keeps its content, call
// Clear to reuse it.
func (wb *WriteBatch) Write() error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if len(wb.mutations) == 0 {
		return nil
	}
	if wb.engine == nil {
		return errors.New("write batch is not bound to an engine")
	}
	if err := wb.validate(); err != nil {
		engineOpCounter.WithLabelValues("write_batch", "invalid").Inc()
		return err
	}

	start := time.Now()
	var rangeDeleted int
	err := wb.engine.db.Update(func(txn *badger.Txn) error {
		for i := range wb.mutations {
			m := &wb.mutations[i]
			var err1 error
			switch m.tp {
			case mutationPut:
				err1 = txn.Set(KeyWithCF(m.cf, m.key), m.value)
			case mutationDelete:
				err1 = txn.Delete(KeyWithCF(m.cf, m.key))
			case mutationDeleteRange:
				var n int
				n, err1 = deleteRangeInTxn(txn, m.cf, m.key, m.end)
				rangeDeleted += n
			}
			if err1 != nil {
				return err1
			}
		}
		return nil
	})
	writeBatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		engineOpCounter.WithLabelValues("write_batch", "err").Inc()
		log.Warn("failed to write batch",
			zap.Int("count", len(wb.mutations)), zap.Int("size", wb.size), zap.Error(err))
		return errors.WithStack(err)
	}
	engineOpCounter.WithLabelValues("write_batch", "ok").Inc()
	writeBatchSize.Observe(float64(wb.size))
	rangeDeletedKeys.Add(float64(rangeDeleted))
	return nil
}

// deleteRangeInTxn deletes the keys of cf in [begin, end) visible to txn, including its own pending
// writes. Keys are collected first so the iterator is closed before the deletes are issued.
func deleteRangeInTxn(txn *badger.Txn, cf string, begin, end []byte) (int, error) {
	opts := IterOptions{LowerBound: begin}
	if len(end) > 0 {
		opts.UpperBound = end
	}
	it := NewCFIterator(cf, txn, opts)
	var keys [][]byte
	for ok := it.SeekToFirst(); ok; {
		keys = append(keys, it.cur.item().KeyCopy(nil))
		var err error
		if ok, err = it.Next(); err != nil {
			it.Close()
			return 0, err
		}
	}
	it.Close()
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
