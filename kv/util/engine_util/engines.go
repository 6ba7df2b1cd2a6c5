package engine_util

import (
	"os"
	"sync"

	"github.com/Connor1996/badger"
	"github.com/pingcap-incubator/badgercf/kv/config"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Engine emulates column families on one badger database. Every column family operation checks the
// family before touching storage.
type Engine struct {
	db   *badger.DB
	path string
	conf *config.Config

	// cfNames keeps the configured order, default first.
	cfNames []string
	cfs     map[string]struct{}

	closeOnce sync.Once
}

// NewEngine opens the badger database under conf.DBPath with the configured column families.
func NewEngine(conf *config.Config) (*Engine, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	names := []string{CfDefault}
	cfs := map[string]struct{}{CfDefault: {}}
	for _, cf := range conf.ColumnFamilies {
		if _, ok := cfs[cf]; ok {
			continue
		}
		cfs[cf] = struct{}{}
		names = append(names, cf)
	}

	db, err := CreateDB(conf.DBPath, &conf.Engine)
	if err != nil {
		return nil, err
	}
	log.Info("engine opened", zap.String("path", conf.DBPath), zap.Strings("cfs", names))
	return &Engine{
		db:      db,
		path:    conf.DBPath,
		conf:    conf,
		cfNames: names,
		cfs:     cfs,
	}, nil
}

// CreateDB creates a new Badger DB on disk at path.
func CreateDB(path string, conf *config.Engine) (*badger.DB, error) {
	opts := badger.DefaultOptions
	opts.NumCompactors = conf.NumCompactors
	opts.ValueThreshold = conf.ValueThreshold
	opts.Dir = path
	opts.ValueDir = opts.Dir
	opts.ValueLogFileSize = int64(conf.VlogFileSize)
	opts.MaxTableSize = int64(conf.MaxTableSize)
	opts.NumMemtables = conf.NumMemTables
	opts.NumLevelZeroTables = conf.NumL0Tables
	opts.NumLevelZeroTablesStall = conf.NumL0TablesStall
	opts.SyncWrites = conf.SyncWrites
	opts.MaxCacheSize = int64(conf.BlockCacheSize)
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Annotatef(err, "open badger at %s", path)
	}
	return db, nil
}

func (e *Engine) checkCF(cf string) error {
	if _, ok := e.cfs[cf]; !ok {
		return errors.Annotatef(ErrUnknownColumnFamily, "cf %q", cf)
	}
	return nil
}

// CFNames lists the column families, default first.
func (e *Engine) CFNames() []string {
	return append([]string(nil), e.cfNames...)
}

// DB exposes the underlying badger database.
func (e *Engine) DB() *badger.DB {
	return e.db
}

func (e *Engine) Path() string {
	return e.path
}

func (e *Engine) Get(key []byte) ([]byte, error) {
	return e.GetCF(CfDefault, key)
}

// GetCF returns nil without error when the key does not exist.
func (e *Engine) GetCF(cf string, key []byte) (val []byte, err error) {
	if err = e.checkCF(cf); err != nil {
		return nil, err
	}
	err = e.db.View(func(txn *badger.Txn) error {
		val, err = GetCFFromTxn(txn, cf, key)
		return err
	})
	observeOp("get", err)
	return val, err
}

func (e *Engine) Put(key, value []byte) error {
	return e.PutCF(CfDefault, key, value)
}

func (e *Engine) PutCF(cf string, key, value []byte) error {
	if err := e.checkCF(cf); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(KeyWithCF(cf, key), value)
	})
	observeOp("put", err)
	return errors.WithStack(err)
}

func (e *Engine) Delete(key []byte) error {
	return e.DeleteCF(CfDefault, key)
}

func (e *Engine) DeleteCF(cf string, key []byte) error {
	if err := e.checkCF(cf); err != nil {
		return err
	}
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(KeyWithCF(cf, key))
	})
	observeOp("delete", err)
	return errors.WithStack(err)
}

func (e *Engine) DeleteRange(begin, end []byte) error {
	return e.DeleteRangeCF(CfDefault, begin, end)
}

// DeleteRangeCF removes the keys of cf in [begin, end) in one transaction. An empty end means the rest
// of the column family.
func (e *Engine) DeleteRangeCF(cf string, begin, end []byte) error {
	if err := e.checkCF(cf); err != nil {
		return err
	}
	if err := checkRange(cf, begin, end); err != nil {
		return err
	}
	var deleted int
	err := e.db.Update(func(txn *badger.Txn) error {
		var err1 error
		deleted, err1 = deleteRangeInTxn(txn, cf, begin, end)
		return err1
	})
	observeOp("delete_range", err)
	if err != nil {
		return errors.WithStack(err)
	}
	rangeDeletedKeys.Add(float64(deleted))
	log.Debug("range deleted", zap.String("cf", cf), zap.Binary("begin", begin), zap.Binary("end", end),
		zap.Int("keys", deleted))
	return nil
}

// KeyRange is a [Start, End) range of logical keys. An empty End is open.
type KeyRange struct {
	Start []byte
	End   []byte
}

// DeleteRangesCF removes several ranges of cf through write batches flushed whenever
// ShouldWriteToEngine asks for it. Each flush is atomic, the whole call is not.
func (e *Engine) DeleteRangesCF(cf string, ranges []KeyRange) error {
	if err := e.checkCF(cf); err != nil {
		return err
	}
	for _, r := range ranges {
		if err := checkRange(cf, r.Start, r.End); err != nil {
			return err
		}
	}
	wb := e.NewWriteBatch()
	snap := e.Snapshot()
	defer snap.Close()
	for _, r := range ranges {
		err := snap.ScanCF(cf, r.Start, r.End, func(key, _ []byte) (bool, error) {
			wb.DeleteCF(cf, key)
			if wb.ShouldWriteToEngine() {
				if err := wb.Write(); err != nil {
					return false, err
				}
				wb.Clear()
			}
			return true, nil
		})
		if err != nil {
			return err
		}
	}
	return wb.Write()
}

func (e *Engine) Scan(start, end []byte, fn func(key, value []byte) (bool, error)) error {
	return e.ScanCF(CfDefault, start, end, fn)
}

// ScanCF calls fn for every key of cf in [start, end) in order until fn returns false or an error.
func (e *Engine) ScanCF(cf string, start, end []byte, fn func(key, value []byte) (bool, error)) error {
	if err := e.checkCF(cf); err != nil {
		return err
	}
	return e.db.View(func(txn *badger.Txn) error {
		return scanCF(txn, cf, start, end, fn)
	})
}

func (e *Engine) Snapshot() *Snapshot {
	return &Snapshot{engine: e, txn: e.db.NewTransaction(false)}
}

func (e *Engine) Iterator() (*CFIterator, error) {
	return e.IteratorCF(CfDefault, IterOptions{})
}

// IteratorCF returns an iterator over a private read transaction released by Close.
func (e *Engine) IteratorCF(cf string, opts IterOptions) (*CFIterator, error) {
	if err := e.checkCF(cf); err != nil {
		return nil, err
	}
	txn := e.db.NewTransaction(false)
	it := NewCFIterator(cf, txn, opts)
	it.ownedTxn = txn
	return it, nil
}

func (e *Engine) NewWriteBatch() *WriteBatch {
	return &WriteBatch{engine: e}
}

// UsedSize is the size of the LSM tree plus the value log.
func (e *Engine) UsedSize() uint64 {
	lsm, vlog := e.db.Size()
	return uint64(lsm + vlog)
}

// Sync succeeds when badger already syncs every write.
func (e *Engine) Sync() error {
	if e.conf.Engine.SyncWrites {
		return nil
	}
	return errors.Annotate(ErrNotSupported, "sync without sync-writes")
}

func (e *Engine) LatestSequenceNumber() (uint64, error) {
	return 0, errors.Annotate(ErrNotSupported, "sequence number")
}

func (e *Engine) CompactRangeCF(cf string, start, end []byte) error {
	if err := e.checkCF(cf); err != nil {
		return err
	}
	return errors.Annotate(ErrNotSupported, "manual compaction")
}

func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.db.Close()
		log.Info("engine closed", zap.String("path", e.path))
	})
	return errors.Trace(err)
}

// Destroy closes the engine and removes its data.
func (e *Engine) Destroy() error {
	if err := e.Close(); err != nil {
		return err
	}
	return errors.Trace(os.RemoveAll(e.path))
}

func observeOp(tp string, err error) {
	result := "ok"
	if err != nil {
		result = "err"
	}
	engineOpCounter.WithLabelValues(tp, result).Inc()
}
