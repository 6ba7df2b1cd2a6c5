package engine_util

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pingcap-incubator/badgercf/kv/config"
	"github.com/pingcap-incubator/badgercf/kv/util"
	"github.com/pingcap-incubator/badgercf/rocksdb"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const sstWriteBufferSize = 1024 * 1024

// ExternalSstFileInfo describes a finished sst file. Keys are logical, tombstones included.
type ExternalSstFileInfo struct {
	FilePath       string
	SmallestKey    []byte
	LargestKey     []byte
	FileSize       uint64
	NumEntries     uint64
	SequenceNumber uint64
}

type SstWriterBuilder struct {
	engine           *Engine
	cf               string
	inMemory         bool
	compression      *rocksdb.CompressionType
	compressionLevel int
}

func NewSstWriterBuilder() *SstWriterBuilder {
	return &SstWriterBuilder{cf: CfDefault}
}

func (e *Engine) NewSstWriterBuilder() *SstWriterBuilder {
	return NewSstWriterBuilder().SetEngine(e)
}

// SetEngine makes Build check the column family and use the engine's sst settings.
func (b *SstWriterBuilder) SetEngine(e *Engine) *SstWriterBuilder {
	b.engine = e
	return b
}

func (b *SstWriterBuilder) SetCF(cf string) *SstWriterBuilder {
	b.cf = cf
	return b
}

// SetInMemory builds the table in memory and writes the file only on Finish.
func (b *SstWriterBuilder) SetInMemory(inMemory bool) *SstWriterBuilder {
	b.inMemory = inMemory
	return b
}

func (b *SstWriterBuilder) SetCompressionType(tp rocksdb.CompressionType) *SstWriterBuilder {
	b.compression = &tp
	return b
}

func (b *SstWriterBuilder) SetCompressionLevel(level int) *SstWriterBuilder {
	b.compressionLevel = level
	return b
}

func (b *SstWriterBuilder) tableOptions() (*rocksdb.BlockBasedTableOptions, error) {
	opts := rocksdb.NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.BufferSize = sstWriteBufferSize
	opts.ColumnFamilyName = b.cf
	sstConf := config.NewDefaultConfig().Sst
	if b.engine != nil {
		sstConf = b.engine.conf.Sst
	}
	opts.BlockSize = int(sstConf.BlockSize)
	var err error
	if opts.CompressionType, err = rocksdb.ParseCompressionType(sstConf.Compression); err != nil {
		return nil, err
	}
	if opts.ChecksumType, err = rocksdb.ParseChecksumType(sstConf.Checksum); err != nil {
		return nil, err
	}
	if limit := int(sstConf.RateLimitBytesPerSec); limit > 0 {
		burst := limit
		if burst < opts.BufferSize {
			burst = opts.BufferSize
		}
		opts.RateLimiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
	if b.compression != nil {
		opts.CompressionType = *b.compression
	}
	opts.CompressionLevel = b.compressionLevel
	return opts, nil
}

func (b *SstWriterBuilder) Build(path string) (*SstWriter, error) {
	if b.engine != nil {
		if err := b.engine.checkCF(b.cf); err != nil {
			return nil, err
		}
	}
	opts, err := b.tableOptions()
	if err != nil {
		return nil, err
	}
	w := &SstWriter{cf: b.cf, path: path}
	if b.inMemory {
		w.w = rocksdb.NewMemSstFileWriter(opts)
		return w, nil
	}
	if err = os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	w.w = rocksdb.NewSstFileWriter(f, opts)
	w.created = true
	return w, nil
}

// SstWriter writes the keys of one column family in strictly increasing order.
type SstWriter struct {
	cf   string
	path string
	w    *rocksdb.SstFileWriter

	smallest []byte
	largest  []byte
	// created is set once path may hold bytes of this writer.
	created  bool
	finished bool
}

func (w *SstWriter) Put(key, value []byte) error {
	return w.add(key, func(pk []byte) error { return w.w.Put(pk, value) })
}

// Delete writes a tombstone for key.
func (w *SstWriter) Delete(key []byte) error {
	return w.add(key, w.w.Delete)
}

func (w *SstWriter) add(key []byte, write func(physical []byte) error) error {
	if err := write(KeyWithCF(w.cf, key)); err != nil {
		if errors.Cause(err) == rocksdb.ErrKeyOrder {
			return errors.Annotatef(ErrKeyOrderViolation, "cf %s, key %x", w.cf, key)
		}
		return err
	}
	if w.smallest == nil {
		w.smallest = append([]byte{}, key...)
	}
	w.largest = append(w.largest[:0], key...)
	return nil
}

// FileSize is the number of bytes flushed so far.
func (w *SstWriter) FileSize() uint64 {
	return w.w.FileSize()
}

// Finish completes the file. A failed file-backed writer removes what it wrote.
func (w *SstWriter) Finish() (*ExternalSstFileInfo, error) {
	if w.finished {
		return nil, errors.WithStack(rocksdb.ErrFinished)
	}
	w.finished = true
	props, size, err := w.finish()
	if err != nil && w.created {
		if _, err1 := util.DeleteFileIfExists(w.path); err1 != nil {
			log.Warn("failed to remove unfinished sst file", zap.String("path", w.path), zap.Error(err1))
		}
	}
	if err != nil {
		return nil, err
	}
	sstWrittenBytes.Add(float64(size))
	log.Info("sst file finished", zap.String("path", w.path), zap.String("cf", w.cf),
		zap.Uint64("entries", props.NumEntries), zap.Uint64("size", size))
	return &ExternalSstFileInfo{
		FilePath:    w.path,
		SmallestKey: w.smallest,
		LargestKey:  w.largest,
		FileSize:    size,
		NumEntries:  props.NumEntries,
		// External files are always written with global seqno 0.
		SequenceNumber: 0,
	}, nil
}

func (w *SstWriter) finish() (rocksdb.TableProperties, uint64, error) {
	props, err := w.w.Finish()
	if err != nil {
		w.w.Close()
		return props, 0, err
	}
	if data := w.w.Bytes(); data != nil {
		if err = os.MkdirAll(filepath.Dir(w.path), os.ModePerm); err != nil {
			return props, 0, errors.Trace(err)
		}
		w.created = true
		if err = ioutil.WriteFile(w.path, data, 0644); err != nil {
			return props, 0, errors.Trace(err)
		}
		return props, uint64(len(data)), nil
	}
	if err = w.w.Close(); err != nil {
		return props, 0, err
	}
	size, err := util.GetFileSize(w.path)
	return props, size, err
}

type SstReader struct {
	path string
	r    *rocksdb.SstFileReader
}

func OpenSstReader(path string) (*SstReader, error) {
	r, err := rocksdb.OpenSstFileReader(path, bytes.Compare)
	if err != nil {
		return nil, errors.Annotatef(err, "open sst %s", path)
	}
	return &SstReader{path: path, r: r}, nil
}

func (r *SstReader) VerifyChecksum() error {
	return errors.Annotatef(r.r.VerifyChecksum(), "verify sst %s", r.path)
}

func (r *SstReader) Properties() *rocksdb.TableProperties {
	return r.r.Properties()
}

// FileInfo reports the logical smallest and largest keys physically present, tombstones included.
func (r *SstReader) FileInfo() (*ExternalSstFileInfo, error) {
	props := r.r.Properties()
	info := &ExternalSstFileInfo{
		FilePath:       r.path,
		FileSize:       r.r.FileSize(),
		NumEntries:     props.NumEntries,
		SequenceNumber: props.GlobalSeqNo,
	}
	it := r.r.NewIterator()
	if it.SeekToFirst(); it.Valid() {
		_, key, _ := DecodeCFKey(it.Key())
		info.SmallestKey = append([]byte{}, key...)
	}
	if it.SeekToLast(); it.Valid() {
		_, key, _ := DecodeCFKey(it.Key())
		info.LargestKey = append([]byte{}, key...)
	}
	return info, errors.Trace(it.Err())
}

func (r *SstReader) Iterator() *SstIterator {
	return r.IteratorCF(CfDefault, IterOptions{})
}

func (r *SstReader) IteratorCF(cf string, opts IterOptions) *SstIterator {
	it := &SstIterator{
		it:        r.r.NewIterator(),
		prefixLen: 1 + len(cf),
		lower:     KeyWithCF(cf, opts.LowerBound),
		upper:     CFUpperBound(cf),
	}
	if len(opts.UpperBound) > 0 {
		it.upper = KeyWithCF(cf, opts.UpperBound)
	}
	it.cf = cf
	return it
}

func (r *SstReader) Close() {
	r.r.Close()
}

// SstIterator iterates the live entries of one column family of an sst file. Tombstones are skipped in
// both directions.
type SstIterator struct {
	it        *rocksdb.SstFileIterator
	cf        string
	prefixLen int
	lower     []byte
	upper     []byte
	state     iterState
}

func (it *SstIterator) inRange(key []byte) bool {
	return bytes.Compare(key, it.lower) >= 0 && bytes.Compare(key, it.upper) < 0
}

func (it *SstIterator) isTombstone() bool {
	return it.it.ValueType() == rocksdb.TypeDeletion
}

func (it *SstIterator) settleForward() bool {
	for it.it.Valid() && it.isTombstone() && bytes.Compare(it.it.Key(), it.upper) < 0 {
		it.it.Next()
	}
	return it.settle()
}

func (it *SstIterator) settleBackward() bool {
	for it.it.Valid() && it.isTombstone() && bytes.Compare(it.it.Key(), it.lower) >= 0 {
		it.it.Prev()
	}
	return it.settle()
}

func (it *SstIterator) settle() bool {
	if it.it.Valid() && !it.isTombstone() && it.inRange(it.it.Key()) {
		it.state = statePositioned
		return true
	}
	it.state = stateExhausted
	return false
}

func (it *SstIterator) SeekToFirst() bool {
	it.it.Seek(it.lower)
	return it.settleForward()
}

func (it *SstIterator) SeekToLast() bool {
	it.it.SeekForPrev(it.upper)
	if it.it.Valid() && bytes.Equal(it.it.Key(), it.upper) {
		it.it.Prev()
	}
	return it.settleBackward()
}

func (it *SstIterator) Seek(key []byte) bool {
	target := KeyWithCF(it.cf, key)
	if bytes.Compare(target, it.lower) < 0 {
		target = it.lower
	}
	it.it.Seek(target)
	return it.settleForward()
}

func (it *SstIterator) SeekForPrev(key []byte) bool {
	target := KeyWithCF(it.cf, key)
	if bytes.Compare(target, it.upper) >= 0 {
		return it.SeekToLast()
	}
	it.it.SeekForPrev(target)
	return it.settleBackward()
}

func (it *SstIterator) Next() (bool, error) {
	if it.state != statePositioned {
		return false, errors.WithStack(ErrCursorMisuse)
	}
	it.it.Next()
	return it.settleForward(), errors.Trace(it.it.Err())
}

func (it *SstIterator) Prev() (bool, error) {
	if it.state != statePositioned {
		return false, errors.WithStack(ErrCursorMisuse)
	}
	it.it.Prev()
	return it.settleBackward(), errors.Trace(it.it.Err())
}

func (it *SstIterator) Valid() bool {
	return it.state == statePositioned
}

// Err reports a read failure that ended the iteration.
func (it *SstIterator) Err() error {
	return errors.Trace(it.it.Err())
}

func (it *SstIterator) Key() []byte {
	return it.it.Key()[it.prefixLen:]
}

func (it *SstIterator) Value() ([]byte, error) {
	return it.it.Value(), nil
}

func (it *SstIterator) Close() {}

// IngestExternalFileCF verifies each file and replays its puts and tombstones of cf through write
// batches. Each flushed batch is atomic, a file as a whole is not.
func (e *Engine) IngestExternalFileCF(cf string, paths []string) error {
	if err := e.checkCF(cf); err != nil {
		return err
	}
	readers := make([]*SstReader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()
	for _, path := range paths {
		if !util.FileExists(path) {
			return errors.Errorf("sst file %s does not exist", path)
		}
		r, err := OpenSstReader(path)
		if err != nil {
			return err
		}
		readers = append(readers, r)
		if err = r.VerifyChecksum(); err != nil {
			return err
		}
	}

	wb := e.NewWriteBatch()
	prefix, upper := CFPrefix(cf), CFUpperBound(cf)
	for _, r := range readers {
		var entries int
		it := r.r.NewIterator()
		for it.Seek(prefix); it.Valid() && bytes.Compare(it.Key(), upper) < 0; it.Next() {
			key := it.Key()[len(prefix):]
			if it.ValueType() == rocksdb.TypeDeletion {
				wb.DeleteCF(cf, key)
			} else {
				wb.PutCF(cf, key, it.Value())
			}
			entries++
			if wb.ShouldWriteToEngine() {
				if err := wb.Write(); err != nil {
					return err
				}
				wb.Clear()
			}
		}
		if err := it.Err(); err != nil {
			return errors.Annotatef(err, "read sst %s", r.path)
		}
		sstIngestedEntries.Add(float64(entries))
		log.Info("sst file ingested", zap.String("path", r.path), zap.String("cf", cf), zap.Int("entries", entries))
	}
	return wb.Write()
}
