package rocksdb

import (
	"os"
	"sort"

	"github.com/pingcap/errors"
)

var (
	ErrCorruption          = errors.New("Sst file is corrupted")
	ErrChecksumMismatch    = errors.New("Block checksum mismatch")
	ErrMagicNumberMismatch = errors.New("Not a block based table file")
)

// SstFileReader reads tables produced by BlockBasedTableBuilder. The whole file is held in memory.
type SstFileReader struct {
	data         []byte
	comparator   Comparator
	checksumType ChecksumType
	props        *TableProperties
	index        []indexEntry
	decompressor blockDecompressor

	metaIndexHandle blockHandle
	indexHandle     blockHandle
	propsHandle     blockHandle
}

type indexEntry struct {
	lastKey []byte
	handle  blockHandle
}

func OpenSstFileReader(path string, cmp Comparator) (*SstFileReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewSstFileReader(data, cmp)
}

func NewSstFileReader(data []byte, cmp Comparator) (*SstFileReader, error) {
	r := &SstFileReader{data: data, comparator: cmp}
	if err := r.readFooter(); err != nil {
		return nil, err
	}
	if err := r.readMeta(); err != nil {
		return nil, err
	}
	if err := r.readIndex(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SstFileReader) readFooter() error {
	if len(r.data) < footerEncodedLength {
		return errors.Annotatef(ErrCorruption, "file too short: %d bytes", len(r.data))
	}
	footer := r.data[len(r.data)-footerEncodedLength:]
	magic := uint64(rocksEndian.Uint32(footer[footerEncodedLength-8:])) |
		uint64(rocksEndian.Uint32(footer[footerEncodedLength-4:]))<<32
	if magic != blockBasedTableMagicNumber {
		return errors.WithStack(ErrMagicNumberMismatch)
	}
	r.checksumType = ChecksumType(footer[0])
	cursor := 1
	n, err := r.metaIndexHandle.Decode(footer[cursor:])
	if err != nil {
		return err
	}
	cursor += n
	if _, err = r.indexHandle.Decode(footer[cursor:]); err != nil {
		return err
	}
	return nil
}

func (r *SstFileReader) readMeta() error {
	block, err := r.readBlock(r.metaIndexHandle)
	if err != nil {
		return err
	}
	entries, err := decodeBlock(block)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if string(e.key) != propsBlockHandleKey {
			continue
		}
		if _, err = r.propsHandle.Decode(e.value); err != nil {
			return err
		}
		propsBlock, err := r.readBlock(r.propsHandle)
		if err != nil {
			return err
		}
		r.props, err = decodeProps(propsBlock)
		return err
	}
	return errors.Annotate(ErrCorruption, "missing properties block")
}

func (r *SstFileReader) readIndex() error {
	block, err := r.readBlock(r.indexHandle)
	if err != nil {
		return err
	}
	entries, err := decodeBlock(block)
	if err != nil {
		return err
	}
	r.index = make([]indexEntry, 0, len(entries))
	for _, e := range entries {
		ie := indexEntry{lastKey: e.key}
		if _, err = ie.handle.Decode(e.value); err != nil {
			return err
		}
		r.index = append(r.index, ie)
	}
	return nil
}

func (r *SstFileReader) rawBlock(h blockHandle) ([]byte, byte, error) {
	end := h.Offset + h.Size + blockTrailerSize
	if end < h.Offset || end > uint64(len(r.data)-footerEncodedLength) {
		return nil, 0, errors.Annotatef(ErrCorruption, "block handle out of range: %d+%d", h.Offset, h.Size)
	}
	contents := r.data[h.Offset : h.Offset+h.Size]
	trailer := r.data[h.Offset+h.Size : end]
	return contents, trailer[0], nil
}

func (r *SstFileReader) verifyBlock(h blockHandle) error {
	contents, tp, err := r.rawBlock(h)
	if err != nil {
		return err
	}
	if r.checksumType == ChecksumNone {
		return nil
	}
	expected := rocksEndian.Uint32(r.data[h.Offset+h.Size+1:])
	if actual := blockChecksum(r.checksumType, contents, tp); actual != expected {
		return errors.Annotatef(ErrChecksumMismatch, "block at offset %d: expected %x, got %x", h.Offset, expected, actual)
	}
	return nil
}

func (r *SstFileReader) readBlock(h blockHandle) ([]byte, error) {
	if err := r.verifyBlock(h); err != nil {
		return nil, err
	}
	contents, tp, _ := r.rawBlock(h)
	return r.decompressor.Decompress(CompressionType(tp), contents)
}

// VerifyChecksum checks every block of the file against its trailer.
func (r *SstFileReader) VerifyChecksum() error {
	for _, h := range []blockHandle{r.metaIndexHandle, r.propsHandle, r.indexHandle} {
		if err := r.verifyBlock(h); err != nil {
			return err
		}
	}
	for _, ie := range r.index {
		if err := r.verifyBlock(ie.handle); err != nil {
			return err
		}
	}
	return nil
}

func (r *SstFileReader) Properties() *TableProperties {
	return r.props
}

func (r *SstFileReader) ChecksumType() ChecksumType {
	return r.checksumType
}

func (r *SstFileReader) FileSize() uint64 {
	return uint64(len(r.data))
}

func (r *SstFileReader) NewIterator() *SstFileIterator {
	return &SstFileIterator{reader: r, blockIdx: -1}
}

func (r *SstFileReader) Close() {
	r.decompressor.Close()
	r.data = nil
}

// SstFileIterator walks the entries of a table in both directions. Tombstones are returned with
// ValueType TypeDeletion.
type SstFileIterator struct {
	reader   *SstFileReader
	blockIdx int
	entries  []blockEntry
	pos      int
	err      error
	ikey     InternalKey
}

func (it *SstFileIterator) Valid() bool {
	return it.err == nil && it.blockIdx >= 0 && it.pos >= 0 && it.pos < len(it.entries)
}

func (it *SstFileIterator) Err() error {
	return it.err
}

func (it *SstFileIterator) Key() []byte {
	return it.ikey.UserKey
}

func (it *SstFileIterator) ValueType() ValueType {
	return it.ikey.ValueType
}

func (it *SstFileIterator) Value() []byte {
	return it.entries[it.pos].value
}

func (it *SstFileIterator) SeekToFirst() {
	it.err = nil
	it.loadBlock(0)
	it.pos = 0
	it.skipEmptyForward()
}

func (it *SstFileIterator) SeekToLast() {
	it.err = nil
	it.loadBlock(len(it.reader.index) - 1)
	it.pos = len(it.entries) - 1
	it.skipEmptyBackward()
}

// Seek moves to the first entry whose user key is >= key.
func (it *SstFileIterator) Seek(key []byte) {
	it.err = nil
	cmp := it.reader.comparator
	index := it.reader.index
	idx := sort.Search(len(index), func(i int) bool {
		return cmp(extractUserKey(index[i].lastKey), key) >= 0
	})
	if idx == len(index) {
		it.invalidate()
		return
	}
	it.loadBlock(idx)
	it.pos = sort.Search(len(it.entries), func(i int) bool {
		return cmp(extractUserKey(it.entries[i].key), key) >= 0
	})
	it.skipEmptyForward()
}

// SeekForPrev moves to the last entry whose user key is <= key.
func (it *SstFileIterator) SeekForPrev(key []byte) {
	it.Seek(key)
	if it.err != nil {
		return
	}
	if !it.Valid() {
		it.SeekToLast()
		return
	}
	if it.reader.comparator(it.Key(), key) > 0 {
		it.Prev()
	}
}

func (it *SstFileIterator) Next() {
	if !it.Valid() {
		return
	}
	it.pos++
	it.skipEmptyForward()
}

func (it *SstFileIterator) Prev() {
	if !it.Valid() {
		return
	}
	it.pos--
	it.skipEmptyBackward()
}

func (it *SstFileIterator) invalidate() {
	it.blockIdx = -1
	it.entries = nil
	it.pos = 0
}

func (it *SstFileIterator) skipEmptyForward() {
	for it.err == nil && it.blockIdx >= 0 && it.pos >= len(it.entries) {
		if it.blockIdx+1 >= len(it.reader.index) {
			it.invalidate()
			return
		}
		it.loadBlock(it.blockIdx + 1)
		it.pos = 0
	}
	it.parseCurrent()
}

func (it *SstFileIterator) skipEmptyBackward() {
	for it.err == nil && it.blockIdx >= 0 && it.pos < 0 {
		if it.blockIdx == 0 {
			it.invalidate()
			return
		}
		it.loadBlock(it.blockIdx - 1)
		it.pos = len(it.entries) - 1
	}
	it.parseCurrent()
}

func (it *SstFileIterator) parseCurrent() {
	if !it.Valid() {
		return
	}
	if err := it.ikey.Decode(it.entries[it.pos].key); err != nil {
		it.err = err
		it.invalidate()
	}
}

func (it *SstFileIterator) loadBlock(idx int) {
	if idx < 0 || idx >= len(it.reader.index) {
		it.invalidate()
		return
	}
	block, err := it.reader.readBlock(it.reader.index[idx].handle)
	if err == nil {
		it.entries, err = decodeBlock(block)
	}
	if err != nil {
		it.err = err
		it.invalidate()
		return
	}
	it.blockIdx = idx
}
