//  Copyright (c) 2011-present, Facebook, Inc.  All rights reserved.
//  This source code is licensed under both the GPLv2 (found in the
//  COPYING file in the root directory) and Apache 2.0 License
//  (found in the LICENSE.Apache file in the root directory).
//
// Copyright (c) 2011 The LevelDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file. See the AUTHORS file for names of contributors.

package rocksdb

import (
	"math"

	"github.com/Connor1996/badger/y"
	"github.com/pingcap/errors"
)

const (
	propsBlockHandleKey = "rocksdb.properties"

	blockBasedTableMagicNumber = 0x88e241b785f4cff7
	maxBlockHandleLength       = 10 + 10 // two varint64
	footerEncodedLength        = 1 + 2*maxBlockHandleLength + 4 + 8
	formatVersion              = 2
)

// tableWriter is the sink of a table builder. fileutil.BufferedWriter satisfies it for on-disk tables
// and memWriter for in-memory ones.
type tableWriter interface {
	Append(val []byte) error
	Flush() error
	Sync() error
}

type memWriter struct {
	buf []byte
}

func (w *memWriter) Append(val []byte) error {
	w.buf = append(w.buf, val...)
	return nil
}

func (w *memWriter) Flush() error { return nil }

func (w *memWriter) Sync() error { return nil }

func (w *memWriter) Bytes() []byte { return w.buf }

type BlockBasedTableBuilder struct {
	props      TableProperties
	writer     tableWriter
	comparator Comparator
	compressor *blockCompressor

	dataBlockBuilder  *blockBuilder
	indexBlockBuilder *indexBlockBuilder

	offset        uint64
	pendingHandle blockHandle
	lastKey       []byte

	opts *BlockBasedTableOptions

	blockSizeDeviationLimit int
}

func NewBlockBasedTableBuilder(w tableWriter, opts *BlockBasedTableOptions) *BlockBasedTableBuilder {
	blockSizeDeviationLimit := ((opts.BlockSize * (100 - opts.BlockSizeDeviation)) + 99) / 100
	return &BlockBasedTableBuilder{
		writer:                  w,
		comparator:              opts.Comparator,
		compressor:              newBlockCompressor(opts.CompressionType, opts.CompressionLevel),
		dataBlockBuilder:        newBlockBuilder(opts.BlockRestartInterval),
		indexBlockBuilder:       newIndexBlockBuilder(opts.IndexBlockRestartInterval),
		opts:                    opts,
		blockSizeDeviationLimit: blockSizeDeviationLimit,
	}
}

// Add appends an internal key. Keys must arrive in internal key order.
func (b *BlockBasedTableBuilder) Add(key, value []byte) error {
	var ikey InternalKey
	if err := ikey.Decode(key); err != nil {
		return err
	}
	if !ikey.ValueType.IsValue() {
		return errors.WithStack(ErrNotSupportType)
	}
	if len(b.lastKey) != 0 && b.comparator.CompareInternalKey(b.lastKey, key) > 0 {
		return errors.WithStack(ErrKeyOrder)
	}

	if b.shouldFlush(key, value) {
		if err := b.flush(); err != nil {
			return err
		}
		b.indexBlockBuilder.AddIndexEntry(b.lastKey, &b.pendingHandle)
	}

	b.dataBlockBuilder.Add(key, value)
	b.props.NumEntries++
	if ikey.ValueType == TypeDeletion {
		b.props.NumDeletions++
	}
	b.props.RawKeySize += uint64(len(key))
	b.props.RawValueSize += uint64(len(value))
	b.lastKey = y.SafeCopy(b.lastKey, key)

	return nil
}

// FileSize is the number of bytes emitted so far. Entries still buffered in the current data block are
// not counted.
func (b *BlockBasedTableBuilder) FileSize() uint64 {
	return b.offset
}

func (b *BlockBasedTableBuilder) Properties() TableProperties {
	return b.props
}

func (b *BlockBasedTableBuilder) Finish() error {
	defer b.compressor.Close()

	pending := !b.dataBlockBuilder.Empty()
	if err := b.flush(); err != nil {
		return err
	}
	if pending {
		b.indexBlockBuilder.AddIndexEntry(b.lastKey, &b.pendingHandle)
	}

	// Write meta blocks and metaindex block with the following order.
	//    1. [meta block: index]
	//    2. [meta block: properties]
	//    3. [metaindex block]
	var metaIndexBlockHandle, indexBlockHandle blockHandle
	metaIndexBuilder := newMetaIndexBuilder()
	if err := b.writeIndexBlock(&indexBlockHandle); err != nil {
		return err
	}
	if err := b.writePropsBlock(metaIndexBuilder); err != nil {
		return err
	}
	if err := b.writeRawBlock(metaIndexBuilder.Finish(), CompressionNone, &metaIndexBlockHandle); err != nil {
		return err
	}

	var footerBuf [footerEncodedLength]byte
	cursor := 0
	footerBuf[cursor] = byte(b.opts.ChecksumType)
	cursor += 1
	cursor += metaIndexBlockHandle.EncodeTo(footerBuf[cursor:])
	indexBlockHandle.EncodeTo(footerBuf[cursor:])
	cursor = footerEncodedLength - 12
	rocksEndian.PutUint32(footerBuf[cursor:], formatVersion)
	cursor += 4
	rocksEndian.PutUint32(footerBuf[cursor:], blockBasedTableMagicNumber&0xffffffff)
	cursor += 4
	rocksEndian.PutUint32(footerBuf[cursor:], blockBasedTableMagicNumber>>32)

	if err := b.writer.Append(footerBuf[:]); err != nil {
		return errors.Trace(err)
	}
	b.offset += uint64(len(footerBuf))
	if err := b.writer.Flush(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(b.writer.Sync())
}

func (b *BlockBasedTableBuilder) flush() error {
	if b.dataBlockBuilder.Empty() {
		return nil
	}
	if err := b.writeBlock(b.dataBlockBuilder.Finish(), &b.pendingHandle); err != nil {
		return err
	}

	b.props.DataSize = b.offset
	b.props.NumDataBlocks += 1
	b.dataBlockBuilder.Reset()

	return nil
}

func (b *BlockBasedTableBuilder) writeIndexBlock(indexBlockHandle *blockHandle) error {
	contents := b.indexBlockBuilder.Finish()
	if b.opts.EnableIndexCompression {
		return b.writeBlock(contents, indexBlockHandle)
	}
	return b.writeRawBlock(contents, CompressionNone, indexBlockHandle)
}

func (b *BlockBasedTableBuilder) writePropsBlock(metaIndexBuilder *metaIndexBuilder) error {
	b.setupProperties()
	p := &b.props
	var handle blockHandle
	propsBuilder := newPropsBlockBuilder()
	for _, f := range b.opts.PropsInjectors {
		f(propsBuilder)
	}
	propsBuilder.AddUint64(propColumnFamilyId, p.ColumnFamilyID)
	if p.ColumnFamilyName != "" {
		propsBuilder.AddString(propColumnFamilyName, p.ColumnFamilyName)
	}
	propsBuilder.AddString(propCompression, p.CompressionName)
	propsBuilder.AddUint64(propCreationTime, p.CreationTime)
	propsBuilder.AddUint64(propDataSize, p.DataSize)
	propsBuilder.AddUint64(propFixedKeyLength, 0)
	propsBuilder.AddUint64(propFormatVersion, formatVersion)
	propsBuilder.AddUint64(propIndexSize, p.IndexSize)
	propsBuilder.AddUint64(propNumDataBlocks, p.NumDataBlocks)
	propsBuilder.AddUint64(propNumDeletions, p.NumDeletions)
	propsBuilder.AddUint64(propNumEntries, p.NumEntries)
	propsBuilder.AddUint64(propRawKeySize, p.RawKeySize)
	propsBuilder.AddUint64(propRawValueSize, p.RawValueSize)

	contents := propsBuilder.Finish()
	if err := b.writeRawBlock(contents, CompressionNone, &handle); err != nil {
		return err
	}
	metaIndexBuilder.AddHandle(propsBlockHandleKey, &handle)

	return nil
}

func (b *BlockBasedTableBuilder) setupProperties() {
	p := &b.props
	p.ColumnFamilyID = math.MaxInt32
	p.ColumnFamilyName = b.opts.ColumnFamilyName
	p.IndexSize = uint64(b.indexBlockBuilder.IndexSize() + blockTrailerSize)
	p.CompressionName = b.opts.CompressionType.String()
	p.CreationTime = b.opts.CreationTime
	p.FormatVersion = formatVersion
}

func (b *BlockBasedTableBuilder) writeBlock(blockContents []byte, handle *blockHandle) error {
	contents, tp := b.compressor.Compress(blockContents)
	return b.writeRawBlock(contents, tp, handle)
}

func (b *BlockBasedTableBuilder) writeRawBlock(contents []byte, tp CompressionType, handle *blockHandle) error {
	handle.Size = uint64(len(contents))
	handle.Offset = b.offset
	if err := b.writer.Append(contents); err != nil {
		return errors.Trace(err)
	}

	var trailer [blockTrailerSize]byte
	trailer[0] = byte(tp)
	rocksEndian.PutUint32(trailer[1:], blockChecksum(b.opts.ChecksumType, contents, trailer[0]))
	if err := b.writer.Append(trailer[:]); err != nil {
		return errors.Trace(err)
	}
	b.offset += uint64(len(contents) + blockTrailerSize)
	return nil
}

func (b *BlockBasedTableBuilder) shouldFlush(key, value []byte) bool {
	size := b.dataBlockBuilder.Size()
	if size == 0 {
		return false
	}
	if size >= b.opts.BlockSize {
		return true
	}
	return b.dataBlockBuilder.SizeAfter(key, value) > b.opts.BlockSize && size > b.blockSizeDeviationLimit
}

// Note: now assume format_version == 2
type indexBlockBuilder struct {
	blockBuilder blockBuilder
	indexSize    int
}

func newIndexBlockBuilder(restartInterval int) *indexBlockBuilder {
	b := new(indexBlockBuilder)
	b.blockBuilder.Init(restartInterval)
	return b
}

func (b *indexBlockBuilder) AddIndexEntry(lastKey []byte, handle *blockHandle) {
	b.blockBuilder.Add(lastKey, handle.Encode())
}

func (b *indexBlockBuilder) IndexSize() int {
	return b.indexSize
}

func (b *indexBlockBuilder) Finish() []byte {
	contents := b.blockBuilder.Finish()
	b.indexSize = len(contents)
	return contents
}

type metaIndexBuilder struct {
	blockBuilder blockBuilder
}

func newMetaIndexBuilder() *metaIndexBuilder {
	b := new(metaIndexBuilder)
	b.blockBuilder.Init(1)
	return b
}

func (b *metaIndexBuilder) AddHandle(key string, handle *blockHandle) {
	b.blockBuilder.Add([]byte(key), handle.Encode())
}

func (b *metaIndexBuilder) Finish() []byte {
	return b.blockBuilder.Finish()
}
