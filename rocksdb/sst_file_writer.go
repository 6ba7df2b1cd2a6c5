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
	"os"

	"github.com/Connor1996/badger/fileutil"
	"github.com/Connor1996/badger/y"
	"github.com/pingcap/errors"
)

var (
	ErrKeyOrder       = errors.New("Keys must be added in strict ascending order")
	ErrNotSupportType = errors.New("Value type is not supported")
	ErrFinished       = errors.New("Sst file writer is already finished")
)

// SstFileWriter produces an external sst file. Every entry carries sequence number 0 so the file can be
// ingested as a whole.
type SstFileWriter struct {
	file       *os.File
	mem        *memWriter
	builder    *BlockBasedTableBuilder
	lastKey    []byte
	comparator Comparator
	finished   bool
}

func sstFileWriterOpts(opts *BlockBasedTableOptions) *BlockBasedTableOptions {
	o := *opts
	o.PropsInjectors = append(append([]PropsInjector(nil), opts.PropsInjectors...), func(builder *PropsBlockBuilder) {
		builder.AddUint64(propExternalSstFileVersion, 2)
		builder.AddUint64(propGlobalSeqNo, 0)
	})
	return &o
}

func NewSstFileWriter(f *os.File, opts *BlockBasedTableOptions) *SstFileWriter {
	opts = sstFileWriterOpts(opts)
	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = 1024 * 1024
	}
	w := fileutil.NewBufferedWriter(f, bufSize, opts.RateLimiter)
	return &SstFileWriter{
		file:       f,
		builder:    NewBlockBasedTableBuilder(w, opts),
		comparator: opts.Comparator,
	}
}

// NewMemSstFileWriter builds the table in memory. The encoded file is available from Bytes after Finish.
func NewMemSstFileWriter(opts *BlockBasedTableOptions) *SstFileWriter {
	opts = sstFileWriterOpts(opts)
	mem := new(memWriter)
	return &SstFileWriter{
		mem:        mem,
		builder:    NewBlockBasedTableBuilder(mem, opts),
		comparator: opts.Comparator,
	}
}

func (w *SstFileWriter) Put(key, value []byte) error {
	return w.add(key, value, TypeValue)
}

func (w *SstFileWriter) Delete(key []byte) error {
	return w.add(key, nil, TypeDeletion)
}

func (w *SstFileWriter) FileSize() uint64 {
	return w.builder.FileSize()
}

func (w *SstFileWriter) Finish() (TableProperties, error) {
	if w.finished {
		return TableProperties{}, errors.WithStack(ErrFinished)
	}
	w.finished = true
	if err := w.builder.Finish(); err != nil {
		return TableProperties{}, err
	}
	return w.builder.Properties(), nil
}

// Bytes returns the encoded table of an in-memory writer. It is nil for file backed writers.
func (w *SstFileWriter) Bytes() []byte {
	if w.mem == nil {
		return nil
	}
	return w.mem.Bytes()
}

func (w *SstFileWriter) add(key, value []byte, tp ValueType) error {
	if w.finished {
		return errors.WithStack(ErrFinished)
	}
	if !tp.IsValue() {
		return errors.WithStack(ErrNotSupportType)
	}
	if w.lastKey != nil {
		if w.comparator(key, w.lastKey) <= 0 {
			return errors.WithStack(ErrKeyOrder)
		}
	}

	ikey := InternalKey{
		UserKey:        key,
		SequenceNumber: 0,
		ValueType:      tp,
	}
	if err := w.builder.Add(ikey.Encode(), value); err != nil {
		return err
	}

	w.lastKey = y.SafeCopy(w.lastKey, key)
	if w.lastKey == nil {
		w.lastKey = []byte{}
	}

	return nil
}

func (w *SstFileWriter) Close() error {
	if w.file == nil {
		return nil
	}
	return errors.Trace(w.file.Close())
}
