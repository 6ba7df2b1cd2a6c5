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
	"github.com/Connor1996/badger/y"
	"github.com/pingcap/errors"
)

// Every block on disk is followed by a compression type byte and a 32-bit checksum.
const blockTrailerSize = 5

// blockBuilder lays out a block as prefix compressed entries, then the restart offsets, then the
// restart count. An entry is shared key length, unshared key length and value length as varints,
// followed by the unshared key bytes and the value. The key at a restart offset shares nothing.
type blockBuilder struct {
	restartInterval int
	sinceRestart    int
	restarts        []uint32
	buf             []byte
	lastKey         []byte
}

func newBlockBuilder(restartInterval int) *blockBuilder {
	b := new(blockBuilder)
	b.Init(restartInterval)
	return b
}

func (b *blockBuilder) Init(restartInterval int) {
	if restartInterval < 1 {
		restartInterval = 1
	}
	b.restartInterval = restartInterval
	b.restarts = append(b.restarts[:0], 0)
}

func (b *blockBuilder) Reset() {
	b.sinceRestart = 0
	b.buf = b.buf[:0]
	b.restarts = b.restarts[:1]
	b.lastKey = b.lastKey[:0]
}

func (b *blockBuilder) Add(key, value []byte) {
	shared := 0
	if b.sinceRestart < b.restartInterval {
		shared = sharedPrefixLen(key, b.lastKey)
	} else {
		b.restarts = append(b.restarts, uint32(len(b.buf)))
		b.sinceRestart = 0
	}
	b.buf = appendVarint32(b.buf, uint32(shared))
	b.buf = appendVarint32(b.buf, uint32(len(key)-shared))
	b.buf = appendVarint32(b.buf, uint32(len(value)))
	b.buf = append(b.buf, key[shared:]...)
	b.buf = append(b.buf, value...)
	b.lastKey = y.SafeCopy(b.lastKey, key)
	b.sinceRestart++
}

func (b *blockBuilder) Empty() bool {
	return len(b.buf) == 0
}

func (b *blockBuilder) Finish() []byte {
	for _, off := range b.restarts {
		b.buf = appendFixed32(b.buf, off)
	}
	return appendFixed32(b.buf, uint32(len(b.restarts)))
}

// Size is the encoded size Finish would produce, or 0 for an empty block.
func (b *blockBuilder) Size() int {
	if b.Empty() {
		return 0
	}
	return len(b.buf) + 4*len(b.restarts) + 4
}

// SizeAfter is an upper bound of Size once key and value are added. It assumes nothing is shared.
func (b *blockBuilder) SizeAfter(key, value []byte) int {
	size := b.Size()
	if size == 0 {
		size = 4 + 4
	}
	if b.sinceRestart >= b.restartInterval {
		size += 4
	}
	return size + uvarintLen(uint64(len(key))) + 1 + uvarintLen(uint64(len(value))) + len(key) + len(value)
}

type blockEntry struct {
	key   []byte
	value []byte
}

// decodeBlock expands every entry of a block written by blockBuilder. Keys are materialized because
// prefix compression makes each key depend on its predecessor.
func decodeBlock(block []byte) ([]blockEntry, error) {
	if len(block) < 4 {
		return nil, errors.Annotate(ErrCorruption, "block too short")
	}
	numRestarts := rocksEndian.Uint32(block[len(block)-4:])
	restartsSz := uint64(numRestarts)*4 + 4
	if numRestarts == 0 || restartsSz > uint64(len(block)) {
		return nil, errors.Annotatef(ErrCorruption, "bad restart count %d", numRestarts)
	}
	data := block[:len(block)-int(restartsSz)]

	var (
		entries []blockEntry
		lastKey []byte
	)
	for off := 0; off < len(data); {
		var lens [3]uint32
		for i := range lens {
			v, n := decodeVarint32(data[off:])
			if n <= 0 {
				return nil, errors.Annotatef(ErrCorruption, "bad block entry at offset %d", off)
			}
			lens[i] = v
			off += n
		}
		shared, unshared, valueLen := int(lens[0]), int(lens[1]), int(lens[2])
		if shared > len(lastKey) || unshared+valueLen > len(data)-off {
			return nil, errors.Annotatef(ErrCorruption, "bad block entry at offset %d", off)
		}
		key := make([]byte, 0, shared+unshared)
		key = append(append(key, lastKey[:shared]...), data[off:off+unshared]...)
		off += unshared
		entries = append(entries, blockEntry{key: key, value: append([]byte(nil), data[off:off+valueLen]...)})
		off += valueLen
		lastKey = key
	}
	return entries, nil
}
