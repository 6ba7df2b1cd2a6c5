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
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/pingcap/errors"
)

const (
	propColumnFamilyId   = "rocksdb.column.family.id"
	propColumnFamilyName = "rocksdb.column.family.name"
	propCompression      = "rocksdb.compression"
	propCreationTime     = "rocksdb.creation.time"
	propDataSize         = "rocksdb.data.size"
	propFixedKeyLength   = "rocksdb.fixed.key.length"
	propFormatVersion    = "rocksdb.format.version"
	propIndexSize        = "rocksdb.index.size"
	propNumDataBlocks    = "rocksdb.num.data.blocks"
	propNumEntries       = "rocksdb.num.entries"
	propNumDeletions     = "rocksdb.deleted.keys"
	propRawKeySize       = "rocksdb.raw.key.size"
	propRawValueSize     = "rocksdb.raw.value.size"

	propExternalSstFileVersion = "rocksdb.external_sst_file.version"
	propGlobalSeqNo            = "rocksdb.external_sst_file.global_seqno"
)

type PropsInjector func(*PropsBlockBuilder)

type PropsBlockBuilder struct {
	blockBuilder blockBuilder
	props        []propKV
}

type propKV struct {
	key   []byte
	value []byte
}

func newPropsBlockBuilder() *PropsBlockBuilder {
	b := new(PropsBlockBuilder)
	b.blockBuilder.Init(math.MaxInt32)
	return b
}

func (b *PropsBlockBuilder) Add(name string, value []byte) {
	b.props = append(b.props, propKV{key: []byte(name), value: value})
}

func (b *PropsBlockBuilder) AddUint64(name string, value uint64) {
	b.Add(name, appendVarint64(nil, value))
}

func (b *PropsBlockBuilder) AddString(name, value string) {
	b.Add(name, []byte(value))
}

func (b *PropsBlockBuilder) Finish() []byte {
	sort.Slice(b.props, func(i, j int) bool {
		return bytes.Compare(b.props[i].key, b.props[j].key) < 0
	})
	for _, p := range b.props {
		b.blockBuilder.Add(p.key, p.value)
	}
	return b.blockBuilder.Finish()
}

func decodeProps(block []byte) (*TableProperties, error) {
	entries, err := decodeBlock(block)
	if err != nil {
		return nil, err
	}
	props := new(TableProperties)
	for _, e := range entries {
		var target *uint64
		switch string(e.key) {
		case propColumnFamilyName:
			props.ColumnFamilyName = string(e.value)
			continue
		case propCompression:
			props.CompressionName = string(e.value)
			continue
		case propColumnFamilyId:
			target = &props.ColumnFamilyID
		case propCreationTime:
			target = &props.CreationTime
		case propDataSize:
			target = &props.DataSize
		case propFormatVersion:
			target = &props.FormatVersion
		case propIndexSize:
			target = &props.IndexSize
		case propNumDataBlocks:
			target = &props.NumDataBlocks
		case propNumEntries:
			target = &props.NumEntries
		case propNumDeletions:
			target = &props.NumDeletions
		case propRawKeySize:
			target = &props.RawKeySize
		case propRawValueSize:
			target = &props.RawValueSize
		case propGlobalSeqNo:
			target = &props.GlobalSeqNo
		case propExternalSstFileVersion:
			target = &props.SstFileVersion
		default:
			continue
		}
		v, n := binary.Uvarint(e.value)
		if n <= 0 {
			return nil, errors.Annotatef(ErrCorruption, "bad property %s", e.key)
		}
		*target = v
	}
	return props, nil
}
