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
	"encoding/binary"

	"github.com/pingcap/errors"
)

type ValueType uint8

const (
	TypeDeletion ValueType = iota
	TypeValue
)

func (vt ValueType) IsValue() bool {
	return vt <= TypeValue
}

func (vt ValueType) String() string {
	switch vt {
	case TypeDeletion:
		return "delete"
	case TypeValue:
		return "put"
	default:
		return "unknown"
	}
}

type Comparator func(key1 []byte, key2 []byte) int

// CompareInternalKey compares two keys order by:
//    increasing user key (according to user-supplied comparator)
//    decreasing sequence number
//    decreasing type (though sequence# should be enough to disambiguate)
func (c Comparator) CompareInternalKey(key1, key2 []byte) int {
	k1 := extractUserKey(key1)
	k2 := extractUserKey(key2)
	cmp := c(k1, k2)
	if cmp == 0 {
		num1 := rocksEndian.Uint64(key1[len(key1)-8:])
		num2 := rocksEndian.Uint64(key2[len(key2)-8:])
		if num1 > num2 {
			cmp = -1
		} else if num1 < num2 {
			cmp = +1
		}
	}
	return cmp
}

// TableProperties is the subset of the properties block this package writes and reads back.
type TableProperties struct {
	DataSize         uint64
	IndexSize        uint64
	RawKeySize       uint64
	RawValueSize     uint64
	NumDataBlocks    uint64
	NumEntries       uint64
	NumDeletions     uint64
	ColumnFamilyID   uint64
	ColumnFamilyName string
	CompressionName  string
	CreationTime     uint64
	FormatVersion    uint64
	GlobalSeqNo      uint64
	SstFileVersion   uint64
}

type blockHandle struct {
	Offset uint64
	Size   uint64
}

func (h blockHandle) Encode() []byte {
	result := make([]byte, 2*binary.MaxVarintLen64)
	n := h.EncodeTo(result)
	return result[:n]
}

func (h blockHandle) EncodeTo(buf []byte) int {
	n := binary.PutUvarint(buf, h.Offset)
	return n + binary.PutUvarint(buf[n:], h.Size)
}

func (h *blockHandle) Decode(buf []byte) (int, error) {
	off, n1 := binary.Uvarint(buf)
	if n1 <= 0 {
		return 0, errors.WithStack(ErrCorruption)
	}
	sz, n2 := binary.Uvarint(buf[n1:])
	if n2 <= 0 {
		return 0, errors.WithStack(ErrCorruption)
	}
	h.Offset = off
	h.Size = sz
	return n1 + n2, nil
}

// InternalKey is a user key followed by the packed sequence number and value type.
type InternalKey struct {
	UserKey        []byte
	SequenceNumber uint64
	ValueType      ValueType
}

func (ikey *InternalKey) Encode() []byte {
	buf := make([]byte, len(ikey.UserKey)+8)
	copy(buf, ikey.UserKey)
	rocksEndian.PutUint64(buf[len(ikey.UserKey):], ikey.packSeqAndType())
	return buf
}

func (ikey *InternalKey) Decode(encoded []byte) error {
	if len(encoded) < 8 {
		return errors.Annotatef(ErrCorruption, "internal key too short: %d bytes", len(encoded))
	}
	userKeyLen := len(encoded) - 8
	ikey.UserKey = append(ikey.UserKey[:0], encoded[:userKeyLen]...)
	ikey.unpackSeqAndType(rocksEndian.Uint64(encoded[userKeyLen:]))
	return nil
}

func (ikey *InternalKey) packSeqAndType() uint64 {
	return ikey.SequenceNumber<<8 | uint64(ikey.ValueType)
}

func (ikey *InternalKey) unpackSeqAndType(pack uint64) {
	ikey.ValueType = ValueType(pack & 0xff)
	ikey.SequenceNumber = pack >> 8
}
