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
	"hash/crc32"
	"math"

	"github.com/zeebo/xxh3"
)

var (
	rocksEndian   = binary.LittleEndian
	rocksCrcTable = crc32.MakeTable(crc32.Castagnoli)
)

func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func appendVarint32(buf []byte, v uint32) []byte {
	return appendVarint64(buf, uint64(v))
}

func appendVarint64(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	return append(buf, tmp[:binary.PutUvarint(tmp[:], v)]...)
}

func appendFixed32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	rocksEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func uvarintLen(v uint64) int {
	n := 1
	for ; v >= 0x80; v >>= 7 {
		n++
	}
	return n
}

// decodeVarint32 returns n <= 0 when buf does not start with a complete varint that fits 32 bits.
func decodeVarint32(buf []byte) (uint32, int) {
	v, n := binary.Uvarint(buf)
	if n <= 0 || n > binary.MaxVarintLen32 || v > math.MaxUint32 {
		return 0, 0
	}
	return uint32(v), n
}

const crc32MaskDelta = 0xa282ead8

func maskCrc32(sum uint32) uint32 {
	return ((sum >> 15) | (sum << 17)) + crc32MaskDelta
}

// blockChecksum covers the block contents and the compression type byte that follows them.
func blockChecksum(tp ChecksumType, contents []byte, compression byte) uint32 {
	switch tp {
	case ChecksumCRC32c:
		crc := crc32.Update(0, rocksCrcTable, contents)
		crc = crc32.Update(crc, rocksCrcTable, []byte{compression})
		return maskCrc32(crc)
	case ChecksumXXH3:
		h := xxh3.New()
		h.Write(contents)
		h.Write([]byte{compression})
		return uint32(h.Sum64())
	default:
		return 0
	}
}

// extractUserKey strips the 8-byte sequence and type trailer of an internal key.
func extractUserKey(key []byte) []byte {
	return key[:len(key)-8]
}
