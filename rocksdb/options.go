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
	"strings"

	"github.com/pingcap/errors"
	"golang.org/x/time/rate"
)

type CompressionType uint8

const (
	CompressionNone   CompressionType = 0x0
	CompressionSnappy CompressionType = 0x1
	CompressionLz4    CompressionType = 0x4
	CompressionZstd   CompressionType = 0x7
)

func (tp CompressionType) String() string {
	switch tp {
	case CompressionNone:
		return "NoCompression"
	case CompressionSnappy:
		return "Snappy"
	case CompressionLz4:
		return "LZ4"
	case CompressionZstd:
		return "ZSTD"
	default:
		return "Unknown"
	}
}

// ParseCompressionType accepts the names used in config files: none, snappy, lz4, zstd.
func ParseCompressionType(name string) (CompressionType, error) {
	switch strings.ToLower(name) {
	case "", "none", "no":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "lz4":
		return CompressionLz4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return CompressionNone, errors.Errorf("unknown compression type %q", name)
}

type ChecksumType uint8

const (
	ChecksumNone   ChecksumType = 0x0
	ChecksumCRC32c ChecksumType = 0x1
	ChecksumXXH3   ChecksumType = 0x4
)

func (tp ChecksumType) String() string {
	switch tp {
	case ChecksumNone:
		return "none"
	case ChecksumCRC32c:
		return "crc32c"
	case ChecksumXXH3:
		return "xxh3"
	default:
		return "unknown"
	}
}

func ParseChecksumType(name string) (ChecksumType, error) {
	switch strings.ToLower(name) {
	case "none":
		return ChecksumNone, nil
	case "", "crc32", "crc32c":
		return ChecksumCRC32c, nil
	case "xxh3":
		return ChecksumXXH3, nil
	}
	return ChecksumNone, errors.Errorf("unknown checksum type %q", name)
}

type BlockBasedTableOptions struct {
	BlockSize                 int
	BlockSizeDeviation        int
	BlockRestartInterval      int
	IndexBlockRestartInterval int
	CompressionType           CompressionType
	// CompressionLevel is only used by zstd; 0 picks the library default.
	CompressionLevel       int
	ChecksumType           ChecksumType
	EnableIndexCompression bool
	CreationTime           uint64
	ColumnFamilyName       string

	PropsInjectors []PropsInjector

	Comparator  Comparator
	BufferSize  int
	RateLimiter *rate.Limiter
}

func NewDefaultBlockBasedTableOptions(cmp Comparator) *BlockBasedTableOptions {
	return &BlockBasedTableOptions{
		BlockSize:                 4 * 1024,
		BlockSizeDeviation:        10,
		BlockRestartInterval:      16,
		IndexBlockRestartInterval: 1,
		CompressionType:           CompressionLz4,
		ChecksumType:              ChecksumCRC32c,
		EnableIndexCompression:    true,
		CreationTime:              0,

		Comparator:  cmp,
		BufferSize:  1 * 1024 * 1024,
		RateLimiter: nil,
	}
}
