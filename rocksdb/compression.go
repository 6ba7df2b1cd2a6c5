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

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"github.com/pingcap/errors"
)

var ErrDecompress = errors.New("Error during decompress")

// blockCompressor keeps per-table state so that encoders and hash tables are reused across blocks.
type blockCompressor struct {
	tp    CompressionType
	level int

	zstdEnc *zstd.Encoder
	lz4Ht   []int
	buf     []byte
}

func newBlockCompressor(tp CompressionType, level int) *blockCompressor {
	return &blockCompressor{tp: tp, level: level}
}

// prependSize writes the RocksDB format_version 2 varint32 decompressed size header.
func prependSize(dst []byte, rawLen int) []byte {
	return appendVarint32(dst[:0], uint32(rawLen))
}

func (c *blockCompressor) lz4Compress(input []byte) []byte {
	rawLen := len(input)
	if rawLen > math.MaxUint32 {
		return nil
	}

	header := prependSize(c.buf, rawLen)
	headerLen := len(header)
	size := headerLen + lz4.CompressBlockBound(rawLen)
	if cap(header) < size {
		grown := make([]byte, size)
		copy(grown, header)
		header = grown
	}
	dst := header[:size]
	if c.lz4Ht == nil {
		c.lz4Ht = make([]int, 1<<16)
	} else {
		for i := range c.lz4Ht {
			c.lz4Ht[i] = 0
		}
	}
	n, err := lz4.CompressBlock(input, dst[headerLen:], c.lz4Ht)
	if err != nil || n == 0 {
		return nil
	}
	c.buf = dst
	return dst[:headerLen+n]
}

func (c *blockCompressor) zstdCompress(input []byte) []byte {
	rawLen := len(input)
	if rawLen > math.MaxUint32 {
		return nil
	}
	if c.zstdEnc == nil {
		opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
		if c.level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)))
		}
		enc, err := zstd.NewWriter(nil, opts...)
		if err != nil {
			return nil
		}
		c.zstdEnc = enc
	}
	dst := c.zstdEnc.EncodeAll(input, prependSize(c.buf, rawLen))
	c.buf = dst
	return dst
}

func (c *blockCompressor) snappyCompress(input []byte) []byte {
	dst := snappy.Encode(c.buf[:cap(c.buf)], input)
	c.buf = dst
	return dst
}

func isGoodCompressionRatio(compressed, input []byte) bool {
	cl, rl := len(compressed), len(input)
	return cl < rl-(rl/8)
}

// Compress returns the block to write and the compression type it is stored with. Blocks that do not
// shrink enough are stored uncompressed.
func (c *blockCompressor) Compress(input []byte) ([]byte, CompressionType) {
	var compressed []byte
	switch c.tp {
	case CompressionLz4:
		compressed = c.lz4Compress(input)
	case CompressionSnappy:
		compressed = c.snappyCompress(input)
	case CompressionZstd:
		compressed = c.zstdCompress(input)
	default:
		return input, CompressionNone
	}
	if compressed == nil || !isGoodCompressionRatio(compressed, input) {
		return input, CompressionNone
	}
	return compressed, c.tp
}

func (c *blockCompressor) Close() {
	if c.zstdEnc != nil {
		_ = c.zstdEnc.Close()
	}
}

func splitSizeHeader(input []byte) (uint32, []byte, error) {
	size, n := decodeVarint32(input)
	if n <= 0 {
		return 0, nil, errors.WithStack(ErrDecompress)
	}
	return size, input[n:], nil
}

// blockDecompressor is the read side of blockCompressor. It lazily creates a zstd decoder.
type blockDecompressor struct {
	zstdDec *zstd.Decoder
}

func (d *blockDecompressor) Decompress(tp CompressionType, input []byte) ([]byte, error) {
	switch tp {
	case CompressionNone:
		return input, nil
	case CompressionLz4:
		size, data, err := splitSizeHeader(input)
		if err != nil {
			return nil, err
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, errors.Annotate(ErrDecompress, err.Error())
		}
		return dst[:n], nil
	case CompressionSnappy:
		dst, err := snappy.Decode(nil, input)
		if err != nil {
			return nil, errors.Annotate(ErrDecompress, err.Error())
		}
		return dst, nil
	case CompressionZstd:
		size, data, err := splitSizeHeader(input)
		if err != nil {
			return nil, err
		}
		if d.zstdDec == nil {
			if d.zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1)); err != nil {
				return nil, errors.Trace(err)
			}
		}
		dst, err := d.zstdDec.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, errors.Annotate(ErrDecompress, err.Error())
		}
		return dst, nil
	}
	return nil, errors.Annotatef(ErrDecompress, "unknown compression type %d", tp)
}

func (d *blockDecompressor) Close() {
	if d.zstdDec != nil {
		d.zstdDec.Close()
	}
}
