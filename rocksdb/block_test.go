package rocksdb

import (
	"fmt"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestBlockRoundTrip(t *testing.T) {
	for _, interval := range []int{1, 3, 16} {
		b := newBlockBuilder(interval)
		require.Equal(t, 0, b.Size())
		var keys []string
		for i := 0; i < 50; i++ {
			key := fmt.Sprintf("prefix-%04d", i)
			keys = append(keys, key)
			before := b.SizeAfter([]byte(key), []byte("v"))
			b.Add([]byte(key), []byte("v"))
			require.True(t, b.Size() <= before)
		}
		size := b.Size()
		block := b.Finish()
		require.Equal(t, size, len(block))

		entries, err := decodeBlock(block)
		require.Nil(t, err)
		require.Len(t, entries, len(keys))
		for i, e := range entries {
			require.Equal(t, keys[i], string(e.key))
			require.Equal(t, "v", string(e.value))
		}
	}
}

func TestBlockReset(t *testing.T) {
	b := newBlockBuilder(16)
	b.Add([]byte("abc"), []byte("1"))
	b.Reset()
	require.True(t, b.Empty())
	b.Add([]byte("abd"), []byte("2"))
	entries, err := decodeBlock(b.Finish())
	require.Nil(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "abd", string(entries[0].key))
}

func TestBlockCorruption(t *testing.T) {
	_, err := decodeBlock([]byte{1, 2})
	require.Equal(t, ErrCorruption, errors.Cause(err))

	b := newBlockBuilder(16)
	b.Add([]byte("key"), []byte("value"))
	block := b.Finish()

	// A restart count larger than the block.
	bad := append([]byte(nil), block...)
	rocksEndian.PutUint32(bad[len(bad)-4:], 1000)
	_, err = decodeBlock(bad)
	require.Equal(t, ErrCorruption, errors.Cause(err))

	// A value length past the end of the entries.
	bad = append([]byte(nil), block...)
	bad[2] = 100
	_, err = decodeBlock(bad)
	require.Equal(t, ErrCorruption, errors.Cause(err))
}

func TestVarint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 1 << 20, 1<<32 - 1} {
		buf := appendVarint32(nil, v)
		require.Equal(t, uvarintLen(uint64(v)), len(buf))
		got, n := decodeVarint32(buf)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
	_, n := decodeVarint32(appendVarint64(nil, 1<<40))
	require.True(t, n <= 0)
	_, n = decodeVarint32([]byte{0x80})
	require.True(t, n <= 0)
}
