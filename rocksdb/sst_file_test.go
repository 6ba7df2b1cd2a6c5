package rocksdb

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

const (
	smallTestSize = 10
	largeTestSize = 50000
)

func sortedNumbers(n int) []string {
	nums := make([]string, 0, n)
	for i := 0; i < n; i++ {
		nums = append(nums, fmt.Sprintf("%016d", i))
	}
	return nums
}

func runSizes(t *testing.T, opts *BlockBasedTableOptions) {
	t.Run("small", func(t *testing.T) {
		testSstReadWrite(t, smallTestSize, opts)
	})
	t.Run("large", func(t *testing.T) {
		testSstReadWrite(t, largeTestSize, opts)
	})
}

func TestNoCompression(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.CompressionType = CompressionNone
	runSizes(t, opts)
}

func TestLz4Compression(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.CompressionType = CompressionLz4
	runSizes(t, opts)
}

func TestSnappyCompression(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.CompressionType = CompressionSnappy
	runSizes(t, opts)
}

func TestZstdCompression(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.CompressionType = CompressionZstd
	opts.CompressionLevel = 3
	runSizes(t, opts)
}

func TestNoChecksum(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.ChecksumType = ChecksumNone
	runSizes(t, opts)
}

func TestXXH3Checksum(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.ChecksumType = ChecksumXXH3
	runSizes(t, opts)
}

func testSstReadWrite(t *testing.T, num int, opts *BlockBasedTableOptions) {
	nums := sortedNumbers(num)
	f, err := ioutil.TempFile("", "badgercf-test.*.sst")
	require.Nil(t, err)
	defer func() {
		_ = os.Remove(f.Name())
	}()

	w := NewSstFileWriter(f, opts)
	for _, num := range nums {
		err := w.Put([]byte(num), []byte(num))
		require.Nil(t, err)
	}
	props, err := w.Finish()
	require.Nil(t, err)
	require.Equal(t, uint64(num), props.NumEntries)
	require.Nil(t, w.Close())

	r, err := OpenSstFileReader(f.Name(), opts.Comparator)
	require.Nil(t, err)
	defer r.Close()
	require.Nil(t, r.VerifyChecksum())
	require.Equal(t, uint64(num), r.Properties().NumEntries)
	require.Equal(t, uint64(0), r.Properties().GlobalSeqNo)
	require.Equal(t, uint64(2), r.Properties().SstFileVersion)
	require.Equal(t, opts.ChecksumType, r.ChecksumType())

	it := r.NewIterator()
	for n := 0; n < 2; n++ {
		var i int
		for it.SeekToFirst(); it.Valid(); it.Next() {
			require.Equal(t, nums[i], string(it.Key()))
			require.Equal(t, nums[i], string(it.Value()))
			require.Equal(t, TypeValue, it.ValueType())
			i++
		}
		require.Equal(t, num, i)
		require.Nil(t, it.Err())
	}

	i := num - 1
	for it.SeekToLast(); it.Valid(); it.Prev() {
		require.Equal(t, nums[i], string(it.Key()))
		i--
	}
	require.Equal(t, -1, i)
	require.Nil(t, it.Err())
}

func buildMemTable(t *testing.T, opts *BlockBasedTableOptions, fn func(w *SstFileWriter)) *SstFileReader {
	w := NewMemSstFileWriter(opts)
	fn(w)
	_, err := w.Finish()
	require.Nil(t, err)
	r, err := NewSstFileReader(w.Bytes(), opts.Comparator)
	require.Nil(t, err)
	return r
}

func TestSeek(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.BlockSize = 64
	r := buildMemTable(t, opts, func(w *SstFileWriter) {
		for i := 0; i < 100; i += 2 {
			require.Nil(t, w.Put([]byte(fmt.Sprintf("k%03d", i)), []byte("v")))
		}
	})
	defer r.Close()
	require.True(t, r.Properties().NumDataBlocks > 1)

	it := r.NewIterator()
	it.Seek([]byte("k011"))
	require.True(t, it.Valid())
	require.Equal(t, "k012", string(it.Key()))

	it.Seek([]byte("k012"))
	require.Equal(t, "k012", string(it.Key()))

	it.SeekForPrev([]byte("k011"))
	require.True(t, it.Valid())
	require.Equal(t, "k010", string(it.Key()))

	it.SeekForPrev([]byte("k010"))
	require.Equal(t, "k010", string(it.Key()))

	it.Seek([]byte("k099"))
	require.False(t, it.Valid())

	it.SeekForPrev([]byte("k999"))
	require.True(t, it.Valid())
	require.Equal(t, "k098", string(it.Key()))

	it.SeekForPrev([]byte("a"))
	require.False(t, it.Valid())

	it.Seek([]byte("k050"))
	it.Prev()
	require.Equal(t, "k048", string(it.Key()))
	it.Next()
	it.Next()
	require.Equal(t, "k052", string(it.Key()))
}

func TestDeletionEntries(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	r := buildMemTable(t, opts, func(w *SstFileWriter) {
		require.Nil(t, w.Put([]byte("a"), []byte("1")))
		require.Nil(t, w.Delete([]byte("b")))
		require.Nil(t, w.Put([]byte("c"), []byte("3")))
	})
	defer r.Close()
	require.Equal(t, uint64(3), r.Properties().NumEntries)
	require.Equal(t, uint64(1), r.Properties().NumDeletions)

	it := r.NewIterator()
	it.SeekToFirst()
	it.Next()
	require.Equal(t, "b", string(it.Key()))
	require.Equal(t, TypeDeletion, it.ValueType())
	require.Len(t, it.Value(), 0)
}

func TestEmptyTable(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	r := buildMemTable(t, opts, func(w *SstFileWriter) {})
	defer r.Close()
	require.Nil(t, r.VerifyChecksum())
	require.Equal(t, uint64(0), r.Properties().NumEntries)

	it := r.NewIterator()
	it.SeekToFirst()
	require.False(t, it.Valid())
	it.SeekToLast()
	require.False(t, it.Valid())
	it.Seek([]byte("a"))
	require.False(t, it.Valid())
	require.Nil(t, it.Err())
}

func TestKeyOrder(t *testing.T) {
	w := NewMemSstFileWriter(NewDefaultBlockBasedTableOptions(bytes.Compare))
	require.Nil(t, w.Put([]byte("b"), []byte("1")))
	require.Equal(t, ErrKeyOrder, errors.Cause(w.Put([]byte("a"), []byte("1"))))
	require.Equal(t, ErrKeyOrder, errors.Cause(w.Delete([]byte("b"))))
	require.Nil(t, w.Put([]byte("c"), []byte("1")))

	_, err := w.Finish()
	require.Nil(t, err)
	require.Equal(t, ErrFinished, errors.Cause(w.Put([]byte("d"), []byte("1"))))
	_, err = w.Finish()
	require.Equal(t, ErrFinished, errors.Cause(err))
}

func TestChecksumMismatch(t *testing.T) {
	opts := NewDefaultBlockBasedTableOptions(bytes.Compare)
	opts.CompressionType = CompressionNone
	w := NewMemSstFileWriter(opts)
	for _, n := range sortedNumbers(100) {
		require.Nil(t, w.Put([]byte(n), []byte(n)))
	}
	_, err := w.Finish()
	require.Nil(t, err)

	data := append([]byte(nil), w.Bytes()...)
	// The first data block starts at offset 0.
	data[3] ^= 0xff
	r, err := NewSstFileReader(data, bytes.Compare)
	require.Nil(t, err)
	require.Equal(t, ErrChecksumMismatch, errors.Cause(r.VerifyChecksum()))

	it := r.NewIterator()
	it.SeekToFirst()
	require.False(t, it.Valid())
	require.Equal(t, ErrChecksumMismatch, errors.Cause(it.Err()))
}

func TestBadMagic(t *testing.T) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("badgercf-bad-%d.sst", os.Getpid()))
	require.Nil(t, ioutil.WriteFile(path, bytes.Repeat([]byte{1}, 100), 0644))
	defer os.Remove(path)

	_, err := OpenSstFileReader(path, bytes.Compare)
	require.Equal(t, ErrMagicNumberMismatch, errors.Cause(err))

	_, err = NewSstFileReader([]byte("short"), bytes.Compare)
	require.Equal(t, ErrCorruption, errors.Cause(err))
}

func TestCompressorRoundTrip(t *testing.T) {
	input := bytes.Repeat([]byte("compressible block contents "), 200)
	var d blockDecompressor
	defer d.Close()
	for _, tp := range []CompressionType{CompressionSnappy, CompressionLz4, CompressionZstd} {
		c := newBlockCompressor(tp, 0)
		out, got := c.Compress(input)
		require.Equal(t, tp, got)
		require.True(t, len(out) < len(input))
		raw, err := d.Decompress(got, out)
		require.Nil(t, err)
		require.Equal(t, input, raw)
		c.Close()
	}

	// Incompressible input is stored as is.
	c := newBlockCompressor(CompressionLz4, 0)
	out, got := c.Compress([]byte{1, 2, 3})
	require.Equal(t, CompressionNone, got)
	require.Equal(t, []byte{1, 2, 3}, out)
}

func TestParseOptionNames(t *testing.T) {
	tp, err := ParseCompressionType("ZSTD")
	require.Nil(t, err)
	require.Equal(t, CompressionZstd, tp)
	_, err = ParseCompressionType("brotli")
	require.NotNil(t, err)

	ct, err := ParseChecksumType("xxh3")
	require.Nil(t, err)
	require.Equal(t, ChecksumXXH3, ct)
	_, err = ParseChecksumType("md5")
	require.NotNil(t, err)
}
