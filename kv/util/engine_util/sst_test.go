package engine_util

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pingcap-incubator/badgercf/rocksdb"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func tempSstPath(t *testing.T, name string) string {
	dir, err := ioutil.TempDir("", "engine_util_sst")
	require.Nil(t, err)
	return filepath.Join(dir, name)
}

func TestSstWriteRead(t *testing.T) {
	path := tempSstPath(t, "a.sst")
	defer os.RemoveAll(filepath.Dir(path))

	w, err := NewSstWriterBuilder().SetCF(CfWrite).Build(path)
	require.Nil(t, err)
	require.Nil(t, w.Delete([]byte("a")))
	require.Nil(t, w.Put([]byte("b"), []byte("2")))
	require.Nil(t, w.Delete([]byte("c")))
	require.Nil(t, w.Put([]byte("d"), []byte("4")))
	require.Nil(t, w.Delete([]byte("e")))
	info, err := w.Finish()
	require.Nil(t, err)
	require.Equal(t, path, info.FilePath)
	require.Equal(t, "a", string(info.SmallestKey))
	require.Equal(t, "e", string(info.LargestKey))
	require.Equal(t, uint64(5), info.NumEntries)
	require.Equal(t, uint64(0), info.SequenceNumber)
	stat, err := os.Stat(path)
	require.Nil(t, err)
	require.Equal(t, uint64(stat.Size()), info.FileSize)

	r, err := OpenSstReader(path)
	require.Nil(t, err)
	defer r.Close()
	require.Nil(t, r.VerifyChecksum())
	require.Equal(t, CfWrite, r.Properties().ColumnFamilyName)
	require.Equal(t, uint64(3), r.Properties().NumDeletions)

	readInfo, err := r.FileInfo()
	require.Nil(t, err)
	require.Equal(t, "a", string(readInfo.SmallestKey))
	require.Equal(t, "e", string(readInfo.LargestKey))
	require.Equal(t, info.FileSize, readInfo.FileSize)

	it := r.IteratorCF(CfWrite, IterOptions{})
	defer it.Close()
	var forward []string
	for ok := it.SeekToFirst(); ok; ok, err = it.Next() {
		val, _ := it.Value()
		forward = append(forward, string(it.Key())+"="+string(val))
	}
	require.Nil(t, err)
	require.Equal(t, []string{"b=2", "d=4"}, forward)

	var backward []string
	for ok := it.SeekToLast(); ok; ok, err = it.Prev() {
		backward = append(backward, string(it.Key()))
	}
	require.Nil(t, err)
	require.Equal(t, []string{"d", "b"}, backward)

	require.True(t, it.Seek([]byte("c")))
	require.Equal(t, "d", string(it.Key()))
	require.True(t, it.SeekForPrev([]byte("c")))
	require.Equal(t, "b", string(it.Key()))
	require.False(t, it.SeekForPrev([]byte("a")))
	require.False(t, it.Seek([]byte("e")))
	_, err = it.Next()
	require.Equal(t, ErrCursorMisuse, errors.Cause(err))

	// The file holds nothing for other families.
	other := r.Iterator()
	require.False(t, other.SeekToFirst())
	require.False(t, other.SeekToLast())
}

func TestSstIteratorBounds(t *testing.T) {
	path := tempSstPath(t, "bounds.sst")
	defer os.RemoveAll(filepath.Dir(path))

	w, err := NewSstWriterBuilder().SetInMemory(true).SetCompressionType(rocksdb.CompressionZstd).Build(path)
	require.Nil(t, err)
	for i := 0; i < 1000; i++ {
		require.Nil(t, w.Put([]byte(fmt.Sprintf("%04d", i)), []byte(fmt.Sprintf("value-%d", i))))
	}
	_, err = w.Finish()
	require.Nil(t, err)

	r, err := OpenSstReader(path)
	require.Nil(t, err)
	defer r.Close()
	require.Equal(t, rocksdb.CompressionZstd.String(), r.Properties().CompressionName)

	it := r.IteratorCF(CfDefault, IterOptions{LowerBound: []byte("0100"), UpperBound: []byte("0200")})
	require.True(t, it.SeekToFirst())
	require.Equal(t, "0100", string(it.Key()))
	require.True(t, it.SeekToLast())
	require.Equal(t, "0199", string(it.Key()))
	require.True(t, it.Seek([]byte("0000")))
	require.Equal(t, "0100", string(it.Key()))
	require.True(t, it.SeekForPrev([]byte("0500")))
	require.Equal(t, "0199", string(it.Key()))

	var n int
	for ok := it.SeekToFirst(); ok; ok, err = it.Next() {
		n++
	}
	require.Nil(t, err)
	require.Equal(t, 100, n)

	// Empty bounds leave the iterator unbounded.
	open := r.IteratorCF(CfDefault, IterOptions{LowerBound: []byte{}, UpperBound: []byte{}})
	require.True(t, open.SeekToFirst())
	require.Equal(t, "0000", string(open.Key()))
	require.True(t, open.SeekToLast())
	require.Equal(t, "0999", string(open.Key()))
}

func TestSstKeyOrder(t *testing.T) {
	path := tempSstPath(t, "order.sst")
	defer os.RemoveAll(filepath.Dir(path))

	w, err := NewSstWriterBuilder().Build(path)
	require.Nil(t, err)
	require.Nil(t, w.Put([]byte("b"), []byte("1")))
	err = w.Put([]byte("b"), []byte("2"))
	require.Equal(t, ErrKeyOrderViolation, errors.Cause(err))
	require.True(t, IsInvalidRequest(err))
	require.Equal(t, ErrKeyOrderViolation, errors.Cause(w.Delete([]byte("a"))))
	require.Nil(t, w.Put([]byte("c"), []byte("3")))
	info, err := w.Finish()
	require.Nil(t, err)
	require.Equal(t, uint64(2), info.NumEntries)

	require.NotNil(t, w.Put([]byte("d"), []byte("4")))
}

func TestSstWithEngine(t *testing.T) {
	engine := newTestEngine(t)
	defer engine.Destroy()
	path := tempSstPath(t, "ingest.sst")
	defer os.RemoveAll(filepath.Dir(path))

	_, err := engine.NewSstWriterBuilder().SetCF("raft").Build(path)
	require.Equal(t, ErrUnknownColumnFamily, errors.Cause(err))

	require.Nil(t, engine.PutCF(CfWrite, []byte("k000"), []byte("stale")))
	require.Nil(t, engine.PutCF(CfWrite, []byte("k001"), []byte("stale")))

	w, err := engine.NewSstWriterBuilder().SetCF(CfWrite).Build(path)
	require.Nil(t, err)
	require.Nil(t, w.Delete([]byte("k000")))
	for i := 2; i < 300; i++ {
		require.Nil(t, w.Put([]byte(fmt.Sprintf("k%03d", i)), []byte("fresh")))
	}
	_, err = w.Finish()
	require.Nil(t, err)

	require.Equal(t, ErrUnknownColumnFamily, errors.Cause(engine.IngestExternalFileCF("raft", []string{path})))
	require.Nil(t, engine.IngestExternalFileCF(CfWrite, []string{path}))

	keys := collectCF(t, engine, CfWrite)
	require.Len(t, keys, 299)
	require.Equal(t, "k001=stale", keys[0])
	require.Equal(t, "k299=fresh", keys[298])
	require.Empty(t, collectCF(t, engine, CfDefault))

	// Corrupted files are rejected before anything is written.
	data, err := ioutil.ReadFile(path)
	require.Nil(t, err)
	data[10] ^= 0xff
	bad := filepath.Join(filepath.Dir(path), "bad.sst")
	require.Nil(t, ioutil.WriteFile(bad, data, 0644))
	require.Nil(t, engine.DeleteRangeCF(CfWrite, nil, nil))
	require.NotNil(t, engine.IngestExternalFileCF(CfWrite, []string{path, bad}))
	require.Empty(t, collectCF(t, engine, CfWrite))
}

func TestSstFinishTwice(t *testing.T) {
	path := tempSstPath(t, "twice.sst")
	defer os.RemoveAll(filepath.Dir(path))

	w, err := NewSstWriterBuilder().Build(path)
	require.Nil(t, err)
	require.Nil(t, w.Put([]byte("a"), []byte("1")))
	_, err = w.Finish()
	require.Nil(t, err)
	_, err = w.Finish()
	require.Equal(t, rocksdb.ErrFinished, errors.Cause(err))

	// The finished file survives the second call.
	r, err := OpenSstReader(path)
	require.Nil(t, err)
	defer r.Close()
	require.Nil(t, r.VerifyChecksum())
}

func TestIngestMissingFile(t *testing.T) {
	engine := newTestEngine(t)
	defer engine.Destroy()

	err := engine.IngestExternalFileCF(CfDefault, []string{filepath.Join(engine.Path(), "missing.sst")})
	require.NotNil(t, err)
	require.Empty(t, collectCF(t, engine, CfDefault))
}
