package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	. "github.com/pingcap/check"
)

func Test(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testConfigSuite{})

type testConfigSuite struct{}

func (s *testConfigSuite) TestDefaultValid(c *C) {
	c.Assert(NewDefaultConfig().Validate(), IsNil)
	c.Assert(NewTestConfig().Validate(), IsNil)
}

func (s *testConfigSuite) TestByteSize(c *C) {
	var b ByteSize
	c.Assert(b.UnmarshalText([]byte("4KiB")), IsNil)
	c.Assert(uint64(b), Equals, 4*KB)
	c.Assert(b.UnmarshalText([]byte("64MB")), IsNil)
	c.Assert(uint64(b), Equals, 64*MB)
	c.Assert(b.UnmarshalText([]byte("1024")), IsNil)
	c.Assert(uint64(b), Equals, KB)
	c.Assert(b.UnmarshalText([]byte("lots")), NotNil)
}

func (s *testConfigSuite) TestDecode(c *C) {
	cfgData := `
db-path = "/data/cf"
column-families = ["write", "lock"]

[engine]
max-table-size = "8MB"
sync-writes = false

[sst]
block-size = "16KiB"
compression = "zstd"
checksum = "xxh3"
rate-limit-bytes-per-sec = "10MB"
`
	cfg := NewDefaultConfig()
	meta, err := toml.Decode(cfgData, cfg)
	c.Assert(err, IsNil)
	c.Assert(meta.Undecoded(), HasLen, 0)
	c.Assert(cfg.Validate(), IsNil)
	c.Assert(cfg.DBPath, Equals, "/data/cf")
	c.Assert(cfg.ColumnFamilies, DeepEquals, []string{"write", "lock"})
	c.Assert(uint64(cfg.Engine.MaxTableSize), Equals, 8*MB)
	c.Assert(cfg.Engine.SyncWrites, IsFalse)
	// Untouched keys keep their defaults.
	c.Assert(cfg.Engine.NumMemTables, Equals, 3)
	c.Assert(uint64(cfg.Sst.BlockSize), Equals, 16*KB)
	c.Assert(cfg.Sst.Compression, Equals, "zstd")
	c.Assert(cfg.Sst.Checksum, Equals, "xxh3")
	c.Assert(uint64(cfg.Sst.RateLimitBytesPerSec), Equals, 10*MB)
}

func (s *testConfigSuite) TestLoadConfig(c *C) {
	dir, err := ioutil.TempDir("", "cfkv-config")
	c.Assert(err, IsNil)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "good.toml")
	c.Assert(ioutil.WriteFile(path, []byte(`column-families = ["raft"]`), 0644), IsNil)
	cfg, err := LoadConfig(path)
	c.Assert(err, IsNil)
	c.Assert(cfg.ColumnFamilies, DeepEquals, []string{"raft"})

	path = filepath.Join(dir, "unknown.toml")
	c.Assert(ioutil.WriteFile(path, []byte(`no-such-item = 1`), 0644), IsNil)
	_, err = LoadConfig(path)
	c.Assert(err, NotNil)

	path = filepath.Join(dir, "invalid.toml")
	c.Assert(ioutil.WriteFile(path, []byte("column-families = [\"a\\tb\"]"), 0644), IsNil)
	_, err = LoadConfig(path)
	c.Assert(err, NotNil)
}

func (s *testConfigSuite) TestValidate(c *C) {
	cfg := NewTestConfig()
	cfg.ColumnFamilies = []string{"write", "write"}
	c.Assert(cfg.Validate(), NotNil)

	cfg = NewTestConfig()
	cfg.Sst.Compression = "brotli"
	c.Assert(cfg.Validate(), NotNil)

	cfg = NewTestConfig()
	cfg.Sst.Checksum = "md5"
	c.Assert(cfg.Validate(), NotNil)

	cfg = NewTestConfig()
	cfg.Engine.NumL0TablesStall = 1
	c.Assert(cfg.Validate(), NotNil)

	// badger cannot build its block cache with zero capacity.
	cfg = NewTestConfig()
	cfg.Engine.BlockCacheSize = 0
	c.Assert(cfg.Validate(), NotNil)
}

func (s *testConfigSuite) TestZeroBlockCacheRejected(c *C) {
	dir, err := ioutil.TempDir("", "cfkv-config")
	c.Assert(err, IsNil)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "cache.toml")
	c.Assert(ioutil.WriteFile(path, []byte("[engine]\nblock-cache-size = 0\n"), 0644), IsNil)
	_, err = LoadConfig(path)
	c.Assert(err, ErrorMatches, ".*block-cache-size.*")
	c.Assert(uint64(NewTestConfig().Engine.BlockCacheSize) > 0, IsTrue)
}

func (s *testConfigSuite) TestCFName(c *C) {
	c.Assert(ValidateCFName("write"), IsNil)
	c.Assert(ValidateCFName(strings.Repeat("x", 32)), IsNil)
	c.Assert(ValidateCFName(""), NotNil)
	c.Assert(ValidateCFName(strings.Repeat("x", 33)), NotNil)
	c.Assert(ValidateCFName("with space"), IsNil)
	c.Assert(ValidateCFName("nul\x00"), NotNil)
	c.Assert(ValidateCFName("tab\t"), NotNil)
}
