package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ByteSize is a size in bytes that reads "64MB" or "4KiB" style strings from TOML.
type ByteSize uint64

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(units.BytesSize(float64(b))), nil
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	s := string(text)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}
	v, err := units.RAMInBytes(s)
	if err != nil {
		return errors.Annotatef(err, "invalid size %q", s)
	}
	if v < 0 {
		return errors.Errorf("negative size %q", s)
	}
	*b = ByteSize(v)
	return nil
}

type Config struct {
	LogLevel string `toml:"log-level"`

	DBPath string `toml:"db-path"` // Directory to store the data in. Should exist and be writable.
	// Column families besides "default", which always exists.
	ColumnFamilies []string `toml:"column-families"`

	Engine Engine `toml:"engine"`
	Sst    Sst    `toml:"sst"`
}

// Engine holds the badger tuning knobs.
type Engine struct {
	ValueThreshold   int      `toml:"value-threshold"`     // If value size >= this threshold, only store value offsets in tree.
	MaxTableSize     ByteSize `toml:"max-table-size"`      // Each table is at most this size.
	NumMemTables     int      `toml:"num-mem-tables"`      // Maximum number of tables to keep in memory, before stalling.
	NumL0Tables      int      `toml:"num-L0-tables"`       // Maximum number of Level 0 tables before we start compacting.
	NumL0TablesStall int      `toml:"num-L0-tables-stall"` // Maximum number of Level 0 tables before stalling.
	VlogFileSize     ByteSize `toml:"vlog-file-size"`      // Value log file size.
	BlockCacheSize   ByteSize `toml:"block-cache-size"`

	// Sync all writes to disk. Setting this to true would slow down data loading significantly.
	SyncWrites    bool `toml:"sync-writes"`
	NumCompactors int  `toml:"num-compactors"`
}

// Sst configures the external sst files built by the engine.
type Sst struct {
	BlockSize   ByteSize `toml:"block-size"`
	Compression string   `toml:"compression"` // none, snappy, lz4 or zstd.
	Checksum    string   `toml:"checksum"`    // none, crc32c or xxh3.
	// Write throughput limit for sst files, 0 means unlimited.
	RateLimitBytesPerSec ByteSize `toml:"rate-limit-bytes-per-sec"`
}

const (
	KB uint64 = 1024
	MB uint64 = 1024 * 1024
)

// Physical keys start with the name length, which must stay below '!', the badger internal key marker.
const maxCFNameLen = 32

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db-path must be set")
	}
	seen := map[string]bool{}
	for _, cf := range c.ColumnFamilies {
		if err := ValidateCFName(cf); err != nil {
			return err
		}
		if seen[cf] {
			return fmt.Errorf("duplicated column family %q", cf)
		}
		seen[cf] = true
	}
	if c.Engine.NumL0TablesStall < c.Engine.NumL0Tables {
		return fmt.Errorf("num-L0-tables-stall must not be less than num-L0-tables")
	}
	if c.Engine.BlockCacheSize == 0 {
		return fmt.Errorf("block-cache-size must be greater than 0")
	}
	if c.Sst.BlockSize == 0 {
		return fmt.Errorf("sst block-size must be greater than 0")
	}
	switch c.Sst.Compression {
	case "", "none", "no", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("unknown sst compression %q", c.Sst.Compression)
	}
	switch c.Sst.Checksum {
	case "", "none", "crc32", "crc32c", "xxh3":
	default:
		return fmt.Errorf("unknown sst checksum %q", c.Sst.Checksum)
	}
	return nil
}

// ValidateCFName accepts 1 to 32 bytes of printable ASCII.
func ValidateCFName(name string) error {
	if len(name) == 0 || len(name) > maxCFNameLen {
		return fmt.Errorf("column family name %q must be 1 to %d bytes", name, maxCFNameLen)
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return fmt.Errorf("column family name %q contains a non printable byte", name)
		}
	}
	return nil
}

// LoadConfig reads a TOML file on top of the default config.
func LoadConfig(path string) (*Config, error) {
	c := NewDefaultConfig()
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown config items %v", undecoded)
	}
	if err = c.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return c, nil
}

// SetupLogger installs a global pingcap/log logger at the configured level.
func (c *Config) SetupLogger() error {
	lg, p, err := log.InitLogger(&log.Config{Level: c.LogLevel}, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(lg, p)
	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: getLogLevel(),
		DBPath:   "/tmp/badger",
		Engine: Engine{
			ValueThreshold:   256,
			MaxTableSize:     ByteSize(64 * MB),
			NumMemTables:     3,
			NumL0Tables:      4,
			NumL0TablesStall: 8,
			VlogFileSize:     ByteSize(256 * MB),
			BlockCacheSize:   ByteSize(64 * MB),
			SyncWrites:       true,
			NumCompactors:    1,
		},
		Sst: Sst{
			BlockSize:   ByteSize(4 * KB),
			Compression: "lz4",
			Checksum:    "crc32c",
		},
	}
}

func NewTestConfig() *Config {
	c := NewDefaultConfig()
	c.Engine.MaxTableSize = ByteSize(4 * MB)
	c.Engine.VlogFileSize = ByteSize(16 * MB)
	c.Engine.BlockCacheSize = ByteSize(1 * MB)
	c.Engine.SyncWrites = false
	return c
}
