package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pingcap-incubator/badgercf/kv/config"
	"github.com/pingcap-incubator/badgercf/kv/util"
	"github.com/pingcap-incubator/badgercf/kv/util/engine_util"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	cfName     string
	hexKeys    bool
)

// loadConfig reads --config and applies --db. Column families come from the config only, so a
// mistyped --cf fails instead of declaring a new family.
func loadConfig() (*config.Config, error) {
	conf := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if conf, err = config.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}
	if dbPath != "" {
		conf.DBPath = dbPath
	}
	if err := conf.SetupLogger(); err != nil {
		return nil, err
	}
	return conf, nil
}

// openEngine opens the engine of the config. Commands that only read or remove data pass mustExist so a
// mistyped path does not create an empty database.
func openEngine(mustExist bool) (*engine_util.Engine, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if mustExist && !util.DirExists(conf.DBPath) {
		return nil, errors.Errorf("no database at %s", conf.DBPath)
	}
	return engine_util.NewEngine(conf)
}

func parseKey(s string) ([]byte, error) {
	if !hexKeys {
		return []byte(s), nil
	}
	b, err := hex.DecodeString(s)
	return b, errors.Annotatef(err, "decode %q", s)
}

func formatKey(key []byte) string {
	if hexKeys {
		return hex.EncodeToString(key)
	}
	return fmt.Sprintf("%q", key)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cfkv-ctl",
		Short:        "Inspect and edit a column family engine and its sst files",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "C", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Data directory, overrides db-path of the config")
	rootCmd.PersistentFlags().StringVar(&cfName, "cf", engine_util.CfDefault, "Column family, declared in the config")
	rootCmd.PersistentFlags().BoolVar(&hexKeys, "hex", false, "Keys and values are hex encoded")

	rootCmd.AddCommand(
		newGetCommand(),
		newScanCommand(),
		newPutCommand(),
		newDeleteCommand(),
		newDeleteRangeCommand(),
		newIngestCommand(),
		newSstDumpCommand(),
		newSstVerifyCommand(),
	)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
