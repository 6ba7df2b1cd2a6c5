package main

import (
	"fmt"

	"github.com/pingcap-incubator/badgercf/kv/util/engine_util"
	"github.com/spf13/cobra"
)

var scanLimit int

func runGet(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}
	engine, err := openEngine(true)
	if err != nil {
		return err
	}
	defer engine.Close()

	val, err := engine.GetCF(cfName, key)
	if err != nil {
		return err
	}
	if val == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "not found")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatKey(val))
	return nil
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get key",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	var start, end []byte
	var err error
	if len(args) > 0 {
		if start, err = parseKey(args[0]); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		if end, err = parseKey(args[1]); err != nil {
			return err
		}
	}
	engine, err := openEngine(true)
	if err != nil {
		return err
	}
	defer engine.Close()

	out := cmd.OutOrStdout()
	var n int
	err = engine.ScanCF(cfName, start, end, func(key, value []byte) (bool, error) {
		fmt.Fprintf(out, "%s => %s\n", formatKey(key), formatKey(value))
		n++
		return scanLimit <= 0 || n < scanLimit, nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d keys\n", n)
	return nil
}

func newScanCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "scan [start] [end]",
		Short: "Print the keys of a column family in [start, end)",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runScan,
	}
	m.Flags().IntVar(&scanLimit, "limit", 0, "Stop after this many keys, 0 means no limit")
	return m
}

func runPut(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}
	value, err := parseKey(args[1])
	if err != nil {
		return err
	}
	engine, err := openEngine(false)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.PutCF(cfName, key, value)
}

func newPutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "put key value",
		Short: "Set a key",
		Args:  cobra.ExactArgs(2),
		RunE:  runPut,
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	keys := make([][]byte, 0, len(args))
	for _, arg := range args {
		key, err := parseKey(arg)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	engine, err := openEngine(true)
	if err != nil {
		return err
	}
	defer engine.Close()

	wb := engine.NewWriteBatch()
	for _, key := range keys {
		wb.DeleteCF(cfName, key)
	}
	return wb.Write()
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete key...",
		Short: "Delete keys in one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDelete,
	}
}

func runDeleteRange(cmd *cobra.Command, args []string) error {
	start, err := parseKey(args[0])
	if err != nil {
		return err
	}
	var end []byte
	if len(args) > 1 {
		if end, err = parseKey(args[1]); err != nil {
			return err
		}
	}
	engine, err := openEngine(true)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.DeleteRangesCF(cfName, []engine_util.KeyRange{{Start: start, End: end}})
}

func newDeleteRangeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-range start [end]",
		Short: "Delete the keys in [start, end), an omitted end means the rest of the column family",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runDeleteRange,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(false)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err = engine.IngestExternalFileCF(cfName, args); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d files into %s\n", len(args), cfName)
	return nil
}

func newIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest file...",
		Short: "Replay sst files into a column family",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}
}
