package main

import (
	"fmt"

	"github.com/pingcap-incubator/badgercf/kv/util/engine_util"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var dumpEntries bool

func runSstDump(cmd *cobra.Command, args []string) error {
	r, err := engine_util.OpenSstReader(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	info, err := r.FileInfo()
	if err != nil {
		return err
	}
	props := r.Properties()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file:          %s\n", info.FilePath)
	fmt.Fprintf(out, "size:          %d\n", info.FileSize)
	fmt.Fprintf(out, "column family: %s\n", props.ColumnFamilyName)
	fmt.Fprintf(out, "compression:   %s\n", props.CompressionName)
	fmt.Fprintf(out, "entries:       %d\n", props.NumEntries)
	fmt.Fprintf(out, "deletions:     %d\n", props.NumDeletions)
	fmt.Fprintf(out, "data blocks:   %d\n", props.NumDataBlocks)
	fmt.Fprintf(out, "smallest key:  %s\n", formatKey(info.SmallestKey))
	fmt.Fprintf(out, "largest key:   %s\n", formatKey(info.LargestKey))
	if !dumpEntries {
		return nil
	}

	cf := props.ColumnFamilyName
	if cf == "" || cmd.Flags().Changed("cf") {
		cf = cfName
	}
	it := r.IteratorCF(cf, engine_util.IterOptions{})
	defer it.Close()
	for ok := it.SeekToFirst(); ok; ok, err = it.Next() {
		val, err1 := it.Value()
		if err1 != nil {
			return err1
		}
		fmt.Fprintf(out, "%s => %s\n", formatKey(it.Key()), formatKey(val))
	}
	if err != nil {
		return err
	}
	return it.Err()
}

func newSstDumpCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "sst-dump file",
		Short: "Print the properties of an sst file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSstDump,
	}
	m.Flags().BoolVar(&dumpEntries, "entries", false, "Also print the live entries")
	return m
}

func runSstVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	var failed int
	for _, path := range args {
		r, err := engine_util.OpenSstReader(path)
		if err == nil {
			err = r.VerifyChecksum()
			r.Close()
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s: ok\n", path)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed verification", failed, len(args))
	}
	return nil
}

func newSstVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sst-verify file...",
		Short: "Verify the block checksums of sst files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSstVerify,
	}
}
