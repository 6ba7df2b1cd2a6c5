/*
Package engine_util emulates column families and batched writes on a single badger keyspace.

A column family is a contiguous range of the badger keyspace. Physical keys are the family name
length as one byte, the family name, then the logical key, so all keys of a family share a prefix
and sort in logical order.

Engine is the entry point: point reads and writes per family, range deletes, snapshots, bounded
iterators, write batches and sst files. CFIterator walks one family of a transaction in both
directions. WriteBatch buffers mutations with save points and commits them in one transaction.
SstWriter and SstReader store families in RocksDB block based tables built by the rocksdb package.
*/
package engine_util
