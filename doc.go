package badgercf

/*
badgercf layers column families and batched writes over one badger database. It is meant to back a
TiKV style storage engine where every column family would otherwise need its own RocksDB column
family.

The `badgercf` module is organized into the following packages:

* `kv/util/engine_util`: the engine. It maps column families onto key prefixes, iterates one family
  in both directions, commits write batches atomically and builds or ingests sst files.
* `kv/config`: TOML configuration for the engine, its badger options and the sst files it writes.
* `kv/cfkv-ctl`: a command line tool to read, edit and ingest into an engine and to inspect sst files.
* `rocksdb`: a pure Go writer and reader of RocksDB block based tables.
*/
