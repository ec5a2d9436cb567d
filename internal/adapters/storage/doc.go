// Package storage provides the key-value adapters behind ports.KeyValueStore.
//
// FileStore is the durable store: one TOML document on disk, rewritten
// atomically on every mutation. MemoryStore is the session store and lives
// only as long as the process.
package storage
