// Package cache defines the disk-backed tile store responsible for
// translating tile coordinates into CacheRoot/<z>/<x>/<y>.png files. The
// store exposes read/write primitives guarded by advisory file locks so
// that any number of processes can share one cache tree without readers
// ever observing a partially written tile. File size and modtime come
// straight from the filesystem; a zero-byte file counts as absent, which
// also makes stray lock-created files harmless.
package cache
