// Package cache provides the durable key/value caches used to memoize model
// completions, and the selector that picks one of them.
//
// Three backends exist: Redis, Azure Cosmos DB and an sqlite file on disk.
// Selector.Select walks them in that order and returns the first that opens;
// the disk cache is the fallback that always applies.
package cache
