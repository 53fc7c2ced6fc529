// Package inmemory provides a concurrency-safe, map-backed implementation of
// [memory.Store] for single-process deployments where history does not need
// to survive a restart. The main entry point is [New].
package inmemory
