package storage

import "cohere/pkg/platform/sentinel"

// ErrNotFound keeps storage-specific lookups consistent across the in-memory,
// Redis, and Postgres implementations.
var ErrNotFound = sentinel.ErrNotFound
