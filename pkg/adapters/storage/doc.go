// Package storage provides output target and notebook snapshot storage.
//
// Implementations:
//   - redis: Redis keys with JSON serialization; output targets expire after a TTL
//   - memory: In-memory maps for single-process deployments and tests
package storage
