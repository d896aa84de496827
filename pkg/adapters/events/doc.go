// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups; broadcast topics get one group per consumer
//   - memory: In-process, ordered delivery per subscription
package events
