// Package batch coordinates long-running, cancellable removal batches.
//
// A batch walks a snapshot of entities in fixed-size chunks and applies one
// rate-limited remote action per entity. Key features:
//   - Configurable chunk size (default 100 entities per chunk)
//   - A fixed-interval rate limiter between remote actions
//   - A background progress reporter that renders on a tick and once more at the end
//   - Cooperative cancellation through a CancellationGate polled before each entity
//
// Batches are not transactional. Entities acted upon before a cancellation stay
// acted upon, and a failed entity is reported rather than retried.
package batch
