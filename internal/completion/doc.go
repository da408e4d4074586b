// Package completion wraps an expensive, occasionally-failing upstream
// completion service with content-addressed caching and bounded
// exponential-backoff retry.
//
// Cache lookups are keyed by a hash of the serialized message sequence
// (or an explicit caller key). Hits return immediately without touching
// the upstream or the retry budget. Entries expire after a TTL (checked
// lazily) and the cache is bounded: when full, the oldest-inserted entry
// is evicted — insertion order, not recency; the per-entry hit counter is
// observability bookkeeping only.
//
// Upstream failures are classified: errors wrapping ErrInvalidRequest are
// propagated on the first attempt, everything else is retried up to the
// policy's MaxAttempts with min(initial*multiplier^(n-1), max) delays.
package completion
