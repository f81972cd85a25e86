// Package channel maintains the routing table from channel names to sinks.
//
// The registry keeps two views of the table:
//
//   - the pending table, mutated by CreateChannel and RemoveChannel under a
//     mutex;
//   - the published Snapshot, an immutable copy swapped in atomically by
//     Commit and read lock-free by every emit.
//
// Emits that start before a Commit observe the previous snapshot in full;
// emits that start after it observe the new one. No reader ever sees a
// partially updated table.
//
// Sink lifecycles are reference-counted. A sink is started when the first
// owner acquires it and stopped when the last owner releases it. Releases
// caused by RemoveChannel are deferred until the next Commit has published
// a snapshot that no longer references the sink, so in-flight emits on the
// old snapshot still find their sinks started.
package channel
