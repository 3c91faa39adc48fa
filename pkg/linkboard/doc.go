// Package linkboard provides type-safe Go definitions and Redis schema
// patterns for the dashlink transport. The linkboard is the shared channel
// through which dashboard submitters and the renderer exchange records,
// feedback, and resource sets via well-defined slots stored in Redis.
//
// The channel is deliberately weak: each slot holds only the latest value
// for its link (last write wins), and Pub/Sub notifications are at-most-once
// hints that a slot changed. Consumers must re-read the slot on every
// notification and never depend on seeing intermediate writes.
//
// All Redis keys and channels are namespaced by instance name to enable
// multiple dashlink instances to safely coexist on a single Redis server.
//
// # Slots
//
// Per link there are three slots:
//
//   - record:    the submitter's latest DashboardRecord (submitter -> renderer)
//   - feedback:  the renderer's latest validity verdict (renderer -> submitter)
//   - submitted: the submitter's durable mirror of its own last submission
//
// Instance-wide slots hold the renderer's per-link reconcile state, the
// active resource set, and the monitoring peer identity submitters use to
// derive their target identifier.
//
// # Serialization
//
// Records and reconcile states are stored as Redis hashes. Complex fields
// are JSON-encoded into single hash fields, giving queryability for scalar
// fields and flexibility for nested structures. Feedback, resources, and the
// monitoring identity are small enough to live as plain JSON string values.
package linkboard
