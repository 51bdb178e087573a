// Package orders owns the persisted production order model: orders, per-step
// records, append-only audit trails, and stock withdrawal history, all backed
// by SQLite.
//
// The Store is the single persistence surface. Step state is only ever
// mutated through workflow.Engine transitions, which commit through
// CommitStepTransition so a transition and its audit entries land atomically.
package orders
