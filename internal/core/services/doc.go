// Package services implements the reconciliation core of wikisync.
//
// The Reconciler decides per page whether it must be created, updated,
// skipped or removed in the search index and drives chunking, embedding
// and writes. SyncService wraps one reconciliation pass: it lists the wiki,
// builds the changeset, runs the pass and purges orphan attachments.
package services
