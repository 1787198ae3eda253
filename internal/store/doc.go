// Package store implements the registry's persistence collaborator.
//
// Two backends satisfy registry.Storage:
//
//   - JSONFile writes the snapshot to a single JSON document. Writes go to
//     a temporary file that is renamed over the target, and the previous
//     document is kept next to it with a ".backup" suffix.
//   - SQLite appends each snapshot as a row in registry_snapshots and keeps
//     the most recent few for recovery.
//
// Both return an empty snapshot when nothing has been saved yet.
package store
