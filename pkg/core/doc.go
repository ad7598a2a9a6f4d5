// Package core implements the versioning layer of graphstore on top of any storage.Store.
//
// A Database is a registry of projects. Each Project holds immutable, content-addressed objects,
// some of which are commits, and branches: named pointers to commits, updated with compare-and-swap.
//
// All operations are blocking and safe for concurrent use. Branch updates are not retried:
// a caller losing a race gets status.ErrMismatch and decides how to proceed (see AdvanceBranch).
package core
