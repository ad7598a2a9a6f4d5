// Copyright © 2018 One Concern

// Package storage provides the key-value contract backing graphstore databases.
//
// Every stored item is addressed by a structured Key (database, project, local id).
// Keys are ordered by their byte encoding, so that all the keys of a project
// (or of a database) may be scanned or removed as a prefix.
//
// This package supports the following backends:
//   - memory (reference implementation)
//   - badger
//   - pebble
//   - local file system (afero)
package storage
