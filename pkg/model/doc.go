// Package model describes the objects manipulated by graphstore.
//
// The object model is composed of:
//
//  Projects:
//    A project is an isolated, named container of objects and branches. Names match [0-9a-zA-Z_]+.
//
//  Objects:
//    An object is an immutable JSON document, identified by a hash of its content ("#" followed by hex digits).
//    Objects are either generic documents or commits.
//
//  Commits:
//    A commit is an object with type "commit", pointing to the hash of a tree (root) and to zero or more parent commits.
//    A commit with no parent is a root commit. A commit with several parents is a merge.
//
//  Branches:
//    A branch is a mutable named pointer to a commit. It is stored as a record under "*" followed by the branch name.
package model
