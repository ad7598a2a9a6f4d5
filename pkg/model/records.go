package model

import (
	"fmt"
	"time"
)

// BranchRecord is the stored value of a branch pointer
type BranchRecord struct {
	ID   string `json:"_id"`
	Hash string `json:"hash"`
}

// EncodeBranch yields the stored value for a branch head.
//
// The encoding is deterministic, so that records may be compared byte for byte.
// An empty head has no record.
func EncodeBranch(name, hash string) ([]byte, error) {
	if hash == "" {
		return nil, nil
	}
	return canonical.Marshal(BranchRecord{ID: name, Hash: hash})
}

// DecodeBranch decodes a stored branch pointer
func DecodeBranch(raw []byte) (BranchRecord, error) {
	var r BranchRecord
	if err := canonical.Unmarshal(raw, &r); err != nil {
		return BranchRecord{}, fmt.Errorf("decoding branch record: %w", err)
	}
	return r, nil
}

// ProjectRecord is stored under the root marker of a project
type ProjectRecord struct {
	Name    string    `json:"name" yaml:"name"`
	Created time.Time `json:"created" yaml:"created"`
}

// EncodeProject yields the stored value of a project record
func EncodeProject(r ProjectRecord) ([]byte, error) {
	return canonical.Marshal(r)
}

// DecodeProject decodes a stored project record
func DecodeProject(raw []byte) (ProjectRecord, error) {
	var r ProjectRecord
	if err := canonical.Unmarshal(raw, &r); err != nil {
		return ProjectRecord{}, fmt.Errorf("decoding project record: %w", err)
	}
	return r, nil
}
