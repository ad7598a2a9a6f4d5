package model

import (
	"encoding/hex"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	blake2b "github.com/minio/blake2b-simd"
)

// canonical serializes documents with sorted keys, and numbers kept as written
var canonical = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// document converts any JSON-serializable value into a generic JSON object
func document(doc interface{}) (map[string]interface{}, error) {
	var raw []byte
	switch d := doc.(type) {
	case []byte:
		raw = d
	case jsoniter.RawMessage:
		raw = d
	case *Object:
		raw = d.body
	default:
		var err error
		if raw, err = canonical.Marshal(doc); err != nil {
			return nil, fmt.Errorf("encoding document: %w", err)
		}
	}
	var m map[string]interface{}
	if err := canonical.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("a document must be a JSON object")
	}
	return m, nil
}

// ComputeHash yields the content hash of a document, regardless of any identifier it may carry.
//
// The document is serialized to JSON with sorted keys and without its "_id" field,
// then hashed with BLAKE2b-256.
func ComputeHash(doc interface{}) (string, error) {
	m, err := document(doc)
	if err != nil {
		return "", err
	}
	return hashDocument(m)
}

func hashDocument(m map[string]interface{}) (string, error) {
	id, hasID := m[idField]
	delete(m, idField)
	defer func() {
		if hasID {
			m[idField] = id
		}
	}()

	body, err := canonical.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	sum := blake2b.Sum256(body)
	return HashPrefix + hex.EncodeToString(sum[:]), nil
}
