package model

import (
	"fmt"

	"github.com/oneconcern/graphstore/pkg/model/status"
)

const (
	idField   = "_id"
	typeField = "type"

	// TypeCommit is the value of the type field of commits
	TypeCommit = "commit"
)

// Kind of object
type Kind uint8

// Object kinds
const (
	KindGeneric Kind = iota
	KindCommit
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return TypeCommit
	default:
		return "object"
	}
}

// Object is an immutable JSON document, either generic or a commit.
//
// The serialized body is retained as is: storing an object stores its body verbatim.
type Object struct {
	ID     string
	Kind   Kind
	body   []byte
	commit *Commit
}

// header is the part of a document that tells its identity and kind
type header struct {
	ID   string `json:"_id"`
	Type string `json:"type"`
}

// DecodeObject decodes a stored document, and the commit it holds if its type is "commit"
func DecodeObject(raw []byte) (*Object, error) {
	var h header
	if err := canonical.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("decoding object: %w", err)
	}

	o := &Object{
		ID:   h.ID,
		Kind: KindGeneric,
		body: append([]byte(nil), raw...),
	}
	if h.Type != TypeCommit {
		return o, nil
	}

	var c Commit
	if err := canonical.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decoding commit %s: %w", h.ID, err)
	}
	o.Kind = KindCommit
	o.commit = &c
	return o, nil
}

// PeekType reads the type field of a stored document, without decoding the rest of it
func PeekType(raw []byte) string {
	return canonical.Get(raw, typeField).ToString()
}

// NewObject builds an object from any document serializable as a JSON object, and assigns its identifier.
//
// Any "_id" carried by the document is replaced by the content hash.
func NewObject(doc interface{}) (*Object, error) {
	m, err := document(doc)
	if err != nil {
		return nil, err
	}
	id, err := hashDocument(m)
	if err != nil {
		return nil, err
	}
	m[idField] = id
	body, err := canonical.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return DecodeObject(body)
}

// Validate the identifier of an object, and that its body carries this same identifier.
// It does not verify the content hash.
func (o *Object) Validate() error {
	if err := ValidateHash(o.ID); err != nil {
		return err
	}
	if len(o.body) == 0 {
		return status.ErrInvalidID.Wrap(fmt.Errorf("object %s has no body", o.ID))
	}
	if id := canonical.Get(o.body, idField).ToString(); id != o.ID {
		return status.ErrInvalidID.Wrap(fmt.Errorf("object %s has a body with _id %q", o.ID, id))
	}
	if o.Kind == KindCommit && o.commit == nil {
		return status.ErrInvalidID.Wrap(fmt.Errorf("object %s is not a decoded commit", o.ID))
	}
	return nil
}

// IsCommit tells if this object is a commit
func (o *Object) IsCommit() bool {
	return o.Kind == KindCommit
}

// Commit yields the commit held by this object, if any
func (o *Object) Commit() (*Commit, bool) {
	return o.commit, o.commit != nil
}

// Body returns the serialized document
func (o *Object) Body() []byte {
	return o.body
}

// Decode the document into some value
func (o *Object) Decode(target interface{}) error {
	return canonical.Unmarshal(o.body, target)
}

// MarshalJSON yields the document verbatim
func (o *Object) MarshalJSON() ([]byte, error) {
	if len(o.body) == 0 {
		return []byte("null"), nil
	}
	return o.body, nil
}

// UnmarshalJSON decodes a document
func (o *Object) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeObject(data)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}
