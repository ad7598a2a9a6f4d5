package storage

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/oneconcern/graphstore/pkg/storage/status"
)

// Key is the composite address of a stored item.
//
// A key with an empty ID is a project prefix. A key with an empty Project and ID
// is a database prefix. The zero Key addresses the whole store.
type Key struct {
	Database string
	Project  string
	ID       string
}

// ProjectPrefix builds the prefix key for all the keys of a project
func ProjectPrefix(database, project string) Key {
	return Key{Database: database, Project: project}
}

// DatabasePrefix builds the prefix key for all the keys of a database
func DatabasePrefix(database string) Key {
	return Key{Database: database}
}

func (k Key) String() string {
	return strings.Join([]string{k.Database, k.Project, k.ID}, "/")
}

// IsPrefix tells if this key designates a range of keys rather than a single item
func (k Key) IsPrefix() bool {
	return k.ID == ""
}

// Validate that components are set from left to right
func (k Key) Validate() error {
	switch {
	case k.Database == "" && (k.Project != "" || k.ID != ""):
		return status.ErrInvalidKey.Wrap(fmt.Errorf("missing database in %q", k))
	case k.Project == "" && k.ID != "":
		return status.ErrInvalidKey.Wrap(fmt.Errorf("missing project in %q", k))
	default:
		return nil
	}
}

// ValidateItem validates a key which designates a single item
func (k Key) ValidateItem() error {
	if k.ID == "" || k.Project == "" || k.Database == "" {
		return status.ErrInvalidKey.Wrap(fmt.Errorf("incomplete key %q", k))
	}
	return nil
}

// HasPrefix tells if this key falls under some prefix key
func (k Key) HasPrefix(prefix Key) bool {
	switch {
	case prefix.Database == "":
		return true
	case prefix.Database != k.Database:
		return false
	case prefix.Project == "":
		return true
	case prefix.Project != k.Project:
		return false
	case prefix.ID == "":
		return true
	default:
		return prefix.ID == k.ID
	}
}

// Bytes yields the ordered encoding of a key.
//
// Each non-empty component is encoded as its uvarint length followed by its bytes, so
// no separator character is reserved and the encoding of a prefix key is a strict
// prefix of the encoding of every key under it.
func (k Key) Bytes() []byte {
	buf := make([]byte, 0, len(k.Database)+len(k.Project)+len(k.ID)+3*binary.MaxVarintLen16)
	for _, component := range [...]string{k.Database, k.Project, k.ID} {
		if component == "" {
			break
		}
		buf = binary.AppendUvarint(buf, uint64(len(component)))
		buf = append(buf, component...)
	}
	return buf
}

// ParseKey decodes the ordered encoding of a key
func ParseKey(b []byte) (Key, error) {
	var components [3]string
	for i := 0; i < len(components) && len(b) > 0; i++ {
		l, n := binary.Uvarint(b)
		if n <= 0 || uint64(len(b)-n) < l {
			return Key{}, status.ErrInvalidKey.Wrap(fmt.Errorf("corrupted key encoding %x", b))
		}
		components[i] = string(b[n : n+int(l)])
		b = b[n+int(l):]
	}
	if len(b) > 0 {
		return Key{}, status.ErrInvalidKey.Wrap(fmt.Errorf("trailing bytes in key encoding %x", b))
	}
	return Key{Database: components[0], Project: components[1], ID: components[2]}, nil
}
