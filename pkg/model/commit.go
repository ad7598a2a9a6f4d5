package model

import (
	"fmt"
	"time"
)

// Commit points to the state of a project tree and to the commits it derives from
type Commit struct {
	ID      string   `json:"_id" yaml:"_id"`
	Type    string   `json:"type" yaml:"type"`
	Root    string   `json:"root" yaml:"root"`
	Parents []string `json:"parents" yaml:"parents"`
	// Time in milliseconds since the epoch
	Time    int64    `json:"time" yaml:"time"`
	Updater []string `json:"updater,omitempty" yaml:"updater,omitempty"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// Timestamp of the commit
func (c *Commit) Timestamp() time.Time {
	return time.UnixMilli(c.Time).UTC()
}

// IsRoot tells if this commit starts a history
func (c *Commit) IsRoot() bool {
	return len(c.Parents) == 0
}

// Validate the identifiers a commit refers to
func (c *Commit) Validate() error {
	if err := ValidateHash(c.Root); err != nil {
		return fmt.Errorf("commit root: %w", err)
	}
	for _, parent := range c.Parents {
		if err := ValidateHash(parent); err != nil {
			return fmt.Errorf("commit parent: %w", err)
		}
	}
	return nil
}

// NewCommit builds a commit object and assigns its identifier.
//
// A zero time is set to the current time.
func NewCommit(c Commit) (*Object, error) {
	c.Type = TypeCommit
	c.ID = ""
	if c.Parents == nil {
		c.Parents = []string{}
	}
	if c.Time == 0 {
		c.Time = TimeMillis(time.Now())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewObject(c)
}

// TimeMillis converts a time into milliseconds since the epoch
func TimeMillis(t time.Time) int64 {
	return t.UnixMilli()
}
