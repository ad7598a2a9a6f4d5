package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
	assert.Equal(t, "dummy: cause2: cause1", e.Error())
}

func TestWrapLeavesSentinelUntouched(t *testing.T) {
	sentinel := New("sentinel")
	cause := fmt.Errorf("io failure")

	wrapped := sentinel.Wrap(cause)
	assert.Nil(t, sentinel.Unwrap())
	assert.Equal(t, "sentinel", sentinel.Error())
	assert.Equal(t, "sentinel: io failure", wrapped.Error())
	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, cause))
}

func TestExtend(t *testing.T) {
	root := New("not found")
	child := root.Extend("object not found")
	other := root.Extend("project not found")

	assert.Equal(t, "object not found", child.Error())
	assert.True(t, Is(child, root))
	assert.False(t, Is(child, other))
	assert.False(t, Is(root, child))

	withCause := child.Wrap(fmt.Errorf("disk"))
	assert.True(t, Is(withCause, child))
	assert.True(t, Is(withCause, root))
	assert.False(t, Is(withCause, other))
	assert.True(t, Is(fmt.Errorf("loading: %w", withCause), root))

	var target *Error
	assert.True(t, As(fmt.Errorf("loading: %w", child), &target))
	assert.Equal(t, "object not found", target.Error())
}
