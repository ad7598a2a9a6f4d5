// Package rand produces random test data.
package rand

import (
	"bytes"
	"math/rand"
	"sync"
	"time"
)

var (
	onceSource sync.Once
	rgen       *rand.Rand
	randMutex  sync.Mutex

	// pads "a" over 256 locations, so any byte maps to a letter or a digit
	letters = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
)

func seed() {
	rgen = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec
}

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

// LetterBytes returns a random slice of bytes picked in the [0-9]|[a-z] range
func LetterBytes(n int) []byte {
	buf := Bytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return buf
}

// Name returns a random name, valid as a project or a branch name
func Name(n int) string {
	return string(LetterBytes(n))
}
