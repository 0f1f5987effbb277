package container

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/wudi/colorkit/object"
)

// DigestSize is the width of hash keys.
const DigestSize = 32

// HashFlag selects how Hash interprets its key.
type HashFlag int

const (
	// HashText hashes the key with blake3.
	HashText HashFlag = iota
	// HashDigest uses the key as an already computed digest.
	HashDigest
)

// Digest returns the blake3 digest of text.
func Digest(text []byte) [DigestSize]byte {
	return blake3.Sum256(text)
}

// FormatDigest renders a digest as lowercase hex.
func FormatDigest(d [DigestSize]byte) string {
	return hex.EncodeToString(d[:])
}

// ParseDigest is the inverse of FormatDigest.
func ParseDigest(s string) ([DigestSize]byte, error) {
	var d [DigestSize]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("container: parse digest: %w", err)
	}
	if len(b) != DigestSize {
		return d, fmt.Errorf("%w: got %d", ErrDigestWidth, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// HashEntry is a cache slot stored in a List. Its entry is nil on a miss.
type HashEntry struct {
	object.Base

	key   [DigestSize]byte
	entry object.Object
}

func newHashEntry(env *object.Env, key [DigestSize]byte) *HashEntry {
	e := &HashEntry{key: key}
	e.Init(object.KindHashEntry, env)
	e.OnRelease(func() { e.SetEntry(nil) })
	return e
}

// Key returns the digest the entry is stored under.
func (e *HashEntry) Key() [DigestSize]byte { return e.key }

// Entry borrows the cached payload.
func (e *HashEntry) Entry() object.Object { return e.entry }

// SetEntry stores obj, taking over the caller's reference. The previous
// payload is released.
func (e *HashEntry) SetEntry(obj object.Object) {
	old := e.entry
	e.entry = obj
	if old != nil && (obj == nil || old.ID() != obj.ID()) {
		old.Release()
	}
}

// Hash returns the entry stored under key, creating an empty one on a
// miss. The entry is borrowed from the list.
func (l *List) Hash(flag HashFlag, key []byte) (*HashEntry, error) {
	var d [DigestSize]byte
	switch flag {
	case HashText:
		d = Digest(key)
	case HashDigest:
		if len(key) != DigestSize {
			return nil, fmt.Errorf("%w: got %d", ErrDigestWidth, len(key))
		}
		copy(d[:], key)
	default:
		return nil, fmt.Errorf("container: unknown hash flag %d", flag)
	}

	l.mu.Lock()
	if e, ok := l.index[d]; ok {
		l.mu.Unlock()
		return e, nil
	}
	l.mu.Unlock()

	e := newHashEntry(l.Env(), d)
	if err := l.Insert(e, -1, 0); err != nil {
		return nil, err
	}
	return e, nil
}

// Lookup returns the entry under key without creating it.
func (l *List) Lookup(flag HashFlag, key []byte) (*HashEntry, bool) {
	var d [DigestSize]byte
	switch flag {
	case HashText:
		d = Digest(key)
	case HashDigest:
		if len(key) != DigestSize {
			return nil, false
		}
		copy(d[:], key)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.index[d]
	return e, ok
}
