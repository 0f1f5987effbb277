package graph

import (
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/colorkit/container"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/option"
)

// Blob carries an arbitrary derived value through containers. A payload
// implementing io.Closer is closed on the last release.
type Blob struct {
	object.Base

	Value any
}

func NewBlob(env *object.Env, v any) *Blob {
	b := &Blob{Value: v}
	b.Init(object.KindBlob, env)
	b.OnRelease(func() {
		if c, ok := b.Value.(io.Closer); ok {
			if err := c.Close(); err != nil {
				env.Message(object.SeverityWarn, b, "close: %v", err)
			}
		}
		b.Value = nil
	})
	return b
}

// ContextBytes returns what the node's derived objects depend on.
func (n *Node) ContextBytes() ([]byte, error) {
	if n.filter.Context != nil {
		return n.filter.Context(n)
	}
	text, err := n.options.ToText(option.FormatKeyValue)
	if err != nil {
		return nil, err
	}
	return append([]byte(n.filter.Registration+"\n"), text...), nil
}

// ContextDigest returns the blake2b-256 digest of the node context.
func ContextDigest(n *Node) ([32]byte, error) {
	ctx, err := n.ContextBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(ctx), nil
}

// Derived returns the value cached for the current node context, calling
// build on a miss. A rebuild evicts the values of every older context.
func (n *Node) Derived(build func(ctx []byte) (any, error)) (any, error) {
	ctx, err := n.ContextBytes()
	if err != nil {
		return nil, err
	}
	d := blake2b.Sum256(ctx)
	e, err := n.cache.Hash(container.HashDigest, d[:])
	if err != nil {
		return nil, err
	}
	if b, ok := e.Entry().(*Blob); ok {
		return b.Value, nil
	}
	v, err := build(ctx)
	if err != nil {
		return nil, err
	}
	e.SetEntry(NewBlob(n.Env(), v))
	n.evictExcept(e)
	return v, nil
}

func (n *Node) evictExcept(keep *container.HashEntry) {
	for i := n.cache.Count() - 1; i >= 0; i-- {
		e, ok := n.cache.At(i).(*container.HashEntry)
		if !ok || e == keep {
			continue
		}
		if err := n.cache.ReleaseAt(i); err != nil {
			n.Env().Message(object.SeverityWarn, n, "evict derived value: %v", err)
		}
	}
}
