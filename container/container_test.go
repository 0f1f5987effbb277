package container

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observer"
)

type item struct {
	object.Base
	label     string
	finalized *int
}

func newItem(env *object.Env, label string) *item {
	it := &item{label: label}
	it.Init(object.KindCustom, env)
	it.OnRelease(func() {
		if it.finalized != nil {
			*it.finalized++
		}
	})
	return it
}

type copyable struct {
	item
}

func (c *copyable) CopyObject(env *object.Env) object.Object {
	n := &copyable{}
	n.label = c.label + "'"
	n.Init(object.KindCustom, env)
	return n
}

func labels(l *List) []string {
	var out []string
	l.Each(func(_ int, o object.Object) bool {
		switch x := o.(type) {
		case *item:
			out = append(out, x.label)
		case *copyable:
			out = append(out, x.label)
		}
		return true
	})
	return out
}

func TestMoveInZeroesCaller(t *testing.T) {
	l := New(nil)
	it := newItem(nil, "a")
	require.NoError(t, MoveIn(l, &it, -1, 0))
	assert.Nil(t, it)
	assert.Equal(t, 1, l.Count())

	assert.ErrorIs(t, l.Insert(nil, 0, 0), ErrNilHandle)
	assert.ErrorIs(t, MoveIn[*item](l, nil, 0, 0), ErrNilHandle)
}

func TestOrderingMatchesReferenceModel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := New(nil)
	var model []string
	inserted, removed := 0, 0
	for step := 0; step < 200; step++ {
		if len(model) > 0 && rng.Intn(3) == 0 {
			pos := rng.Intn(len(model))
			require.NoError(t, l.ReleaseAt(pos))
			model = append(model[:pos], model[pos+1:]...)
			removed++
			continue
		}
		label := string(rune('a' + step%26))
		pos := rng.Intn(len(model)+3) - 1
		it := newItem(nil, label)
		require.NoError(t, MoveIn(l, &it, pos, 0))
		if pos < 0 || pos >= len(model) {
			model = append(model, label)
		} else {
			model = append(model[:pos], append([]string{label}, model[pos:]...)...)
		}
		inserted++
	}
	assert.Equal(t, inserted-removed, l.Count())
	assert.Equal(t, model, labels(l))
}

func TestGetRetainsAndTypedReleases(t *testing.T) {
	var msgs []object.Message
	env := &object.Env{Messages: func(m object.Message) { msgs = append(msgs, m) }}
	l := New(env)
	it := newItem(env, "a")
	ref := it
	require.NoError(t, MoveIn(l, &it, 0, 0))

	got := l.Get(0)
	require.NotNil(t, got)
	assert.Equal(t, 2, ref.Refs())
	got.Release()

	assert.Nil(t, l.GetTyped(0, object.KindNode))
	assert.Equal(t, 1, ref.Refs(), "mismatch drops the borrow")
	require.Len(t, msgs, 1)

	typed := l.GetTyped(0, object.KindCustom)
	require.NotNil(t, typed)
	typed.Release()

	x, ok := Typed[*item](l, 0)
	require.True(t, ok)
	assert.Equal(t, "a", x.label)
	_, ok = Typed[*copyable](l, 0)
	assert.False(t, ok)
	assert.Nil(t, l.Get(5))
	assert.Error(t, l.ReleaseAt(5))
}

func TestReleaseListReleasesElements(t *testing.T) {
	finalized := 0
	l := New(nil)
	for _, s := range []string{"a", "b"} {
		it := newItem(nil, s)
		it.finalized = &finalized
		require.NoError(t, MoveIn(l, &it, -1, 0))
	}
	require.True(t, l.Release())
	assert.Equal(t, 2, finalized)
	assert.Equal(t, 0, l.Count())
}

func TestObserveFlagForwardsAndUnregisters(t *testing.T) {
	env := observer.NewEnv(nil)
	reg := observer.From(env)
	l := New(env)
	watcher := newItem(env, "w")
	var got []object.Signal
	reg.Add(l, watcher, nil, func(_ observer.Edge, sig object.Signal, _ any) {
		got = append(got, sig)
	})

	a := newItem(env, "a")
	b := newItem(env, "b")
	aRef, bRef := a, b
	require.NoError(t, MoveIn(l, &a, -1, FlagObserve))
	require.NoError(t, MoveIn(l, &b, -1, FlagObserve))
	assert.True(t, reg.IsObserved(aRef, l))

	env.Emit(aRef, object.SignalDataChanged, nil)
	assert.Equal(t, []object.Signal{object.SignalDataChanged}, got)

	bRef.Retain()
	require.NoError(t, l.ReleaseAt(1))
	assert.False(t, reg.IsObserved(bRef, l))
	bRef.Release()

	require.True(t, l.Release())
	assert.Equal(t, 0, reg.Count(aRef, observer.AsModel|observer.AsObserver))
	assert.Equal(t, 0, reg.Count(l, observer.AsModel|observer.AsObserver))
	assert.Equal(t, 0, reg.Len())
}

func TestSortStableDescending(t *testing.T) {
	l := New(nil)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		it := newItem(nil, s)
		require.NoError(t, MoveIn(l, &it, -1, 0))
	}
	ranks := []int32{1, 3, 1, 3, 2}
	require.NoError(t, l.Sort(ranks))
	assert.Equal(t, []string{"b", "d", "e", "a", "c"}, labels(l))
	assert.Equal(t, []int32{3, 3, 2, 1, 1}, ranks)

	assert.ErrorIs(t, l.Sort([]int32{1}), ErrRankLength)
}

func TestHashGetOrCompute(t *testing.T) {
	l := New(nil)
	e, err := l.Hash(HashText, []byte("srgb->lab"))
	require.NoError(t, err)
	assert.Nil(t, e.Entry(), "fresh entry is a miss")

	finalized := 0
	payload := newItem(nil, "transform")
	payload.finalized = &finalized
	e.SetEntry(payload)

	again, err := l.Hash(HashText, []byte("srgb->lab"))
	require.NoError(t, err)
	assert.Same(t, e, again)
	assert.Same(t, payload, again.Entry())
	assert.Equal(t, 1, l.Count())

	d := Digest([]byte("srgb->lab"))
	byDigest, err := l.Hash(HashDigest, d[:])
	require.NoError(t, err)
	assert.Same(t, e, byDigest)

	_, err = l.Hash(HashDigest, []byte("short"))
	assert.ErrorIs(t, err, ErrDigestWidth)

	_, ok := l.Lookup(HashText, []byte("other"))
	assert.False(t, ok)

	l.Clear()
	assert.Equal(t, 1, finalized)
	_, ok = l.Lookup(HashDigest, d[:])
	assert.False(t, ok)
}

func TestDigestFormatting(t *testing.T) {
	d := Digest([]byte("x"))
	s := FormatDigest(d)
	assert.Len(t, s, 64)
	back, err := ParseDigest(s)
	require.NoError(t, err)
	assert.Equal(t, d, back)

	_, err = ParseDigest("abcd")
	assert.ErrorIs(t, err, ErrDigestWidth)
	_, err = ParseDigest("zz")
	assert.Error(t, err)
}

func TestCopyFrom(t *testing.T) {
	src := New(nil)
	shared := newItem(nil, "shared")
	sharedRef := shared
	require.NoError(t, MoveIn(src, &shared, -1, 0))
	c := &copyable{}
	c.label = "deep"
	c.Init(object.KindCustom, nil)
	require.NoError(t, src.Insert(c, -1, 0))

	dst := New(nil)
	dst.CopyFrom(src)
	assert.Equal(t, []string{"shared", "deep'"}, labels(dst))
	assert.Equal(t, 2, sharedRef.Refs())
	assert.NotEqual(t, c.ID(), dst.At(1).ID())
	assert.Equal(t, -1, dst.Index(c))
	assert.Equal(t, 0, dst.Index(sharedRef))
}

func TestHashIndexSurvivesDuplicateEntries(t *testing.T) {
	src := New(nil)
	e, err := src.Hash(HashText, []byte("gray->srgb"))
	require.NoError(t, err)

	dst := New(nil)
	dst.CopyFrom(src)
	dst.CopyFrom(src)
	require.Equal(t, 2, dst.Count())

	require.NoError(t, dst.ReleaseAt(0))
	assert.Equal(t, 1, dst.Count())
	got, ok := dst.Lookup(HashText, []byte("gray->srgb"))
	require.True(t, ok, "remaining entry is still indexed")
	assert.Same(t, e, got)

	again, err := dst.Hash(HashText, []byte("gray->srgb"))
	require.NoError(t, err)
	assert.Same(t, e, again)
	assert.Equal(t, 1, dst.Count(), "no duplicate entry created")

	require.NoError(t, dst.ReleaseAt(0))
	_, ok = dst.Lookup(HashText, []byte("gray->srgb"))
	assert.False(t, ok)
}
