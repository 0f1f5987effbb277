package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counted struct {
	shares  int
	drops   int
	dupes   int
	payload string
}

func (c *counted) Share() StructRef     { c.shares++; return c }
func (c *counted) Duplicate() StructRef { c.dupes++; return &counted{payload: c.payload} }
func (c *counted) Drop()                { c.drops++ }
func (c *counted) TypeName() string     { return "counted" }

func allKinds() []Value {
	return []Value{
		Int(7),
		Ints(1, 2, 3),
		Float(2.5),
		Doubles(0.25, 0.5),
		Str("sRGB"),
		Strs("a", "b"),
		Ref(&counted{payload: "p"}),
	}
}

func TestCopyThenEqual(t *testing.T) {
	for _, src := range allKinds() {
		src := src
		t.Run(src.Kind().String(), func(t *testing.T) {
			var dst Value
			Copy(&dst, &src)
			assert.True(t, Equal(&src, &dst, -1))
			assert.Equal(t, src.Kind(), dst.Kind())
			assert.Equal(t, src.Len(), dst.Len())
		})
	}
}

func TestCopyDeepCopiesLists(t *testing.T) {
	src := Ints(1, 2)
	var dst Value
	Copy(&dst, &src)
	require.True(t, dst.SetIntAt(0, 9))

	i, ok := src.IntAt(0)
	require.True(t, ok)
	assert.Equal(t, int32(1), i)
}

func TestCopySharesStructs(t *testing.T) {
	c := &counted{}
	src := Ref(c)
	var dst Value
	Copy(&dst, &src)
	assert.Equal(t, 1, c.shares)
	assert.Same(t, c, dst.Struct())

	var dup Value
	Duplicate(&dup, &src)
	assert.Equal(t, 1, c.dupes)
	assert.NotSame(t, c, dup.Struct())
}

func TestCopyClearsDestinationFirst(t *testing.T) {
	old := &counted{}
	dst := Ref(old)
	src := Str("x")
	Copy(&dst, &src)
	assert.Equal(t, 1, old.drops)
	assert.Equal(t, String, dst.Kind())
}

func TestClearIsIdempotent(t *testing.T) {
	c := &counted{}
	v := Ref(c)
	Clear(&v)
	Clear(&v)
	assert.Equal(t, 1, c.drops)
	assert.Equal(t, None, v.Kind())

	p := &Value{}
	*p = Ints(1)
	Release(&p)
	assert.Nil(t, p)
	Release(&p)
}

func TestEqualPositions(t *testing.T) {
	a := Doubles(1, 2, 3)
	b := Doubles(1, 5)
	assert.False(t, Equal(&a, &b, -1))
	assert.True(t, Equal(&a, &b, 0))
	assert.False(t, Equal(&a, &b, 1))
	assert.False(t, Equal(&a, &b, 2), "slot out of range on one side")

	s := Float(1)
	assert.True(t, Equal(&a, &s, 0), "scalar compares with list slot")

	i := Int(1)
	assert.False(t, Equal(&i, &s, -1), "different base kinds")
}

func TestSetAtPromotesScalar(t *testing.T) {
	v := Float(2)
	assert.False(t, v.SetDoubleAt(0, 2), "same value is not a change")
	assert.True(t, v.SetDoubleAt(2, 4))
	assert.Equal(t, DoubleList, v.Kind())
	assert.Equal(t, []float64{2, 0, 4}, v.Float64s())

	w := Str("x")
	assert.True(t, w.SetIntAt(1, 3))
	assert.Equal(t, Int32List, w.Kind())
	assert.Equal(t, []int32{0, 3}, w.Int32s())

	assert.False(t, w.SetIntAt(-1, 3))
}

func TestAccessorsConvert(t *testing.T) {
	v := Str("2.0")
	d, ok := v.DoubleAt(0)
	require.True(t, ok)
	assert.Equal(t, 2.0, d)

	i, ok := v.IntAt(0)
	require.True(t, ok)
	assert.Equal(t, int32(2), i)

	n := Int(3)
	s, ok := n.StringAt(0)
	require.True(t, ok)
	assert.Equal(t, "3", s)

	_, ok = n.StringAt(1)
	assert.False(t, ok)
}

func TestLiteralRoundTrip(t *testing.T) {
	cases := []Value{
		Int(-4),
		Ints(1, 2),
		Float(2),
		Doubles(0.5, 3),
		Str("hello \"world\""),
		Strs("x", "2"),
	}
	for _, v := range cases {
		v := v
		lit := v.Literal()
		got, err := ParseLiteral(lit)
		require.NoError(t, err, lit)
		assert.True(t, Equal(&v, &got, -1), "literal %s", lit)
		assert.Equal(t, v.Kind(), got.Kind(), "literal %s", lit)
	}
}

func TestFormatDoubleKeepsDecimalPoint(t *testing.T) {
	assert.Equal(t, "2.0", FormatDouble(2))
	assert.Equal(t, "0.25", FormatDouble(0.25))
	assert.Equal(t, "1e+21", FormatDouble(1e21))
}

func TestParseLiteralBareWord(t *testing.T) {
	v, err := ParseLiteral("perceptual")
	require.NoError(t, err)
	assert.Equal(t, String, v.Kind())
	s, _ := v.StringAt(0)
	assert.Equal(t, "perceptual", s)
}

func TestInferScalar(t *testing.T) {
	assert.Equal(t, Int32, InferScalar("12").Kind())
	assert.Equal(t, Double, InferScalar("1.5").Kind())
	assert.Equal(t, String, InferScalar("inf").Kind())
	assert.Equal(t, String, InferScalar("RGB ").Kind())
}

func TestAppendUnifiesKinds(t *testing.T) {
	var v Value
	Append(&v, Int(1))
	Append(&v, Int(2))
	assert.Equal(t, Int32List, v.Kind())
	Append(&v, Float(2.5))
	assert.Equal(t, DoubleList, v.Kind())
	assert.Equal(t, []float64{1, 2, 2.5}, v.Float64s())
	Append(&v, Str("x"))
	assert.Equal(t, []string{"1.0", "2.0", "2.5", "x"}, v.Strings())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "double-list", TypeName(DoubleList))
	assert.Equal(t, "kind(42)", TypeName(Kind(42)))
}

func TestAccessorsOnReturnedValues(t *testing.T) {
	assert.Equal(t, Double, Float(1.5).Kind())
	assert.Equal(t, 3, Doubles(1, 2, 3).Len())
	assert.Equal(t, "2.0", Float(2).Literal())
	s, ok := Ints(4, 5).StringAt(1)
	require.True(t, ok)
	assert.Equal(t, "5", s)
	d, ok := Str("0.5").DoubleAt(0)
	require.True(t, ok)
	assert.Equal(t, 0.5, d)
}
