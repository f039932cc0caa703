package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArena(t *testing.T) {
	a := New[string]()

	foo := a.Add("foo")
	bar := a.Add("bar")

	require.Equal(t, Node(0), foo)
	require.Equal(t, Node(1), bar)
	require.Equal(t, 2, a.Len())
	require.Equal(t, "foo", a.Get(foo))
	require.Equal(t, "bar", a.Get(bar))

	*a.GetMut(bar) = "baz"
	require.Equal(t, "baz", a.Get(bar))
}

func TestArena_TakeReplace(t *testing.T) {
	a := New[[]int]()
	n := a.Add([]int{1, 2})

	v := a.Take(n)
	require.Equal(t, []int{1, 2}, v)
	require.True(t, a.IsTaken(n))

	require.PanicsWithValue(t, "arena: read of taken slot 0", func() { a.Get(n) })
	require.Panics(t, func() { a.Take(n) })

	a.Replace(n, append(v, 3))
	require.False(t, a.IsTaken(n))
	require.Equal(t, []int{1, 2, 3}, a.Get(n))
}

func TestArena_OutOfRange(t *testing.T) {
	a := New[int]()
	require.Panics(t, func() { a.Get(0) })
	require.Panics(t, func() { a.Replace(3, 1) })

	other := New[int]()
	other.Add(1)
	other.Add(2)
	n := other.Add(3)
	require.Panics(t, func() { a.Get(n) })
}

func TestArena_HandlesAreStable(t *testing.T) {
	a := WithCapacity[int](1)

	handles := make([]Node, 0, 100)
	for i := range 100 {
		handles = append(handles, a.Add(i))
	}
	for i, h := range handles {
		require.Equal(t, i, a.Get(h))
	}
}
