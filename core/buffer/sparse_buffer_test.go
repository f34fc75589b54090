package buffer

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/infinitygrid/core/span"
)

// --- Test Helpers ---

func seq(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// checkCounts verifies the cached present counters against the bitmaps.
func checkCounts[T any](t *testing.T, b *SparseBuffer[T]) {
	t.Helper()
	total := 0
	for idx, p := range b.pages {
		require.Equal(t, p.popcount(), p.count, "page %d count drifted", idx)
		total += p.count
	}
	require.Equal(t, total, b.PresentCount())
}

// --- Test Cases ---

func TestSparseBuffer_NewIsUnsized(t *testing.T) {
	b := New[string](0)
	require.False(t, b.Sized())
	require.Equal(t, 0, b.Len())
	require.False(t, b.IsFilled(span.New(0, 0)), "an unsized buffer must not report cached data")
}

func TestSparseBuffer_WriteReadRoundTrip(t *testing.T) {
	b := New[int](16)
	require.NoError(t, b.Resize(100))

	values := seq(1000, 40)
	require.NoError(t, b.Write(10, values))

	for i, want := range values {
		got, ok := b.Get(10 + i)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := b.Get(9)
	require.False(t, ok)
	_, ok = b.Get(50)
	require.False(t, ok)

	require.Equal(t, 40, b.PresentCount())
	checkCounts(t, b)
}

func TestSparseBuffer_WriteOutOfBounds(t *testing.T) {
	b := New[int](8)
	require.NoError(t, b.Resize(10))

	err := b.Write(-1, []int{1})
	require.True(t, errors.Is(err, ErrRange))

	err = b.Write(8, []int{1, 2, 3})
	require.True(t, errors.Is(err, ErrRange))
	require.Equal(t, 0, b.PresentCount(), "a rejected write must not be partially applied")

	require.NoError(t, b.Write(7, []int{1, 2, 3}))
}

func TestSparseBuffer_WriteBeforeResize(t *testing.T) {
	b := New[int](8)
	require.ErrorIs(t, b.Write(0, []int{1}), ErrRange)
}

func TestSparseBuffer_ResizeNegative(t *testing.T) {
	b := New[int](8)
	require.ErrorIs(t, b.Resize(-1), ErrInvalidLength)
	require.False(t, b.Sized())
}

func TestSparseBuffer_IsFilled(t *testing.T) {
	b := New[int](8)
	require.NoError(t, b.Resize(50))
	require.NoError(t, b.Write(0, seq(0, 20)))

	require.True(t, b.IsFilled(span.New(0, 19)))
	require.True(t, b.IsFilled(span.New(5, 12)))
	require.False(t, b.IsFilled(span.New(0, 20)))
	require.False(t, b.IsFilled(span.New(30, 40)))

	// Ranges poking past the end only consider the in-bounds part.
	require.NoError(t, b.Write(20, seq(20, 30)))
	require.True(t, b.IsFilled(span.New(40, 120)))

	// Entirely beyond the length is vacuously filled.
	require.True(t, b.IsFilled(span.New(60, 70)))
}

func TestSparseBuffer_GrowPreservesValues(t *testing.T) {
	b := New[string](4)
	require.NoError(t, b.Resize(10))
	require.NoError(t, b.Write(2, []string{"a", "b", "c"}))

	require.NoError(t, b.Resize(1000))
	require.Equal(t, 1000, b.Len())

	v, ok := b.Get(3)
	require.True(t, ok)
	require.Equal(t, "b", v)
	require.True(t, b.IsFilled(span.New(2, 4)))
	require.False(t, b.IsFilled(span.New(2, 5)))
	checkCounts(t, b)
}

func TestSparseBuffer_ShrinkDiscards(t *testing.T) {
	b := New[int](8)
	require.NoError(t, b.Resize(40))
	require.NoError(t, b.Write(0, seq(0, 40)))
	require.Equal(t, 5, b.PageCount())

	require.NoError(t, b.Resize(13))
	require.Equal(t, 13, b.PresentCount())
	require.Equal(t, 2, b.PageCount())
	checkCounts(t, b)

	_, ok := b.Get(13)
	require.False(t, ok)

	// Growing back must not resurrect the truncated values.
	require.NoError(t, b.Resize(40))
	require.False(t, b.IsFilled(span.New(10, 14)))
	require.True(t, b.IsFilled(span.New(0, 12)))
	_, ok = b.Get(13)
	require.False(t, ok)
	checkCounts(t, b)
}

func TestSparseBuffer_ShrinkToZero(t *testing.T) {
	b := New[int](8)
	require.NoError(t, b.Resize(20))
	require.NoError(t, b.Write(0, seq(0, 20)))

	require.NoError(t, b.Resize(0))
	require.True(t, b.Sized())
	require.Equal(t, 0, b.PresentCount())
	require.Equal(t, 0, b.PageCount())
	require.True(t, b.IsFilled(span.New(0, 10)))
}

func TestSparseBuffer_Clear(t *testing.T) {
	b := New[int](8)
	require.NoError(t, b.Resize(20))
	require.NoError(t, b.Write(0, seq(0, 5)))

	b.Clear()
	require.False(t, b.Sized())
	require.Equal(t, 0, b.Len())
	require.Equal(t, 0, b.PresentCount())
	require.False(t, b.IsFilled(span.New(0, 1)))
}

// TestSparseBuffer_SubsetMonotonic checks that whenever a range is filled,
// every sub-range of it is filled as well.
func TestSparseBuffer_SubsetMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := New[int](16)
	require.NoError(t, b.Resize(500))

	for i := 0; i < 40; i++ {
		start := rng.Intn(480)
		n := rng.Intn(20) + 1
		require.NoError(t, b.Write(start, seq(start, n)))
	}

	for i := 0; i < 2000; i++ {
		outerStart := rng.Intn(520) - 10
		outer := span.New(outerStart, outerStart+rng.Intn(60))
		if !b.IsFilled(outer) {
			continue
		}
		innerStart := outer.Start + rng.Intn(outer.Len())
		inner := span.New(innerStart, innerStart+rng.Intn(outer.End-innerStart+1))
		require.True(t, b.IsFilled(inner), "outer %s filled but inner %s is not", outer, inner)
	}
	checkCounts(t, b)
}

func TestSparseBuffer_WholeWordFastPath(t *testing.T) {
	b := New[int](256)
	require.NoError(t, b.Resize(256))
	require.NoError(t, b.Write(0, seq(0, 255)))

	require.True(t, b.IsFilled(span.New(0, 254)))
	require.True(t, b.IsFilled(span.New(64, 191)))
	require.False(t, b.IsFilled(span.New(0, 255)))
}
