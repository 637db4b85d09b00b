package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, low, high int32) ShardRange {
	t.Helper()
	var h ShardKey
	if high < 0 {
		h = MaxKey(KindInt32)
	} else {
		h = NewInt32Key(high)
	}
	r, err := NewRange(NewInt32Key(low), h)
	require.NoError(t, err)
	return r
}

func TestNewRangeRejectsInvertedBounds(t *testing.T) {
	_, err := NewRange(NewInt32Key(10), NewInt32Key(5))
	assert.Error(t, err)
	_, err = NewRange(NewInt32Key(5), NewInt32Key(5))
	assert.Error(t, err)
}

func TestRangeContains(t *testing.T) {
	r := mustRange(t, 0, 100)
	assert.True(t, r.Contains(NewInt32Key(0)))
	assert.True(t, r.Contains(NewInt32Key(99)))
	assert.False(t, r.Contains(NewInt32Key(100)))
	assert.False(t, r.Contains(NewInt32Key(-1)))
}

func TestRangeIntersects(t *testing.T) {
	a := mustRange(t, 0, 100)
	b := mustRange(t, 50, 150)
	c := mustRange(t, 100, 200)
	assert.True(t, a.Intersects(b))
	assert.True(t, b.Intersects(a))
	assert.False(t, a.Intersects(c), "half-open ranges sharing only a boundary do not intersect")
}

func TestRangeSplit(t *testing.T) {
	r := mustRange(t, 0, 100)
	left, right, err := r.Split(NewInt32Key(50))
	require.NoError(t, err)
	assert.Equal(t, mustRange(t, 0, 50), left)
	assert.Equal(t, mustRange(t, 50, 100), right)
	assert.True(t, left.Adjacent(right))

	_, _, err = r.Split(NewInt32Key(0))
	assert.Error(t, err, "split point equal to low bound is not strictly inside")
	_, _, err = r.Split(NewInt32Key(100))
	assert.Error(t, err, "split point equal to high bound is not strictly inside")
}

func TestRangeAdjacentAndMerge(t *testing.T) {
	a := mustRange(t, 0, 50)
	b := mustRange(t, 50, 100)
	c := mustRange(t, 51, 100)
	assert.True(t, a.Adjacent(b))
	assert.False(t, a.Adjacent(c))
}

func TestOpenEndedRangeToInfinity(t *testing.T) {
	r := mustRange(t, 100, -1)
	assert.True(t, r.Contains(NewInt32Key(1<<30)))
	assert.False(t, r.Contains(NewInt32Key(99)))
}
