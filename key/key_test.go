package key

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt32KindAndOrder(t *testing.T) {
	values := []int32{-2147483648, -1000, -1, 0, 1, 1000, 2147483647}
	var prev *ShardKey
	for _, v := range values {
		k := NewInt32Key(v)
		require.Equal(t, KindInt32, k.Kind())
		if prev != nil {
			assert.Equal(t, -1, prev.Compare(k), "expected %d < %d", *prev, v)
		}
		cp := k
		prev = &cp
	}
}

func TestInt64EncodingIsOrderPreserving(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	vals := make([]int64, 200)
	for i := range vals {
		vals[i] = r.Int63() - (1 << 62)
	}
	for i := 0; i < len(vals); i++ {
		for j := 0; j < len(vals); j++ {
			ki, kj := NewInt64Key(vals[i]), NewInt64Key(vals[j])
			want := 0
			if vals[i] < vals[j] {
				want = -1
			} else if vals[i] > vals[j] {
				want = 1
			}
			assert.Equal(t, want, ki.Compare(kj))
		}
	}
}

func TestMaxKeyGreaterThanEveryFiniteKey(t *testing.T) {
	max := MaxKey(KindInt32)
	for _, v := range []int32{-2147483648, 0, 2147483647} {
		assert.Equal(t, 1, max.Compare(NewInt32Key(v)))
		assert.Equal(t, -1, NewInt32Key(v).Compare(max))
	}
	assert.Equal(t, 0, max.Compare(MaxKey(KindInt32)))
}

func TestBytesKeyEmptyIsDistinctFromMax(t *testing.T) {
	empty := NewBytesKey(nil)
	max := MaxKey(KindBytes)
	assert.False(t, empty.IsMax())
	assert.True(t, max.IsMax())
	assert.Equal(t, -1, empty.Compare(max))
	assert.NotNil(t, empty.Bytes())
	assert.Nil(t, max.Bytes())
}

func TestNextProducesImmediateSuccessor(t *testing.T) {
	k := NewInt32Key(41)
	n := k.Next()
	assert.Equal(t, -1, k.Compare(n))
	assert.Equal(t, NewInt32Key(42), n)
}

func TestNextAtMaxFiniteValueReturnsSentinel(t *testing.T) {
	k := NewInt32Key(2147483647)
	n := k.Next()
	assert.True(t, n.IsMax())
}

func TestDateTimeOrderingMatchesWallClock(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	assert.Equal(t, -1, NewDateTimeKey(t1).Compare(NewDateTimeKey(t2)))
}

func TestCompareAcrossKindsPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewInt32Key(1).Compare(NewInt64Key(1))
	})
}

func TestGUIDNextRolloverToSentinel(t *testing.T) {
	var allOnes [16]byte
	for i := range allOnes {
		allOnes[i] = 0xff
	}
	k := NewGUIDKey(allOnes)
	n := k.Next()
	assert.True(t, n.IsMax())
}
