package cachepolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLRUThresholds(t *testing.T) {
	var p = NewLRU()
	assert.Equal(t, 0.2, p.PercentQueriesPruneAtOnce())
	assert.Equal(t, 1000, p.MaxPrunableQueriesToKeep())
	assert.False(t, p.ShouldPrune(DefaultMaxCacheSize, 500))
	assert.True(t, p.ShouldPrune(DefaultMaxCacheSize+1, 500))
	assert.True(t, p.ShouldPrune(0, 1001))
	assert.False(t, p.ShouldCheckSize(1000))
	assert.True(t, p.ShouldCheckSize(1001))
}

func TestCustomMaxSize(t *testing.T) {
	var p = &LRU{MaxSize: 100}
	assert.False(t, p.ShouldPrune(100, 0))
	assert.True(t, p.ShouldPrune(101, 0))
}
