package future

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveThenWait(t *testing.T) {
	var f = New[int]()

	go f.Resolve(42, nil)

	var v, err = f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestThenBeforeResolve(t *testing.T) {
	var f = New[string]()
	var got string

	f.Then(func(v string, err error) {
		got = v
		require.NoError(t, err)
	})
	assert.Empty(t, got)

	f.Resolve("hello", nil)
	assert.Equal(t, "hello", got)
}

func TestThenAfterResolve(t *testing.T) {
	var f = Resolved(7, nil)

	var got int
	f.Then(func(v int, err error) { got = v })
	assert.Equal(t, 7, got)
}

func TestResolveTwicePanics(t *testing.T) {
	var f = New[int]()
	f.Resolve(1, nil)

	assert.Panics(t, func() { f.Resolve(2, nil) })
}

func TestErrPropagates(t *testing.T) {
	var sentinel = errors.New("boom")
	var f = Resolved(0, sentinel)

	assert.Equal(t, sentinel, f.Err())
}
