package treepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildAndParent(t *testing.T) {
	var p = Empty.Child("a").Child("b")
	assert.Equal(t, "/a/b", p.String())
	assert.Equal(t, "/a", p.Parent().String())
	assert.Equal(t, "/", p.Parent().Parent().Parent().String())
}

func TestFrontPopFront(t *testing.T) {
	var p = Parse("a/b/c")

	front, ok := p.Front()
	assert.True(t, ok)
	assert.Equal(t, "a", front)

	var rest = p.PopFront()
	assert.Equal(t, "/b/c", rest.String())
}

func TestFrontOfEmpty(t *testing.T) {
	var _, ok = Empty.Front()
	assert.False(t, ok)
}

func TestRelativeTo(t *testing.T) {
	var p = Parse("a/b/c")

	rel, ok := p.RelativeTo(Parse("a"))
	assert.True(t, ok)
	assert.Equal(t, "/b/c", rel.String())

	_, ok = p.RelativeTo(Parse("x"))
	assert.False(t, ok)

	rel, ok = p.RelativeTo(Empty)
	assert.True(t, ok)
	assert.True(t, rel.Equal(p))
}

func TestContains(t *testing.T) {
	assert.True(t, Parse("a").Contains(Parse("a/b")))
	assert.True(t, Parse("a").Contains(Parse("a")))
	assert.False(t, Parse("a/b").Contains(Parse("a")))
}

func TestCompareOrdering(t *testing.T) {
	assert.True(t, Parse("a").Compare(Parse("b")) < 0)
	assert.True(t, Parse("a").Compare(Parse("a/b")) < 0)
	assert.Equal(t, 0, Parse("a/b").Compare(Parse("a/b")))
}

func TestParseIgnoresDoubleSlashesAndEmpty(t *testing.T) {
	assert.True(t, Parse("").Equal(Empty))
	assert.True(t, Parse("/a//b/").Equal(Parse("a/b")))
}
