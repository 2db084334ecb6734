package logring

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBeforeWrap(t *testing.T) {
	var r Ring
	assert.Nil(t, r.Tail(10))

	r.Append("a")
	r.Append("b")
	r.Append("c")
	assert.Equal(t, []string{"b", "c"}, r.Tail(2))
	assert.Equal(t, []string{"a", "b", "c"}, r.Tail(0))
	assert.Equal(t, []string{"a", "b", "c"}, r.Tail(100))
}

func TestTailAfterWrap(t *testing.T) {
	var r Ring
	for i := range Capacity + 3 {
		r.Append(strconv.Itoa(i))
	}
	all := r.Tail(0)
	assert.Len(t, all, Capacity)
	assert.Equal(t, "3", all[0])
	assert.Equal(t, strconv.Itoa(Capacity+2), all[Capacity-1])
	assert.Equal(t, []string{strconv.Itoa(Capacity + 1), strconv.Itoa(Capacity + 2)}, r.Tail(2))
}

func TestReset(t *testing.T) {
	var r Ring
	r.Append("x")
	r.Reset()
	assert.Nil(t, r.Tail(0))
}

func TestManager(t *testing.T) {
	m := NewManager()
	_, ok := m.Lookup(4)
	assert.False(t, ok)

	m.Get(4).Append("line")
	r, ok := m.Lookup(4)
	assert.True(t, ok)
	assert.Same(t, m.Get(4), r)
	assert.Equal(t, []string{"line"}, r.Tail(1))
}
