package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestData(t *testing.T) {
	m, err := New("main", &owner{}, newStates(&recorder{}, "a")...)
	require.NoError(t, err)

	// Store is lazy
	assert.Nil(t, m.data)
	assert.False(t, m.HasData("score"))
	v, ok := m.Data("score")
	assert.Nil(t, v)
	assert.False(t, ok)

	require.NoError(t, m.SetData("score", 42))
	assert.True(t, m.HasData("score"))

	n, ok := DataAs[int](m, "score")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = DataAs[string](m, "score")
	assert.False(t, ok, "type mismatch yields false")

	assert.True(t, m.RemoveData("score"))
	assert.False(t, m.RemoveData("score"))

	assert.ErrorIs(t, m.SetData("", 1), ErrInvalidDataName)
	assert.Panics(t, func() { m.HasData("") })
	assert.Panics(t, func() { m.Data("") })
	assert.Panics(t, func() { m.RemoveData("") })
}
