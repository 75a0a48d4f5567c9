package midibuf

import (
	"testing"

	"github.com/leandrodaf/notebridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(n byte) contracts.RawEvent {
	return contracts.RawEvent{Status: 144, Data1: n, Timestamp: uint32(n)}
}

func TestReadBounded(t *testing.T) {
	b := New(8)
	for i := byte(0); i < 5; i++ {
		require.True(t, b.Push(ev(i)))
	}

	got, err := b.Read(3)
	require.NoError(t, err)
	assert.Equal(t, []contracts.RawEvent{ev(0), ev(1), ev(2)}, got)

	got, err = b.Read(10)
	require.NoError(t, err)
	assert.Equal(t, []contracts.RawEvent{ev(3), ev(4)}, got)

	got, err = b.Read(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWrapAround(t *testing.T) {
	b := New(3)
	for round := byte(0); round < 4; round++ {
		require.True(t, b.Push(ev(round*2)))
		require.True(t, b.Push(ev(round*2+1)))
		got, err := b.Read(2)
		require.NoError(t, err)
		assert.Equal(t, []contracts.RawEvent{ev(round * 2), ev(round*2 + 1)}, got)
	}
}

func TestOverflow(t *testing.T) {
	b := New(2)
	require.True(t, b.Push(ev(1)))
	require.True(t, b.Push(ev(2)))
	assert.False(t, b.Push(ev(3)))
	assert.Equal(t, uint64(1), b.Dropped())

	_, err := b.Read(10)
	assert.ErrorIs(t, err, ErrBufferOverflow)
	assert.Equal(t, 2, b.Len())

	got, err := b.Read(10)
	require.NoError(t, err)
	assert.Equal(t, []contracts.RawEvent{ev(1), ev(2)}, got)
}
