package framing

import (
	"testing"

	"github.com/404minds/telematics-gateway/internal/ingesterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedAndAdvance(t *testing.T) {
	var r Reader
	require.NoError(t, r.Feed([]byte{1, 2, 3}))
	require.NoError(t, r.Feed([]byte{4, 5}))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, r.Bytes())

	r.Advance(2)
	assert.Equal(t, []byte{3, 4, 5}, r.Bytes())
	assert.Equal(t, 3, r.Len())

	r.Advance(100)
	assert.Equal(t, 0, r.Len())
}

func TestFeedZeroLengthIsNoop(t *testing.T) {
	var r Reader
	require.NoError(t, r.Feed([]byte{1}))
	require.NoError(t, r.Feed(nil))
	assert.Equal(t, 1, r.Len())
}

func TestFeedOverflow(t *testing.T) {
	var r Reader
	require.NoError(t, r.Feed(make([]byte, MaxBuffer)))
	err := r.Feed([]byte{1})
	assert.ErrorIs(t, err, ingesterr.ErrBufferOverflow)
}
