package shortvec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for i := 0; i <= math.MaxUint16; i += 7 {
		encoded, err := AppendLen(nil, i)
		require.NoError(t, err)
		require.True(t, len(encoded) <= MaxEncodedSize)

		actual, err := DecodeLen(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, i, actual)
	}
}

func TestKnownEncodings(t *testing.T) {
	for _, tc := range []struct {
		val     int
		encoded []byte
	}{
		{0x0, []byte{0x0}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x80, 0x80, 0x01}},
		{0xffff, []byte{0xff, 0xff, 0x03}},
	} {
		var buf bytes.Buffer
		n, err := EncodeLen(&buf, tc.val)
		require.NoError(t, err)
		assert.Equal(t, len(tc.encoded), n)
		assert.Equal(t, tc.encoded, buf.Bytes())

		decoded, err := DecodeLen(bytes.NewReader(tc.encoded))
		require.NoError(t, err)
		assert.Equal(t, tc.val, decoded)
	}
}

func TestInvalid(t *testing.T) {
	_, err := AppendLen(nil, math.MaxUint16+1)
	assert.Equal(t, ErrLengthOverflow, err)

	_, err = AppendLen(nil, -1)
	assert.Error(t, err)

	for _, encoded := range [][]byte{
		{},
		{0x80},
		{0x80, 0x00},
		{0xff, 0xff, 0x04},
		{0x80, 0x80, 0x80, 0x01},
	} {
		_, err := DecodeLen(bytes.NewReader(encoded))
		assert.Error(t, err, "%x", encoded)
	}
}
