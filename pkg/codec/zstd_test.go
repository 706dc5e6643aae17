package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw := []byte(`{"general":{"update_timestamp":"2025-01-01T00:00:00Z"},"controllers":[]}`)

	enc, err := Encode(raw)
	require.NoError(t, err)
	assert.Equal(t, AlgoZstd, enc.Algo)
	assert.Equal(t, len(raw), enc.OriginalSize)
	assert.NotEmpty(t, enc.Compressed)

	decoded, err := Decode(enc.Algo, enc.Compressed)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestDecodeUnknownAlgo(t *testing.T) {
	_, err := Decode("lz4", []byte("whatever"))
	require.Error(t, err)
}

func TestEncodeEmptyPayload(t *testing.T) {
	enc, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, enc.OriginalSize)

	decoded, err := Decode(enc.Algo, enc.Compressed)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
