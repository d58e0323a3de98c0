package traindata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzipJSON_RoundTrip(t *testing.T) {
	payload := []byte(`[{"trainNo":"C7001"},{"trainNo":"C7003"}]`)

	encoded, err := GzipJSON{}.Encode(payload)
	require.NoError(t, err)
	assert.NotEqual(t, payload, encoded)

	decoded, err := GzipJSON{}.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestGzipJSON_DecodeGarbage(t *testing.T) {
	_, err := GzipJSON{}.Decode([]byte("not gzip"))
	require.Error(t, err)
}

func TestRawJSON_PassesThrough(t *testing.T) {
	payload := []byte(`{"a":1}`)

	encoded, err := RawJSON{}.Encode(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, encoded)

	decoded, err := RawJSON{}.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestCodecFor(t *testing.T) {
	tests := []struct {
		ext     string
		wantErr bool
	}{
		{ext: "json"},
		{ext: "json.gz"},
		{ext: "csv", wantErr: true},
		{ext: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("ext_"+tt.ext, func(t *testing.T) {
			codec, err := CodecFor(tt.ext)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ext, codec.Ext())
		})
	}
}
