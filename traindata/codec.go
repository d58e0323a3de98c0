package traindata

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Codec is the pluggable byte transform applied to a blob before it is
// published and after it is fetched.
type Codec interface {
	// Encode transforms producer output into publishable bytes.
	Encode(data []byte) ([]byte, error)

	// Decode reverses Encode.
	Decode(data []byte) ([]byte, error)

	// Ext is the blob file extension this codec produces.
	Ext() string
}

// RawJSON publishes blobs unmodified.
type RawJSON struct{}

// Encode returns data unchanged.
func (RawJSON) Encode(data []byte) ([]byte, error) { return data, nil }

// Decode returns data unchanged.
func (RawJSON) Decode(data []byte) ([]byte, error) { return data, nil }

// Ext returns "json".
func (RawJSON) Ext() string { return "json" }

// GzipJSON gzip-compresses JSON blobs.
type GzipJSON struct{}

// Encode gzips data.
func (GzipJSON) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip blob: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip blob: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode gunzips data.
func (GzipJSON) Decode(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip blob: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gunzip blob: %w", err)
	}
	return out, nil
}

// Ext returns "json.gz".
func (GzipJSON) Ext() string { return "json.gz" }

// CodecFor maps a blob file extension to its codec.
func CodecFor(ext string) (Codec, error) {
	switch ext {
	case "json":
		return RawJSON{}, nil
	case "json.gz":
		return GzipJSON{}, nil
	default:
		return nil, fmt.Errorf("no codec for extension %q", ext)
	}
}
