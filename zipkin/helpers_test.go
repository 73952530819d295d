package zipkin

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"
)

const (
	legacyAPIKey = "a0b1c2d3e4f5a6b7c8d9e0f1a2b3c4d5"
	apiKey       = "abc123DEF456ghi789jklm"
)

// Encode a slice of bytes destined to be the body of an HTTP request
// to a target encoding.
func encodeBody(body []byte, encoding string) ([]byte, error) {
	encodedBytes := new(bytes.Buffer)
	switch encoding {
	case "":
		encodedBytes.Write(body)
	case "gzip":
		w := gzip.NewWriter(encodedBytes)
		w.Write(body)
		w.Close()
	case "zstd":
		w, _ := zstd.NewWriter(encodedBytes)
		w.Write(body)
		w.Close()
	default:
		return nil, errors.New("Unknown content-encoding '" + encoding + "' given for test case. This probably won't go well.")
	}
	return encodedBytes.Bytes(), nil
}

// Return a friendlier string for the test cases where Content Encoding
// is ambiguous, e.g. no encoding given is blank, so we give it a
// meaningful name here.
func testCaseNameForEncoding(encoding string) string {
	if encoding == "" {
		return "no encoding given assume uncompressed"
	}
	return encoding
}

func bodyReader(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}

func decodeMsgpAttributes(t *testing.T, b []byte) map[string]any {
	t.Helper()
	attrs, rest, err := msgp.ReadMapStrIntfBytes(b, nil)
	require.NoError(t, err)
	require.Empty(t, rest)
	return attrs
}
