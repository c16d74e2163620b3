// Package deflate wraps zlib compression for file payloads. Decoders are
// pooled and reset between payloads to reduce allocation overhead.
package deflate

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// readerPool holds idle zlib readers. A zlib reader parses the stream header
// at construction, so the pool only ever holds readers built from a real
// payload; a nil Get falls back to NewReader.
var readerPool sync.Pool

// Compress deflates data into a fresh zlib buffer.
func Compress(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data) //nolint:errcheck // buffer writes never fail
	_ = zw.Close()        //nolint:errcheck // buffer writes never fail
	return buf.Bytes()
}

// Decompress inflates a zlib buffer. Truncated or malformed input returns
// an error; callers map it onto their own corruption condition.
func Decompress(data []byte) ([]byte, error) {
	src := bytes.NewReader(data)

	var zr io.ReadCloser
	if pooled, ok := readerPool.Get().(io.ReadCloser); ok {
		if err := pooled.(zlib.Resetter).Reset(src, nil); err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		zr = pooled
	} else {
		r, err := zlib.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		zr = r
	}

	out, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, fmt.Errorf("deflate: %w", err)
	}
	_ = zr.Close()
	readerPool.Put(zr)
	return out, nil
}
