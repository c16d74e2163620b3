// Package testutil provides in-memory stream helpers for tests.
package testutil

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// TrackingReadSeeker wraps an in-memory stream and records every seek, so
// tests can assert that deferred reads restore the position they found.
type TrackingReadSeeker struct {
	r     *bytes.Reader
	seeks []int64
}

// NewTrackingReadSeeker returns a stream backed by data.
func NewTrackingReadSeeker(data []byte) *TrackingReadSeeker {
	return &TrackingReadSeeker{r: bytes.NewReader(data)}
}

// Read implements io.Reader.
func (t *TrackingReadSeeker) Read(p []byte) (int, error) {
	return t.r.Read(p)
}

// Seek implements io.Seeker, recording the resulting absolute position.
func (t *TrackingReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := t.r.Seek(offset, whence)
	if err == nil {
		t.seeks = append(t.seeks, pos)
	}
	return pos, err
}

// Pos returns the current stream position.
func (t *TrackingReadSeeker) Pos() int64 {
	pos, err := t.r.Seek(0, io.SeekCurrent)
	if err != nil {
		panic(fmt.Sprintf("testutil: tell: %v", err))
	}
	return pos
}

// Seeks returns the absolute positions of all recorded seeks.
func (t *TrackingReadSeeker) Seeks() []int64 {
	return t.seeks
}

// Deflate zlib-compresses data, for building test payloads.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(data) //nolint:errcheck // buffer writes never fail
	_ = zw.Close()        //nolint:errcheck // buffer writes never fail
	return buf.Bytes()
}
