package sga

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relictools/sga/internal/testutil"
)

// versionPrefix builds the shared magic + version stream prefix.
func versionPrefix(t *testing.T, v Version) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(Magic)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, v.Major))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, v.Minor))
	return buf.Bytes()
}

func TestPeekVersion(t *testing.T) {
	t.Parallel()

	t.Run("valid prefix", func(t *testing.T) {
		t.Parallel()
		src := testutil.NewTrackingReadSeeker(versionPrefix(t, Version{Major: 9, Minor: 1}))
		v, err := PeekVersion(src)
		require.NoError(t, err)
		assert.Equal(t, Version{Major: 9, Minor: 1}, v)
		assert.Equal(t, int64(0), src.Pos(), "peek must not consume the stream")
	})

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()
		src := testutil.NewTrackingReadSeeker([]byte("_NOTSGA_\x02\x00\x00\x00"))
		_, err := PeekVersion(src)
		assert.ErrorIs(t, err, ErrCorruptArchive)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		src := testutil.NewTrackingReadSeeker([]byte("_ARCH"))
		_, err := PeekVersion(src)
		assert.Error(t, err)
	})
}

func TestOpenDispatch(t *testing.T) {
	t.Parallel()

	// Versions with major 60000+ are reserved for this test's fake codecs.
	registered := Version{Major: 60000}
	Register(registered, func(rs io.ReadSeeker, lazy, decompress bool) (ArchiveNode, error) {
		a := New[struct{}, struct{}]("fake", struct{}{})
		a.NewDrive("data", "Data").NewFile("f", []byte{1}, StorageStore, struct{}{})
		return a, nil
	})

	t.Run("dispatches to registered codec", func(t *testing.T) {
		t.Parallel()
		src := testutil.NewTrackingReadSeeker(versionPrefix(t, registered))
		node, err := Open(src)
		require.NoError(t, err)
		assert.Equal(t, "fake", node.ArchiveName())

		var n int
		for range node.WalkFiles() {
			n++
		}
		assert.Equal(t, 1, n)
	})

	t.Run("unregistered version", func(t *testing.T) {
		t.Parallel()
		src := testutil.NewTrackingReadSeeker(versionPrefix(t, Version{Major: 60001}))
		_, err := Open(src)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("options reach the codec", func(t *testing.T) {
		t.Parallel()
		var gotLazy, gotDecompress bool
		v := Version{Major: 60002}
		Register(v, func(rs io.ReadSeeker, lazy, decompress bool) (ArchiveNode, error) {
			gotLazy, gotDecompress = lazy, decompress
			return New[struct{}, struct{}]("opts", struct{}{}), nil
		})

		src := testutil.NewTrackingReadSeeker(versionPrefix(t, v))
		_, err := Open(src, WithLazy(true), WithDecompress(false))
		require.NoError(t, err)
		assert.True(t, gotLazy)
		assert.False(t, gotDecompress)
	})
}

func TestVersionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "v2.0", Version{Major: 2}.String())
	assert.Equal(t, "v5.1", Version{Major: 5, Minor: 1}.String())
}
