package sgav2

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relictools/sga"
)

// buildTestArchive returns an archive mixing stored and compressed files
// across two drives.
func buildTestArchive() *Archive {
	arch := New("DowII_Retail")

	data := arch.NewDrive("data", "Data")
	textures := data.NewFolder("textures")
	textures.NewFile("ground.dds", bytes.Repeat([]byte("dirt"), 400), sga.StorageBufferCompress, FileMeta{})
	textures.NewFile("sky.dds", []byte("tiny"), sga.StorageStore, FileMeta{})
	unit := data.NewFolder("unit")
	unit.NewFolder("icons").NewFile("icon.png", []byte{0x89, 'P', 'N', 'G'}, sga.StorageStore, FileMeta{})
	data.NewFile("manifest.txt", bytes.Repeat([]byte("entry\n"), 64), sga.StorageStreamCompress, FileMeta{})

	attr := arch.NewDrive("attr", "Attributes")
	attr.NewFile("balance.lua", bytes.Repeat([]byte("x = 1\n"), 128), sga.StorageBufferCompress, FileMeta{})
	return arch
}

// writeTestArchive serializes arch and returns the stream bytes.
func writeTestArchive(t *testing.T, arch *Archive) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := Serializer{}.Write(&buf, arch)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n, "Write must report the bytes emitted")
	return buf.Bytes()
}

// collectFiles maps file paths to decompressed contents.
func collectFiles(t *testing.T, arch *Archive) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for f := range arch.WalkFiles() {
		data, err := f.Data()
		require.NoError(t, err, "read %s", f.Path())
		out[f.Path()] = data
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	orig := buildTestArchive()
	want := collectFiles(t, orig)
	stream := writeTestArchive(t, orig)

	got, err := Serializer{}.Read(bytes.NewReader(stream), false, true)
	require.NoError(t, err)

	assert.Equal(t, "DowII_Retail", got.Name)
	require.Len(t, got.Drives(), 2)
	assert.Equal(t, "data", got.Drives()[0].Alias())
	assert.Equal(t, "Data", got.Drives()[0].Name())
	assert.Equal(t, "attr", got.Drives()[1].Alias())

	assert.Equal(t, want, collectFiles(t, got))

	// Nesting survives: unit/icons/icon.png keeps its folder chain.
	data := got.Drives()[0]
	require.Len(t, data.Folders(), 2)
	assert.Equal(t, "textures", data.Folders()[0].Name())
	unit := data.Folders()[1]
	require.Len(t, unit.Folders(), 1)
	assert.Equal(t, "icons", unit.Folders()[0].Name())

	// Storage types survive the trip.
	for f := range got.WalkFiles() {
		if f.Path() == "data:/manifest.txt" {
			assert.Equal(t, sga.StorageStreamCompress, f.StorageType())
		}
	}
}

func TestRoundTripTwice(t *testing.T) {
	t.Parallel()

	orig := buildTestArchive()
	first := writeTestArchive(t, orig)

	decoded, err := Serializer{}.Read(bytes.NewReader(first), false, true)
	require.NoError(t, err)
	second := writeTestArchive(t, decoded)
	assert.Equal(t, first, second, "write-read-write must be stable")
}

func TestLazyEagerEquivalence(t *testing.T) {
	t.Parallel()

	stream := writeTestArchive(t, buildTestArchive())

	eager, err := Serializer{}.Read(bytes.NewReader(stream), false, true)
	require.NoError(t, err)
	lazy, err := Serializer{}.Read(bytes.NewReader(stream), true, true)
	require.NoError(t, err)

	assert.Equal(t, collectFiles(t, eager), collectFiles(t, lazy))
}

func TestScenarioWalkthrough(t *testing.T) {
	t.Parallel()

	arch := New("scenario")
	arch.NewDrive("data", "Data").
		NewFolder("textures").
		NewFile("a.dds", make([]byte, 100), sga.StorageStore, FileMeta{})
	stream := writeTestArchive(t, arch)

	got, err := Serializer{}.Read(bytes.NewReader(stream), false, true)
	require.NoError(t, err)

	var drives, folders, files int
	for e := range got.Walk() {
		switch e.Container.(type) {
		case *Drive:
			drives++
		case *Folder:
			folders++
		}
		files += len(e.Files)
	}
	assert.Equal(t, 1, drives)
	assert.Equal(t, 1, folders)
	require.Equal(t, 1, files)

	f := got.Drives()[0].Folders()[0].Files()[0]
	assert.Equal(t, "data:/textures/a.dds", f.Path())
	data, err := f.Data()
	require.NoError(t, err)
	assert.Len(t, data, 100)
}

func TestReadWithoutDecompress(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("compress me "), 100)
	arch := New("packed")
	arch.NewDrive("data", "Data").NewFile("big.bin", content, sga.StorageBufferCompress, FileMeta{})
	stream := writeTestArchive(t, arch)

	got, err := Serializer{}.Read(bytes.NewReader(stream), false, false)
	require.NoError(t, err)

	f := got.Drives()[0].Files()[0]
	require.True(t, f.IsCompressed(), "bytes must stay packed when decompress is off")
	packed, err := f.Data()
	require.NoError(t, err)
	assert.NotEqual(t, content, packed)

	require.NoError(t, f.Decompress())
	data, err := f.Data()
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestFileMetadataCRC(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("crc"), 50)
	arch := New("crc")
	arch.NewDrive("data", "Data").NewFile("f.bin", content, sga.StorageBufferCompress, FileMeta{})
	stream := writeTestArchive(t, arch)

	got, err := Serializer{}.Read(bytes.NewReader(stream), false, true)
	require.NoError(t, err)
	f := got.Drives()[0].Files()[0]
	assert.Equal(t, crc32.ChecksumIEEE(content), f.Metadata.CRC)
}

func TestArchiveMetadataDigests(t *testing.T) {
	t.Parallel()

	arch := buildTestArchive()
	stream := writeTestArchive(t, arch)

	got, err := Serializer{}.Read(bytes.NewReader(stream), false, true)
	require.NoError(t, err)
	assert.Equal(t, arch.Metadata, got.Metadata, "digests in the stream must match those computed on write")
	assert.NotEqual(t, [16]byte{}, got.Metadata.HeaderMD5)
	assert.NotEqual(t, [16]byte{}, got.Metadata.DataMD5)
}

func TestOpenRegistry(t *testing.T) {
	t.Parallel()

	stream := writeTestArchive(t, buildTestArchive())
	node, err := sga.Open(bytes.NewReader(stream), sga.WithLazy(true))
	require.NoError(t, err)
	assert.Equal(t, "DowII_Retail", node.ArchiveName())

	var n int
	for f := range node.WalkFiles() {
		data, err := f.Data()
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		n++
	}
	assert.Equal(t, 5, n)
}

func TestReadCorruption(t *testing.T) {
	t.Parallel()

	stream := writeTestArchive(t, buildTestArchive())

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte(nil), stream...)
		bad[0] = '!'
		_, err := Serializer{}.Read(bytes.NewReader(bad), false, true)
		assert.ErrorIs(t, err, sga.ErrCorruptArchive)
	})

	t.Run("unknown version", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte(nil), stream...)
		bad[8] = 99 // major version
		_, err := Serializer{}.Read(bytes.NewReader(bad), false, true)
		assert.ErrorIs(t, err, sga.ErrUnsupportedVersion)
	})

	t.Run("table of contents digest mismatch", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte(nil), stream...)
		bad[headerSize] ^= 0xff
		_, err := Serializer{}.Read(bytes.NewReader(bad), false, true)
		assert.ErrorIs(t, err, sga.ErrCorruptArchive)
	})

	t.Run("truncated header", func(t *testing.T) {
		t.Parallel()
		_, err := Serializer{}.Read(bytes.NewReader(stream[:50]), false, true)
		assert.Error(t, err)
	})

	t.Run("truncated data section", func(t *testing.T) {
		t.Parallel()
		// Keep the header and TOC but cut the payloads; eager read fails.
		cut := stream[:len(stream)-10]
		_, err := Serializer{}.Read(bytes.NewReader(cut), false, true)
		assert.Error(t, err)
	})
}

func TestEmptyArchive(t *testing.T) {
	t.Parallel()

	stream := writeTestArchive(t, New("empty"))
	got, err := Serializer{}.Read(bytes.NewReader(stream), false, true)
	require.NoError(t, err)
	assert.Equal(t, "empty", got.Name)
	assert.Empty(t, got.Drives())
}
