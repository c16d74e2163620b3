// Package sgav2 implements the version 2.0 on-disk layout of the SGA
// container format.
//
// A v2 stream is a fixed header, a table of contents (drive, folder, and
// file descriptor tables plus a name buffer), and a data section holding
// file payloads either stored raw or zlib-compressed. Two MD5 digests in
// the header cover the table of contents and the data section.
//
// Importing the package registers the codec, so callers that dispatch by
// version only need a blank import:
//
//	import _ "github.com/relictools/sga/sgav2"
package sgav2

import (
	"io"

	"github.com/relictools/sga"
)

// Version is the on-disk revision this package implements.
var Version = sga.Version{Major: 2, Minor: 0}

// ArchiveMeta is the v2 archive metadata: the header digests as read from
// (or computed for) the stream.
type ArchiveMeta struct {
	// HeaderMD5 covers the table of contents.
	HeaderMD5 [16]byte

	// DataMD5 covers the data section.
	DataMD5 [16]byte
}

// FileMeta is the v2 per-file metadata.
type FileMeta struct {
	// CRC is the CRC-32 (IEEE) of the file's uncompressed content, as
	// recorded in the file's descriptor. It is carried, not verified.
	CRC uint32
}

// Concrete entity types for this revision.
type (
	Archive = sga.Archive[ArchiveMeta, FileMeta]
	Drive   = sga.Drive[FileMeta]
	Folder  = sga.Folder[FileMeta]
	File    = sga.File[FileMeta]
)

// New creates an empty v2 archive.
func New(name string) *Archive {
	return sga.New[ArchiveMeta, FileMeta](name, ArchiveMeta{})
}

// Serializer reads and writes the v2 layout.
type Serializer struct{}

// Interface compliance.
var _ sga.Serializer[*Archive] = Serializer{}

// API returns the composition of the v2 version tag and serializer.
func API() sga.API[*Archive] {
	return sga.API[*Archive]{Version: Version, Serializer: Serializer{}}
}

// Read parses a v2 archive from the stream; see sga.Serializer.
func (Serializer) Read(rs io.ReadSeeker, lazy, decompress bool) (*Archive, error) {
	return readArchive(rs, lazy, decompress)
}

// Write serializes a v2 archive; see sga.Serializer.
func (Serializer) Write(w io.Writer, archive *Archive) (int64, error) {
	return writeArchive(w, archive)
}

func init() {
	sga.Register(Version, func(rs io.ReadSeeker, lazy, decompress bool) (sga.ArchiveNode, error) {
		return readArchive(rs, lazy, decompress)
	})
}
