// Package sga models the SGA container-archive format: logical drives,
// nested folders, and files behind one version-agnostic object model.
//
// An archive is a tree:
//   - Archive: the parsed package, holding one or more drives
//   - Drive: a top-level named volume addressed by a short alias
//   - Folder / File: filesystem-like nodes; folders nest, files hold data
//
// File bytes stay unread in the source stream until first access, and a
// per-file compression state machine tracks whether the in-memory bytes are
// currently DEFLATE-compressed. Concrete on-disk revisions plug in behind
// the Serializer contract; the tree, path, and walk primitives are shared.
package sga

import (
	"errors"
	"fmt"
)

// Magic identifies an SGA stream. Every on-disk revision starts with these
// eight bytes followed by a little-endian major/minor version pair.
const Magic = "_ARCHIVE"

// Sentinel errors.
var (
	// ErrDataNotLoaded is returned when a file's data is accessed but the
	// file holds neither a buffer nor a lazy descriptor. This indicates a
	// construction error, not a corrupt archive.
	ErrDataNotLoaded = errors.New("sga: data not loaded")

	// ErrCorruptArchive is returned when the stream contradicts its own
	// metadata: a decompressed payload of the wrong length, an index range
	// outside its table, or a malformed header.
	ErrCorruptArchive = errors.New("sga: corrupt archive")

	// ErrUnsupportedVersion is returned when no codec is registered for the
	// version found in the stream.
	ErrUnsupportedVersion = errors.New("sga: unsupported version")
)

// StorageType describes a file's on-disk representation. It is fixed by the
// codec that read the file and does not change when the in-memory bytes are
// compressed or decompressed.
type StorageType uint8

const (
	// StorageStore marks data written as-is.
	StorageStore StorageType = 0

	// StorageBufferCompress marks data compressed as one DEFLATE buffer.
	StorageBufferCompress StorageType = 16

	// StorageStreamCompress marks data compressed for streaming reads.
	// The wire encoding matches StorageBufferCompress; readers that stream
	// may decompress incrementally.
	StorageStreamCompress StorageType = 32
)

func (s StorageType) String() string {
	switch s {
	case StorageStore:
		return "store"
	case StorageBufferCompress:
		return "buffer-compress"
	case StorageStreamCompress:
		return "stream-compress"
	default:
		return "unknown"
	}
}

// Compressed reports whether the storage type denotes DEFLATE-compressed
// on-disk data.
func (s StorageType) Compressed() bool {
	return s == StorageBufferCompress || s == StorageStreamCompress
}

// Version identifies an on-disk revision of the format.
type Version struct {
	Major uint16
	Minor uint16
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
}
