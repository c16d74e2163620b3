package sga

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"sync"
)

// Serializer is the read/write boundary implemented once per on-disk
// revision. A is the concrete archive type for that revision, typically an
// *Archive specialization.
//
// Read constructs the tree from the stream. With lazy true, file bytes stay
// deferred in the stream until first access, so the stream must outlive the
// archive's files; with lazy false every file materializes during the call.
// The decompress flag becomes the default policy of every file's deferred
// read and governs eager materialization the same way.
//
// Write serializes the archive into the revision's on-disk layout in a
// single synchronous pass and returns the number of bytes emitted.
type Serializer[A any] interface {
	Read(rs io.ReadSeeker, lazy, decompress bool) (A, error)
	Write(w io.Writer, archive A) (int64, error)
}

// API binds a version tag to its serializer. The entity model, paths, and
// walking stay version-agnostic; only the codec differs per revision.
type API[A any] struct {
	Version    Version
	Serializer Serializer[A]
}

// Read delegates to the bound serializer.
func (api API[A]) Read(rs io.ReadSeeker, lazy, decompress bool) (A, error) {
	return api.Serializer.Read(rs, lazy, decompress)
}

// Write delegates to the bound serializer.
func (api API[A]) Write(w io.Writer, archive A) (int64, error) {
	return api.Serializer.Write(w, archive)
}

// ArchiveNode is the version-erased view of an archive returned by Open.
// Tooling that handles any revision walks files through it.
type ArchiveNode interface {
	ArchiveName() string
	WalkFiles() iter.Seq[FileNode]
}

// ReadFunc reads an archive of one registered version and returns its
// erased view.
type ReadFunc func(rs io.ReadSeeker, lazy, decompress bool) (ArchiveNode, error)

var (
	codecsMu sync.RWMutex
	codecs   = map[Version]ReadFunc{}
)

// Register makes a codec available to Open. Codec packages call it from
// init, so importing a codec for side effects enables its version:
//
//	import _ "github.com/relictools/sga/sgav2"
func Register(v Version, read ReadFunc) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[v] = read
}

// PeekVersion reads the shared magic and version prefix without consuming
// the stream; the position is restored before returning. A wrong magic is
// reported as ErrCorruptArchive.
func PeekVersion(rs io.ReadSeeker) (Version, error) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return Version{}, fmt.Errorf("sga: peek version: %w", err)
	}
	var hdr struct {
		Magic [8]byte
		Major uint16
		Minor uint16
	}
	err = binary.Read(rs, binary.LittleEndian, &hdr)
	if restoreErr := restorePos(rs, pos); restoreErr != nil && err == nil {
		err = restoreErr
	}
	if err != nil {
		return Version{}, fmt.Errorf("sga: peek version: %w", err)
	}
	if string(hdr.Magic[:]) != Magic {
		return Version{}, fmt.Errorf("%w: bad magic %q", ErrCorruptArchive, hdr.Magic)
	}
	return Version{Major: hdr.Major, Minor: hdr.Minor}, nil
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	lazy       bool
	decompress bool
}

// WithLazy controls whether file bytes stay deferred in the stream
// (default: false, every file materializes during Open).
func WithLazy(lazy bool) OpenOption {
	return func(c *openConfig) {
		c.lazy = lazy
	}
}

// WithDecompress controls whether compressed storage is transparently
// decompressed on materialization (default: true).
func WithDecompress(decompress bool) OpenOption {
	return func(c *openConfig) {
		c.decompress = decompress
	}
}

// Open peeks the stream's version and dispatches to the registered codec.
// A version with no codec returns ErrUnsupportedVersion.
func Open(rs io.ReadSeeker, opts ...OpenOption) (ArchiveNode, error) {
	cfg := openConfig{decompress: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	v, err := PeekVersion(rs)
	if err != nil {
		return nil, err
	}

	codecsMu.RLock()
	read, ok := codecs[v]
	codecsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}
	return read(rs, cfg.lazy, cfg.decompress)
}

// ArchiveName returns the archive's display name, satisfying ArchiveNode.
func (a *Archive[M, F]) ArchiveName() string { return a.Name }

// Interface compliance.
var _ ArchiveNode = (*Archive[struct{}, struct{}])(nil)
