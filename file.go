package sga

import (
	"fmt"
	"io"

	"github.com/relictools/sga/internal/deflate"
)

// FileNode is the version-erased view of a file, sufficient for tooling
// that extracts archives of any revision.
type FileNode interface {
	Node
	Data() ([]byte, error)
	StorageType() StorageType
	IsCompressed() bool
}

// LazyInfo is a deferred-read descriptor: where a file's bytes live in the
// source stream and how to materialize them.
//
// The descriptor does not own the stream. The stream must stay open until
// every file backed by it has materialized, and interleaved readers of one
// stream handle require external serialization; Read restores the stream
// position it found but its seek/read/restore sequence is not atomic.
type LazyInfo struct {
	// Source is the stream the archive was read from.
	Source io.ReadSeeker

	// Offset is the absolute byte offset of the packed data.
	Offset int64

	// PackedSize is the byte count stored in the stream.
	PackedSize uint32

	// UnpackedSize is the byte count after decompression. Equal to
	// PackedSize for stored data.
	UnpackedSize uint32

	// Decompress is the default policy applied by Read.
	Decompress bool
}

// Read materializes the deferred bytes using the descriptor's default
// decompress policy.
func (li LazyInfo) Read() ([]byte, error) {
	return li.ReadMode(li.Decompress)
}

// ReadMode materializes the deferred bytes with an explicit decompress
// policy. Decompression only happens when requested and the packed and
// unpacked sizes differ. A decompressed payload whose length does not match
// UnpackedSize is reported as ErrCorruptArchive.
func (li LazyInfo) ReadMode(decompress bool) ([]byte, error) {
	jumpBack, err := li.Source.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("sga: lazy read: %w", err)
	}
	buf, err := li.readPacked()
	if restoreErr := restorePos(li.Source, jumpBack); restoreErr != nil && err == nil {
		err = restoreErr
	}
	if err != nil {
		return nil, err
	}
	if decompress && li.PackedSize != li.UnpackedSize {
		buf, err = deflate.Decompress(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		if uint32(len(buf)) != li.UnpackedSize {
			return nil, fmt.Errorf("%w: decompressed %d bytes, expected %d",
				ErrCorruptArchive, len(buf), li.UnpackedSize)
		}
	}
	return buf, nil
}

func (li LazyInfo) readPacked() ([]byte, error) {
	if _, err := li.Source.Seek(li.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("sga: lazy read: seek %d: %w", li.Offset, err)
	}
	buf := make([]byte, li.PackedSize)
	if _, err := io.ReadFull(li.Source, buf); err != nil {
		return nil, fmt.Errorf("sga: lazy read: %w", err)
	}
	return buf, nil
}

func restorePos(s io.Seeker, pos int64) error {
	if _, err := s.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("sga: lazy read: restore position: %w", err)
	}
	return nil
}

// File is a leaf node holding data. Its bytes are either materialized in
// memory or still deferred behind a LazyInfo descriptor; the first Data call
// consumes the descriptor permanently.
type File[F any] struct {
	// Metadata holds version-specific file metadata.
	Metadata F

	name       string
	parent     Node
	data       []byte
	lazy       *LazyInfo
	storage    StorageType
	compressed bool
}

// Interface compliance.
var _ FileNode = (*File[struct{}])(nil)

func newFile[F any](name string, data []byte, storage StorageType, metadata F, parent Node) *File[F] {
	return &File[F]{
		Metadata: metadata,
		name:     name,
		parent:   parent,
		data:     data,
		storage:  storage,
	}
}

func newLazyFile[F any](name string, storage StorageType, metadata F, parent Node, info LazyInfo) *File[F] {
	return &File[F]{
		Metadata: metadata,
		name:     name,
		parent:   parent,
		lazy:     &info,
		storage:  storage,
		// A descriptor that will not decompress leaves compressed bytes in
		// memory once materialized.
		compressed: !info.Decompress && info.PackedSize != info.UnpackedSize,
	}
}

// Name returns the file's own name, without ancestry.
func (f *File[F]) Name() string { return f.name }

// Path joins the parent's path with the file's name.
func (f *File[F]) Path() string { return joinPath(f.parent, f.name) }

// PortablePath is Path with the drive colon stripped, usable as a relative
// filesystem path.
func (f *File[F]) PortablePath() string { return portable(f.Path()) }

// Parent returns the owning drive or folder.
func (f *File[F]) Parent() Node { return f.parent }

// StorageType returns the file's on-disk representation tag. It reflects how
// the file was (or will be) stored, independent of the current in-memory
// compression state.
func (f *File[F]) StorageType() StorageType { return f.storage }

// SetStorageType changes how the file will be stored on the next write.
func (f *File[F]) SetStorageType(s StorageType) { f.storage = s }

// IsCompressed reports whether the in-memory bytes are currently
// DEFLATE-compressed. For a lazy file it reports the state the bytes will
// have once materialized.
func (f *File[F]) IsCompressed() bool { return f.compressed }

// Data returns the file's bytes, materializing them on first access.
//
// When the file is still lazy, the descriptor is read with its default
// decompress policy, the result becomes the file's buffer, and the
// descriptor is discarded; this transition fires once and is irreversible.
// A file constructed with neither bytes nor a descriptor returns
// ErrDataNotLoaded.
func (f *File[F]) Data() ([]byte, error) {
	if f.data == nil {
		if f.lazy == nil {
			return nil, fmt.Errorf("%w: %s", ErrDataNotLoaded, f.name)
		}
		buf, err := f.lazy.Read()
		if err != nil {
			return nil, err
		}
		f.data = buf
		f.lazy = nil
	}
	return f.data, nil
}

// SetData replaces the file's buffer, discarding any unread descriptor. The
// compressed flag is not touched; callers supplying compressed bytes are
// responsible for keeping the flag consistent.
func (f *File[F]) SetData(data []byte) {
	f.data = data
	f.lazy = nil
}

// Compress deflates the in-memory bytes and marks them compressed. Calling
// it on already-compressed data is a no-op.
func (f *File[F]) Compress() error {
	if f.compressed {
		return nil
	}
	data, err := f.Data()
	if err != nil {
		return err
	}
	f.data = deflate.Compress(data)
	f.compressed = true
	return nil
}

// Decompress inflates the in-memory bytes and clears the compressed flag.
// Calling it on uncompressed data is a no-op.
func (f *File[F]) Decompress() error {
	if !f.compressed {
		return nil
	}
	data, err := f.Data()
	if err != nil {
		return err
	}
	raw, err := deflate.Decompress(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, f.name, err)
	}
	f.data = raw
	f.compressed = false
	return nil
}

// Open returns a seekable in-memory view over the file's current data,
// materializing it first if needed.
//
// A read-only view never writes back. A mutable view commits its full
// contents into the file's buffer when closed, whatever the exit path, so
// callers should defer Close immediately after a successful Open. The view
// holds a copy; the file is untouched until commit.
func (f *File[F]) Open(readOnly bool) (*DataView, error) {
	data, err := f.Data()
	if err != nil {
		return nil, err
	}
	v := &DataView{buf: append([]byte(nil), data...)}
	if !readOnly {
		v.commit = f.SetData
	}
	return v, nil
}

// DataView is a seekable byte stream over a file's data, returned by
// File.Open. It implements io.ReadWriteSeeker and io.Closer.
type DataView struct {
	buf    []byte
	pos    int64
	commit func([]byte)
	closed bool
}

// Interface compliance.
var _ io.ReadWriteSeeker = (*DataView)(nil)

// Read copies bytes from the current position.
func (v *DataView) Read(p []byte) (int, error) {
	if v.closed {
		return 0, fmt.Errorf("sga: read from closed data view")
	}
	if v.pos >= int64(len(v.buf)) {
		return 0, io.EOF
	}
	n := copy(p, v.buf[v.pos:])
	v.pos += int64(n)
	return n, nil
}

// Write copies bytes at the current position, growing the view as needed.
func (v *DataView) Write(p []byte) (int, error) {
	if v.closed {
		return 0, fmt.Errorf("sga: write to closed data view")
	}
	if need := v.pos + int64(len(p)); need > int64(len(v.buf)) {
		grown := make([]byte, need)
		copy(grown, v.buf)
		v.buf = grown
	}
	n := copy(v.buf[v.pos:], p)
	v.pos += int64(n)
	return n, nil
}

// Seek sets the position for the next Read or Write.
func (v *DataView) Seek(offset int64, whence int) (int64, error) {
	if v.closed {
		return 0, fmt.Errorf("sga: seek on closed data view")
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = v.pos + offset
	case io.SeekEnd:
		pos = int64(len(v.buf)) + offset
	default:
		return 0, fmt.Errorf("sga: seek: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("sga: seek: negative position %d", pos)
	}
	v.pos = pos
	return pos, nil
}

// Len returns the current size of the view's contents.
func (v *DataView) Len() int { return len(v.buf) }

// Close releases the view, committing its contents back into the file when
// the view was opened mutable. Close is idempotent.
func (v *DataView) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	if v.commit != nil {
		v.commit(v.buf)
		v.commit = nil
	}
	return nil
}
