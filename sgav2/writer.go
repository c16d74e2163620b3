package sgav2

import (
	"bytes"
	"crypto/md5" //nolint:gosec // format-mandated digest, not used for security
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/relictools/sga"
	"github.com/relictools/sga/internal/deflate"
)

// parallelMinAvgBytes is the minimum average payload size to compress files
// in parallel. Below this the goroutine overhead outweighs the work.
const parallelMinAvgBytes = 64 << 10

func writeArchive(w io.Writer, archive *Archive) (int64, error) {
	layout, err := flatten(archive)
	if err != nil {
		return 0, err
	}
	if err := layout.prepareData(); err != nil {
		return 0, err
	}

	toc, err := layout.encodeTOC()
	if err != nil {
		return 0, err
	}

	nameField, err := encodeArchiveName(archive.Name)
	if err != nil {
		return 0, err
	}
	hdr := header{
		Major:      Version.Major,
		Minor:      Version.Minor,
		HeaderMD5:  md5.Sum(toc), //nolint:gosec // format-mandated digest
		Name:       nameField,
		TOCSize:    uint32(len(toc)),
		DataOffset: uint32(headerSize + len(toc)),
	}
	copy(hdr.Magic[:], sga.Magic)

	dataHash := md5.New() //nolint:gosec // format-mandated digest
	var dataSize uint64
	for _, p := range layout.payloads {
		dataHash.Write(p.stored)
		dataSize += uint64(len(p.stored))
	}
	if dataSize > math.MaxUint32 {
		return 0, fmt.Errorf("sgav2: data section of %d bytes exceeds format limit", dataSize)
	}
	hdr.DataSize = uint32(dataSize)
	copy(hdr.DataMD5[:], dataHash.Sum(nil))

	archive.Metadata = ArchiveMeta{HeaderMD5: hdr.HeaderMD5, DataMD5: hdr.DataMD5}

	cw := &countingWriter{w: w}
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return cw.n, fmt.Errorf("sgav2: write header: %w", err)
	}
	if _, err := cw.Write(toc); err != nil {
		return cw.n, fmt.Errorf("sgav2: write table of contents: %w", err)
	}
	for _, p := range layout.payloads {
		if _, err := cw.Write(p.stored); err != nil {
			return cw.n, fmt.Errorf("sgav2: write data: %w", err)
		}
	}
	return cw.n, nil
}

// payload is one file's data staged for the data section.
type payload struct {
	file   *File
	raw    []byte // uncompressed content
	stored []byte // bytes as written to the data section
	crc    uint32
}

// archiveLayout is the flattened tree: descriptor tables in their final
// on-disk order plus the staged payloads, one per file-table entry.
type archiveLayout struct {
	drives   []driveDef
	folders  []folderDef
	files    []fileDef
	payloads []*payload
	names    *nameBuffer
}

// flatten assigns every folder and file a slot in the flat tables. Each
// container's children occupy a contiguous block, so children are appended
// while visiting their parent and subfolders are then processed in table
// order; every folder def's ranges are filled before its children recurse
// further. Each drive contributes a root folder holding its direct children.
func flatten(archive *Archive) (*archiveLayout, error) {
	l := &archiveLayout{names: newNameBuffer()}

	for _, d := range archive.Drives() {
		alias, err := fixedString(d.Alias())
		if err != nil {
			return nil, err
		}
		name, err := fixedString(d.Name())
		if err != nil {
			return nil, err
		}

		rootIndex := len(l.folders)
		rootName, err := l.names.add("")
		if err != nil {
			return nil, err
		}
		l.folders = append(l.folders, folderDef{NameOffset: rootName})

		fileStart := len(l.files)
		// Children of folder i are appended while folders[i] is visited, so
		// the pending queue is just the tail of the folder table.
		children := []container{d}
		for i := rootIndex; i < len(l.folders); i++ {
			c := children[i-rootIndex]

			folderStart := len(l.folders)
			for _, sub := range c.Folders() {
				nameOff, err := l.names.add(sub.Name())
				if err != nil {
					return nil, err
				}
				l.folders = append(l.folders, folderDef{NameOffset: nameOff})
				children = append(children, sub)
			}
			l.folders[i].FolderStart = uint16(folderStart)
			l.folders[i].FolderEnd = uint16(len(l.folders))

			start := len(l.files)
			for _, f := range c.Files() {
				if err := l.addFile(f); err != nil {
					return nil, err
				}
			}
			l.folders[i].FileStart = uint16(start)
			l.folders[i].FileEnd = uint16(len(l.files))
		}

		l.drives = append(l.drives, driveDef{
			Alias:       alias,
			Name:        name,
			FolderStart: uint16(rootIndex),
			FolderEnd:   uint16(len(l.folders)),
			FileStart:   uint16(fileStart),
			FileEnd:     uint16(len(l.files)),
			RootFolder:  uint16(rootIndex),
		})
	}

	if len(l.folders) > math.MaxUint16 {
		return nil, fmt.Errorf("sgav2: %d folders exceeds format limit", len(l.folders))
	}
	if len(l.files) > math.MaxUint16 {
		return nil, fmt.Errorf("sgav2: %d files exceeds format limit", len(l.files))
	}
	return l, nil
}

// container is the subset of sga.Container needed while flattening.
type container interface {
	Folders() []*Folder
	Files() []*File
}

func (l *archiveLayout) addFile(f *File) error {
	nameOff, err := l.names.add(f.Name())
	if err != nil {
		return err
	}

	data, err := f.Data()
	if err != nil {
		return err
	}
	raw := data
	if f.IsCompressed() {
		// Stage from canonical uncompressed bytes so sizes and digests
		// refer to the same content regardless of in-memory state.
		raw, err = deflate.Decompress(data)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", sga.ErrCorruptArchive, f.Name(), err)
		}
	}

	l.files = append(l.files, fileDef{
		NameOffset: nameOff,
		Storage:    uint32(f.StorageType()),
	})
	l.payloads = append(l.payloads, &payload{file: f, raw: raw, crc: crc32.ChecksumIEEE(raw)})
	return nil
}

// prepareData compresses staged payloads and assigns data offsets. The
// per-file compression is independent CPU work, so large batches run
// through a bounded errgroup; the offset assignment pass stays serial.
func (l *archiveLayout) prepareData() error {
	var total int
	for _, p := range l.payloads {
		total += len(p.raw)
	}

	workers := runtime.GOMAXPROCS(0)
	if len(l.payloads) < 2 || total < parallelMinAvgBytes*len(l.payloads) {
		workers = 1
	}

	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, p := range l.payloads {
		eg.Go(func() error {
			if !l.files[i].shared().StorageType.Compressed() {
				p.stored = p.raw
				return nil
			}
			p.stored = deflate.Compress(p.raw)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var offset uint64
	for i, p := range l.payloads {
		// A compressed payload that happens to match its raw size would be
		// indistinguishable from stored data on read; keep it raw instead.
		if len(p.stored) == len(p.raw) {
			p.stored = p.raw
			l.files[i].Storage = uint32(sga.StorageStore)
		}
		if offset+uint64(len(p.stored)) > math.MaxUint32 {
			return fmt.Errorf("sgav2: data section exceeds format limit")
		}
		l.files[i].DataOffset = uint32(offset)
		l.files[i].PackedSize = uint32(len(p.stored))
		l.files[i].UnpackedSz = uint32(len(p.raw))
		l.files[i].CRC = p.crc
		offset += uint64(len(p.stored))

		p.file.Metadata = FileMeta{CRC: p.crc}
	}
	return nil
}

func (l *archiveLayout) encodeTOC() ([]byte, error) {
	th := tocHeader{
		DriveOffset:  tocHeaderSize,
		DriveCount:   uint16(len(l.drives)),
		FolderOffset: tocHeaderSize + uint32(len(l.drives)*driveDefSize),
		FolderCount:  uint16(len(l.folders)),
		NameSize:     uint32(l.names.buf.Len()),
	}
	th.FileOffset = th.FolderOffset + uint32(len(l.folders)*folderDefSize)
	th.FileCount = uint16(len(l.files))
	th.NameOffset = th.FileOffset + uint32(len(l.files)*fileDefSize)

	var buf bytes.Buffer
	for _, v := range []any{&th, l.drives, l.folders, l.files} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("sgav2: encode table of contents: %w", err)
		}
	}
	buf.Write(l.names.buf.Bytes())
	return buf.Bytes(), nil
}

// nameBuffer accumulates NUL-terminated names, deduplicating repeats.
type nameBuffer struct {
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newNameBuffer() *nameBuffer {
	return &nameBuffer{offsets: make(map[string]uint32)}
}

func (nb *nameBuffer) add(name string) (uint32, error) {
	if off, ok := nb.offsets[name]; ok {
		return off, nil
	}
	if nb.buf.Len()+len(name)+1 > math.MaxUint32 {
		return 0, fmt.Errorf("sgav2: name buffer exceeds format limit")
	}
	off := uint32(nb.buf.Len())
	nb.buf.WriteString(name)
	nb.buf.WriteByte(0)
	nb.offsets[name] = off
	return off, nil
}

// countingWriter tracks bytes written to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
