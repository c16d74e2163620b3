package sgav2

import (
	"bytes"
	"crypto/md5" //nolint:gosec // format-mandated digest, not used for security
	"encoding/binary"
	"fmt"
	"io"

	"github.com/relictools/sga"
)

func readArchive(rs io.ReadSeeker, lazy, decompress bool) (*Archive, error) {
	base, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("sgav2: read: %w", err)
	}

	var hdr header
	if err := binary.Read(rs, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("sgav2: read header: %w", err)
	}
	if string(hdr.Magic[:]) != sga.Magic {
		return nil, fmt.Errorf("%w: bad magic %q", sga.ErrCorruptArchive, hdr.Magic)
	}
	if v := (sga.Version{Major: hdr.Major, Minor: hdr.Minor}); v != Version {
		return nil, fmt.Errorf("%w: %s", sga.ErrUnsupportedVersion, v)
	}
	if hdr.DataOffset < headerSize || uint64(hdr.DataOffset) < headerSize+uint64(hdr.TOCSize) {
		return nil, fmt.Errorf("%w: data section overlaps table of contents", sga.ErrCorruptArchive)
	}

	toc := make([]byte, hdr.TOCSize)
	if _, err := io.ReadFull(rs, toc); err != nil {
		return nil, fmt.Errorf("sgav2: read table of contents: %w", err)
	}
	if sum := md5.Sum(toc); sum != hdr.HeaderMD5 { //nolint:gosec // format-mandated digest
		return nil, fmt.Errorf("%w: table of contents digest mismatch", sga.ErrCorruptArchive)
	}

	p, err := parseTOC(toc)
	if err != nil {
		return nil, err
	}

	archive := sga.New[ArchiveMeta, FileMeta](decodeArchiveName(hdr.Name), ArchiveMeta{
		HeaderMD5: hdr.HeaderMD5,
		DataMD5:   hdr.DataMD5,
	})

	dataStart := base + int64(hdr.DataOffset)
	newFile := func(parent sga.Container[FileMeta], index uint32, def sga.FileDef) error {
		if def.DataOffset+uint64(def.PackedSize) > uint64(hdr.DataSize) {
			return fmt.Errorf("%w: file %d data [%d,%d) exceeds data section of %d",
				sga.ErrCorruptArchive, index, def.DataOffset, def.DataOffset+uint64(def.PackedSize), hdr.DataSize)
		}
		name, err := p.name(def.NameOffset)
		if err != nil {
			return err
		}
		parent.NewLazyFile(name, def.StorageType, FileMeta{CRC: p.files[index].CRC}, sga.LazyInfo{
			Source:       rs,
			Offset:       dataStart + int64(def.DataOffset),
			PackedSize:   def.PackedSize,
			UnpackedSize: def.UnpackedSize,
			Decompress:   decompress,
		})
		return nil
	}

	folderDefs := make([]sga.FolderDef, len(p.folders))
	for i, fd := range p.folders {
		folderDefs[i] = fd.shared()
	}
	fileDefs := make([]sga.FileDef, len(p.files))
	for i, fd := range p.files {
		fileDefs[i] = fd.shared()
	}

	for _, dd := range p.drives {
		if _, err := sga.BuildDrive(archive, dd.shared(), folderDefs, fileDefs, p.name, newFile); err != nil {
			return nil, err
		}
	}

	if !lazy {
		for f := range archive.WalkFiles() {
			if _, err := f.Data(); err != nil {
				return nil, err
			}
		}
	}

	// Leave the stream positioned after the archive.
	if _, err := rs.Seek(dataStart+int64(hdr.DataSize), io.SeekStart); err != nil {
		return nil, fmt.Errorf("sgav2: read: %w", err)
	}
	return archive, nil
}

// parsedTOC holds the decoded descriptor tables and the name buffer.
type parsedTOC struct {
	drives  []driveDef
	folders []folderDef
	files   []fileDef
	names   []byte
}

func parseTOC(toc []byte) (*parsedTOC, error) {
	var th tocHeader
	if err := binary.Read(bytes.NewReader(toc), binary.LittleEndian, &th); err != nil {
		return nil, fmt.Errorf("%w: truncated table of contents", sga.ErrCorruptArchive)
	}

	p := &parsedTOC{
		drives:  make([]driveDef, th.DriveCount),
		folders: make([]folderDef, th.FolderCount),
		files:   make([]fileDef, th.FileCount),
	}
	if err := readTable(toc, th.DriveOffset, driveDefSize, p.drives, "drive"); err != nil {
		return nil, err
	}
	if err := readTable(toc, th.FolderOffset, folderDefSize, p.folders, "folder"); err != nil {
		return nil, err
	}
	if err := readTable(toc, th.FileOffset, fileDefSize, p.files, "file"); err != nil {
		return nil, err
	}

	end := uint64(th.NameOffset) + uint64(th.NameSize)
	if end > uint64(len(toc)) {
		return nil, fmt.Errorf("%w: name buffer [%d,%d) exceeds table of contents of %d",
			sga.ErrCorruptArchive, th.NameOffset, end, len(toc))
	}
	p.names = toc[th.NameOffset:end]
	return p, nil
}

// readTable decodes count fixed-size records at offset into out.
func readTable[T any](toc []byte, offset uint32, recordSize int, out []T, table string) error {
	end := uint64(offset) + uint64(recordSize)*uint64(len(out))
	if end > uint64(len(toc)) {
		return fmt.Errorf("%w: %s table [%d,%d) exceeds table of contents of %d",
			sga.ErrCorruptArchive, table, offset, end, len(toc))
	}
	r := bytes.NewReader(toc[offset:end])
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return fmt.Errorf("%w: truncated %s table", sga.ErrCorruptArchive, table)
		}
	}
	return nil
}

// name resolves a name-buffer offset to its NUL-terminated string.
func (p *parsedTOC) name(offset uint32) (string, error) {
	if int(offset) >= len(p.names) {
		return "", fmt.Errorf("%w: name offset %d exceeds name buffer of %d",
			sga.ErrCorruptArchive, offset, len(p.names))
	}
	end := bytes.IndexByte(p.names[offset:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated name at offset %d", sga.ErrCorruptArchive, offset)
	}
	return string(p.names[offset : int(offset)+end]), nil
}
