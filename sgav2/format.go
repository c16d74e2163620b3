package sgav2

import (
	"fmt"
	"unicode/utf16"

	"github.com/relictools/sga"
)

// On-disk layout, all little-endian. The header is fixed-size; every offset
// inside the table of contents is relative to the TOC's first byte, and
// file data offsets are relative to the data section's first byte.

const (
	headerSize = 184

	// archiveNameBytes is the fixed UTF-16LE archive name field.
	archiveNameBytes = 128
	archiveNameUnits = archiveNameBytes / 2

	// driveNameBytes is each fixed NUL-padded drive alias/name field.
	driveNameBytes = 64

	tocHeaderSize = 26
	driveDefSize  = 138
	folderDefSize = 12
	fileDefSize   = 24
)

// header is the fixed stream prefix.
type header struct {
	Magic      [8]byte
	Major      uint16
	Minor      uint16
	HeaderMD5  [16]byte
	Name       [archiveNameBytes]byte
	DataMD5    [16]byte
	TOCSize    uint32
	DataOffset uint32
	DataSize   uint32
}

// tocHeader locates the descriptor tables inside the TOC.
type tocHeader struct {
	DriveOffset  uint32
	DriveCount   uint16
	FolderOffset uint32
	FolderCount  uint16
	FileOffset   uint32
	FileCount    uint16
	NameOffset   uint32
	NameSize     uint32
}

// driveDef is the on-disk drive descriptor.
type driveDef struct {
	Alias       [driveNameBytes]byte
	Name        [driveNameBytes]byte
	FolderStart uint16
	FolderEnd   uint16
	FileStart   uint16
	FileEnd     uint16
	RootFolder  uint16
}

// folderDef is the on-disk folder descriptor.
type folderDef struct {
	NameOffset  uint32
	FolderStart uint16
	FolderEnd   uint16
	FileStart   uint16
	FileEnd     uint16
}

// fileDef is the on-disk file descriptor. Storage holds an sga.StorageType
// in its low byte; the remaining bits are reserved.
type fileDef struct {
	NameOffset uint32
	Storage    uint32
	DataOffset uint32
	PackedSize uint32
	UnpackedSz uint32
	CRC        uint32
}

func (d driveDef) shared() sga.DriveDef {
	return sga.DriveDef{
		Alias:       cstring(d.Alias[:]),
		Name:        cstring(d.Name[:]),
		RootFolder:  uint32(d.RootFolder),
		FolderRange: sga.IndexRange{Start: uint32(d.FolderStart), End: uint32(d.FolderEnd)},
		FileRange:   sga.IndexRange{Start: uint32(d.FileStart), End: uint32(d.FileEnd)},
	}
}

func (d folderDef) shared() sga.FolderDef {
	return sga.FolderDef{
		NameOffset:  d.NameOffset,
		FolderRange: sga.IndexRange{Start: uint32(d.FolderStart), End: uint32(d.FolderEnd)},
		FileRange:   sga.IndexRange{Start: uint32(d.FileStart), End: uint32(d.FileEnd)},
	}
}

func (d fileDef) shared() sga.FileDef {
	return sga.FileDef{
		NameOffset:   d.NameOffset,
		DataOffset:   uint64(d.DataOffset),
		PackedSize:   d.PackedSize,
		UnpackedSize: d.UnpackedSz,
		StorageType:  sga.StorageType(d.Storage & 0xff),
	}
}

// cstring returns the bytes before the first NUL.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// fixedString copies s NUL-padded into a driveNameBytes field.
func fixedString(s string) ([driveNameBytes]byte, error) {
	var out [driveNameBytes]byte
	if len(s) >= driveNameBytes {
		return out, fmt.Errorf("sgav2: name %q exceeds %d bytes", s, driveNameBytes-1)
	}
	copy(out[:], s)
	return out, nil
}

// encodeArchiveName encodes s as NUL-padded UTF-16LE.
func encodeArchiveName(s string) ([archiveNameBytes]byte, error) {
	var out [archiveNameBytes]byte
	units := utf16.Encode([]rune(s))
	if len(units) >= archiveNameUnits {
		return out, fmt.Errorf("sgav2: archive name %q exceeds %d UTF-16 units", s, archiveNameUnits-1)
	}
	for i, u := range units {
		out[2*i] = byte(u)
		out[2*i+1] = byte(u >> 8)
	}
	return out, nil
}

// decodeArchiveName decodes a NUL-padded UTF-16LE field.
func decodeArchiveName(b [archiveNameBytes]byte) string {
	units := make([]uint16, 0, archiveNameUnits)
	for i := 0; i < archiveNameBytes; i += 2 {
		u := uint16(b[i]) | uint16(b[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
