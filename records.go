package sga

import "fmt"

// On-disk descriptor records are the flat, parse-time shapes every codec
// reads from its table-of-contents before the tree exists. Index ranges are
// half-open over the codec's flat folder and file tables; nesting is derived
// from the ranges, never stored.

// IndexRange is a half-open [Start, End) span over a flat table.
type IndexRange struct {
	Start uint32
	End   uint32
}

// Len returns the number of indices covered.
func (r IndexRange) Len() int { return int(r.End) - int(r.Start) }

// Validate checks 0 <= Start <= End <= tableLen. A violation is a corrupt
// table of contents, never a silent truncation.
func (r IndexRange) Validate(tableLen int, table string) error {
	if r.Start > r.End {
		return fmt.Errorf("%w: %s range [%d,%d) inverted", ErrCorruptArchive, table, r.Start, r.End)
	}
	if int(r.End) > tableLen {
		return fmt.Errorf("%w: %s range [%d,%d) exceeds table of %d", ErrCorruptArchive, table, r.Start, r.End, tableLen)
	}
	return nil
}

// DriveDef describes a drive in a codec's table of contents.
type DriveDef struct {
	Alias       string
	Name        string
	RootFolder  uint32
	FolderRange IndexRange
	FileRange   IndexRange
}

// FolderDef describes a folder in a codec's table of contents.
type FolderDef struct {
	NameOffset  uint32
	FolderRange IndexRange
	FileRange   IndexRange
}

// FileDef describes a file in a codec's table of contents. DataOffset is
// relative to wherever the codec's data section starts.
type FileDef struct {
	NameOffset   uint32
	DataOffset   uint64
	PackedSize   uint32
	UnpackedSize uint32
	StorageType  StorageType
}

// NameFunc resolves a name-table offset to a string.
type NameFunc func(offset uint32) (string, error)

// LazyFileFunc creates the file for def inside parent, typically via
// parent.NewLazyFile with a descriptor pointing into the codec's stream.
// index is the def's position in the flat file table, letting codecs look
// up revision-specific fields kept outside the shared record.
type LazyFileFunc[F any] func(parent Container[F], index uint32, def FileDef) error

// BuildDrive expands one drive's descriptor records into a subtree of the
// archive. Every index range is validated against its table before any node
// is constructed; the root folder's children become the drive's direct
// children. Files are created through newFile so the codec controls
// descriptors and metadata.
func BuildDrive[M, F any](
	a *Archive[M, F],
	def DriveDef,
	folders []FolderDef,
	files []FileDef,
	name NameFunc,
	newFile LazyFileFunc[F],
) (*Drive[F], error) {
	if err := def.FolderRange.Validate(len(folders), "drive folder"); err != nil {
		return nil, err
	}
	if err := def.FileRange.Validate(len(files), "drive file"); err != nil {
		return nil, err
	}
	if int(def.RootFolder) >= len(folders) {
		return nil, fmt.Errorf("%w: drive %q root folder %d exceeds table of %d",
			ErrCorruptArchive, def.Alias, def.RootFolder, len(folders))
	}
	for i, fd := range folders {
		if err := fd.FolderRange.Validate(len(folders), "folder"); err != nil {
			return nil, err
		}
		if err := fd.FileRange.Validate(len(files), "folder file"); err != nil {
			return nil, fmt.Errorf("folder %d: %w", i, err)
		}
	}

	b := &treeBuilder[F]{folders: folders, files: files, name: name, newFile: newFile,
		building: make(map[uint32]bool)}

	d := a.NewDrive(def.Alias, def.Name)
	if err := b.fill(d, folders[def.RootFolder], def.RootFolder); err != nil {
		return nil, err
	}
	return d, nil
}

type treeBuilder[F any] struct {
	folders []FolderDef
	files   []FileDef
	name    NameFunc
	newFile LazyFileFunc[F]

	// building guards against folder defs whose ranges loop back onto an
	// ancestor, which would otherwise recurse forever.
	building map[uint32]bool
}

func (b *treeBuilder[F]) fill(c Container[F], def FolderDef, index uint32) error {
	if b.building[index] {
		return fmt.Errorf("%w: folder %d contains itself", ErrCorruptArchive, index)
	}
	b.building[index] = true
	defer delete(b.building, index)

	for i := def.FolderRange.Start; i < def.FolderRange.End; i++ {
		sub := b.folders[i]
		folderName, err := b.name(sub.NameOffset)
		if err != nil {
			return err
		}
		if err := b.fill(c.NewFolder(folderName), sub, i); err != nil {
			return err
		}
	}
	for i := def.FileRange.Start; i < def.FileRange.End; i++ {
		if err := b.newFile(c, i, b.files[i]); err != nil {
			return err
		}
	}
	return nil
}
