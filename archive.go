package sga

import (
	"iter"
	"strings"
)

// Node is any named member of the archive tree below the Archive itself.
//
// Path reports the node's logical location: a drive renders as "alias:", and
// every other node as its parent's path joined with its own name by "/".
// Paths are recomputed on each call; the tree is mutable and nothing caches.
type Node interface {
	Name() string
	Path() string
	PortablePath() string
}

// Container is a tree node that owns folders and files: a Drive or a Folder.
//
// Children are created through the container so that every node's parent is
// set exactly once, at construction, to the container that owns it.
type Container[F any] interface {
	Node
	Folders() []*Folder[F]
	Files() []*File[F]
	NewFolder(name string) *Folder[F]
	NewFile(name string, data []byte, storage StorageType, metadata F) *File[F]
	NewLazyFile(name string, storage StorageType, metadata F, info LazyInfo) *File[F]
}

// WalkEntry is one step of a tree walk: a container together with its direct
// child folders and files.
type WalkEntry[F any] struct {
	Container Container[F]
	Folders   []*Folder[F]
	Files     []*File[F]
}

// Archive is the root of the tree, representing one parsed or constructed
// package. M is the per-version archive metadata payload and F the
// per-version file metadata payload.
type Archive[M, F any] struct {
	// Name is the archive's display name.
	Name string

	// Metadata holds version-specific archive metadata.
	Metadata M

	drives []*Drive[F]
}

// New creates an empty archive.
func New[M, F any](name string, metadata M) *Archive[M, F] {
	return &Archive[M, F]{Name: name, Metadata: metadata}
}

// Drives returns the archive's drives in order.
func (a *Archive[M, F]) Drives() []*Drive[F] {
	return a.drives
}

// NewDrive appends a new top-level drive to the archive.
func (a *Archive[M, F]) NewDrive(alias, name string) *Drive[F] {
	d := &Drive[F]{alias: alias, name: name}
	a.drives = append(a.drives, d)
	return d
}

// Walk returns an iterator over the whole tree, flattening across drives in
// sequence order. Each range over the result starts a fresh pre-order
// traversal; see Drive.Walk.
func (a *Archive[M, F]) Walk() iter.Seq[WalkEntry[F]] {
	return func(yield func(WalkEntry[F]) bool) {
		for _, d := range a.drives {
			for e := range d.Walk() {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// WalkFiles returns an iterator over every file in the archive, in walk
// order. It implements the version-erased ArchiveNode view used by tooling
// that handles archives of any revision.
func (a *Archive[M, F]) WalkFiles() iter.Seq[FileNode] {
	return func(yield func(FileNode) bool) {
		for e := range a.Walk() {
			for _, f := range e.Files {
				if !yield(f) {
					return
				}
			}
		}
	}
}

// Drive is a top-level named volume inside an archive. Drives have no
// parent; their path is the alias followed by a colon.
type Drive[F any] struct {
	alias   string
	name    string
	folders []*Folder[F]
	files   []*File[F]
}

// Alias returns the drive's short identifier, e.g. "data".
func (d *Drive[F]) Alias() string { return d.alias }

// Name returns the drive's display name.
func (d *Drive[F]) Name() string { return d.name }

// Path renders as "alias:".
func (d *Drive[F]) Path() string { return d.alias + ":" }

// PortablePath is the drive path without the colon, suitable as a
// filesystem segment.
func (d *Drive[F]) PortablePath() string { return d.alias }

// Folders returns the drive's direct child folders in order.
func (d *Drive[F]) Folders() []*Folder[F] { return d.folders }

// Files returns the drive's direct files in order.
func (d *Drive[F]) Files() []*File[F] { return d.files }

// NewFolder appends a new child folder to the drive.
func (d *Drive[F]) NewFolder(name string) *Folder[F] {
	f := &Folder[F]{name: name, parent: d}
	d.folders = append(d.folders, f)
	return f
}

// NewFile appends a new file with materialized data to the drive.
// The file's in-memory bytes are taken as uncompressed; callers that supply
// pre-compressed bytes are responsible for the compressed flag via Compress.
func (d *Drive[F]) NewFile(name string, data []byte, storage StorageType, metadata F) *File[F] {
	f := newFile(name, data, storage, metadata, d)
	d.files = append(d.files, f)
	return f
}

// NewLazyFile appends a new file whose bytes stay in the source stream until
// first access.
func (d *Drive[F]) NewLazyFile(name string, storage StorageType, metadata F, info LazyInfo) *File[F] {
	f := newLazyFile(name, storage, metadata, d, info)
	d.files = append(d.files, f)
	return f
}

// Walk returns a pre-order iterator over the drive's subtree. The drive is
// yielded first, then each child folder's subtree depth-first before the
// next sibling's. Each range starts a fresh traversal, so independent
// concurrent walks are safe as long as the tree is not mutated.
func (d *Drive[F]) Walk() iter.Seq[WalkEntry[F]] {
	return func(yield func(WalkEntry[F]) bool) {
		walkContainer[F](d, yield)
	}
}

// Folder is a nested directory node.
type Folder[F any] struct {
	name    string
	parent  Node
	folders []*Folder[F]
	files   []*File[F]
}

// Name returns the folder's own name, without ancestry.
func (f *Folder[F]) Name() string { return f.name }

// Path joins the parent's path with the folder's name.
func (f *Folder[F]) Path() string { return joinPath(f.parent, f.name) }

// PortablePath is Path with the drive colon stripped; see File.PortablePath.
func (f *Folder[F]) PortablePath() string { return portable(f.Path()) }

// Parent returns the owning drive or folder.
func (f *Folder[F]) Parent() Node { return f.parent }

// Folders returns the folder's direct child folders in order.
func (f *Folder[F]) Folders() []*Folder[F] { return f.folders }

// Files returns the folder's direct files in order.
func (f *Folder[F]) Files() []*File[F] { return f.files }

// NewFolder appends a new child folder.
func (f *Folder[F]) NewFolder(name string) *Folder[F] {
	sub := &Folder[F]{name: name, parent: f}
	f.folders = append(f.folders, sub)
	return sub
}

// NewFile appends a new file with materialized data to the folder.
func (f *Folder[F]) NewFile(name string, data []byte, storage StorageType, metadata F) *File[F] {
	file := newFile(name, data, storage, metadata, f)
	f.files = append(f.files, file)
	return file
}

// NewLazyFile appends a new file whose bytes stay in the source stream until
// first access.
func (f *Folder[F]) NewLazyFile(name string, storage StorageType, metadata F, info LazyInfo) *File[F] {
	file := newLazyFile(name, storage, metadata, f, info)
	f.files = append(f.files, file)
	return file
}

// Walk returns a pre-order iterator over the folder's subtree.
func (f *Folder[F]) Walk() iter.Seq[WalkEntry[F]] {
	return func(yield func(WalkEntry[F]) bool) {
		walkContainer[F](f, yield)
	}
}

// walkContainer yields c and then recurses into its child folders.
// It reports false once the consumer stops.
func walkContainer[F any](c Container[F], yield func(WalkEntry[F]) bool) bool {
	if !yield(WalkEntry[F]{Container: c, Folders: c.Folders(), Files: c.Files()}) {
		return false
	}
	for _, sub := range c.Folders() {
		if !walkContainer[F](sub, yield) {
			return false
		}
	}
	return true
}

// joinPath renders parent/child ancestry. A nil parent yields the bare name,
// matching a node detached from any drive.
func joinPath(parent Node, name string) string {
	if parent == nil {
		return name
	}
	return parent.Path() + "/" + name
}

// portable strips the colon from the first path segment so a drive-rooted
// path such as "data:/textures/a.dds" becomes a valid relative filesystem
// path. The colon rendering itself is preserved by Path; this is the one
// place the two forms diverge.
func portable(p string) string {
	head, rest, ok := strings.Cut(p, "/")
	if !ok {
		return strings.ReplaceAll(p, ":", "")
	}
	return strings.ReplaceAll(head, ":", "") + "/" + rest
}
