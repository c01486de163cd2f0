// Package initrd parses CPIO "newc" and USTAR TAR initial-ramdisk images
// into an in-memory path-keyed tree, and provides a companion writer that
// builds a CPIO "newc" image from a host directory. Grounded on
// original_source's kernel/src/fs/initrd.rs path-tree/read-file design
// and biscuit's mkfs.go host-directory-walking build tool, restated as a
// Go reader/writer pair around the File-backed VMA contract of §4.4/§4.12.
package initrd

import (
	"sync"

	"golang.org/x/text/unicode/norm"

	"corekernel/defs"
)

// Entry is one file or directory parsed from an archive.
type Entry struct {
	Path  string
	Mode  uint32
	IsDir bool
	Data  []byte
}

// Image is the in-memory tree an address space's File-backed VMAs read
// from through ReadPage.
type Image struct {
	mu    sync.RWMutex
	byID  map[uint64]*Entry
	byKey map[string]uint64
	next  uint64
}

// New returns an empty image.
func New() *Image {
	return &Image{byID: make(map[uint64]*Entry), byKey: make(map[string]uint64)}
}

func normalizePath(p string) string { return norm.NFC.String(p) }

func (img *Image) insert(e *Entry) uint64 {
	img.mu.Lock()
	defer img.mu.Unlock()
	e.Path = normalizePath(e.Path)
	img.next++
	id := img.next
	img.byID[id] = e
	img.byKey[e.Path] = id
	return id
}

// Lookup resolves an absolute path to the fileID a VMA's File backing
// names.
func (img *Image) Lookup(path string) (uint64, defs.Err_t) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	id, ok := img.byKey[normalizePath(path)]
	if !ok {
		return 0, defs.ENotFound
	}
	return id, defs.EOK
}

// ReadFile returns the full contents of path, for callers (and tests)
// that don't go through the paging fault path.
func (img *Image) ReadFile(path string) ([]byte, defs.Err_t) {
	img.mu.RLock()
	defer img.mu.RUnlock()
	id, ok := img.byKey[normalizePath(path)]
	if !ok {
		return nil, defs.ENotFound
	}
	e := img.byID[id]
	if e.IsDir {
		return nil, defs.EInvalidFormat
	}
	return e.Data, defs.EOK
}

// ReadPage satisfies vm.FileSource: it reads mem.PageSize bytes at offset
// into buf, zero-filling any bytes past EOF.
func (img *Image) ReadPage(fileID uint64, offset uint64, buf []byte) defs.Err_t {
	img.mu.RLock()
	e, ok := img.byID[fileID]
	img.mu.RUnlock()
	if !ok || e.IsDir {
		return defs.ENotFound
	}
	for i := range buf {
		buf[i] = 0
	}
	if offset >= uint64(len(e.Data)) {
		return defs.EOK
	}
	copy(buf, e.Data[offset:])
	return defs.EOK
}

// EntryCount reports how many entries (files and directories) the image
// holds, for tests.
func (img *Image) EntryCount() int {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return len(img.byID)
}
