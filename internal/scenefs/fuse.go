package scenefs

import (
	"path/filepath"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/apexforge/apexcad/internal/scene"
)

// FuseFS implements the FUSE interface from cgofuse over a scene store.
type FuseFS struct {
	fuse.FileSystemBase
	fs        *SceneFS
	mountTime fuse.Timespec
}

func NewFuseFS(store scene.Store) *FuseFS {
	return &FuseFS{
		fs:        New(store),
		mountTime: fuse.NewTimespec(time.Now()),
	}
}

// Open checks if the path exists as a virtual file.
func (f *FuseFS) Open(path string, flags int) (int, uint64) {
	if _, ok := f.content(path); ok {
		return 0, 0
	}
	return fuse.ENOENT, 0
}

// Getattr (Stat)
func (f *FuseFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	stat.Atim = f.mountTime
	stat.Mtim = f.mountTime
	stat.Ctim = f.mountTime
	stat.Birthtim = f.mountTime

	// Root is always there
	if path == "/" {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	}

	// 1. Is this an object in the scene? (Directory)
	if _, err := f.fs.resolveObject(path); err == nil {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	}

	// 2. Is it a virtual file?
	if content, ok := f.content(path); ok {
		stat.Mode = fuse.S_IFREG | 0o444
		stat.Nlink = 1
		stat.Size = int64(len(content))
		return 0
	}

	return fuse.ENOENT
}

// Readdir (List directory)
func (f *FuseFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	fill(".", nil, 0)
	fill("..", nil, 0)

	if path == "/" {
		fill(sceneDocName, nil, 0)
		for _, name := range f.fs.store.Roots() {
			fill(name, nil, 0)
		}
		return 0
	}

	o, err := f.fs.resolveObject(path)
	if err != nil {
		return fuse.ENOENT
	}
	for _, base := range objectFiles(o) {
		fill(base, nil, 0)
	}
	for _, child := range o.Children {
		fill(child, nil, 0)
	}
	return 0
}

// Read (Cat file)
func (f *FuseFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	content, ok := f.content(path)
	if !ok {
		return fuse.ENOENT
	}

	if ofst >= int64(len(content)) {
		return 0
	}
	end := ofst + int64(len(buff))
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return copy(buff, content[ofst:end])
}

// content resolves a path to virtual file bytes, or reports it is not a file.
func (f *FuseFS) content(path string) ([]byte, bool) {
	path = cleanPath(path)
	if path == "/"+sceneDocName {
		return f.fs.sceneJSON, true
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	o, err := f.fs.resolveObject(dir)
	if err != nil {
		return nil, false
	}
	return f.fs.fileContent(o, base)
}
