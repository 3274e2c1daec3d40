// Package scenefs exposes an imported scene as a read-only filesystem:
// containers become directories, leaf parts become directories holding
// metadata, transform and mesh.obj files. It adapts a scene.Store to
// billy.Filesystem for NFS serving and to cgofuse for FUSE hosting, so
// an assembly can be browsed without a 3D host application.
package scenefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/apexforge/apexcad/internal/meshutil"
	"github.com/apexforge/apexcad/internal/scene"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

const sceneDocName = "_scene.json"

// SceneFS adapts a scene.Store to billy.Filesystem.
type SceneFS struct {
	store     scene.Store
	sceneJSON []byte
	mountTime time.Time
}

// New creates a billy.Filesystem view over a scene store.
func New(store scene.Store) *SceneFS {
	doc, _ := json.MarshalIndent(scene.ExportDocument(store), "", "  ")
	doc = append(doc, '\n')
	return &SceneFS{
		store:     store,
		sceneJSON: doc,
		mountTime: time.Now(),
	}
}

// resolveObject walks path components through the object tree. Every
// component must be a root or a child of the previous object.
func (fs *SceneFS) resolveObject(path string) (*scene.Object, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, os.ErrNotExist
	}
	o, err := fs.store.GetObject(parts[0])
	if err != nil {
		return nil, os.ErrNotExist
	}
	if o.Parent != "" {
		return nil, os.ErrNotExist // only roots appear at the top level
	}
	for _, name := range parts[1:] {
		if !containsName(o.Children, name) {
			return nil, os.ErrNotExist
		}
		if o, err = fs.store.GetObject(name); err != nil {
			return nil, os.ErrNotExist
		}
	}
	return o, nil
}

// fileContent renders a virtual file under an object directory.
func (fs *SceneFS) fileContent(o *scene.Object, base string) ([]byte, bool) {
	switch base {
	case "metadata":
		props := o.Props
		if props == nil {
			props = map[string]any{}
		}
		b, err := json.MarshalIndent(props, "", "  ")
		if err != nil {
			return nil, false
		}
		return append(b, '\n'), true
	case "transform":
		b, err := json.MarshalIndent(map[string]any{
			"position": o.Transform.Position,
			"rotation": []float64{o.Transform.Rotation.X(), o.Transform.Rotation.Y(), o.Transform.Rotation.Z(), o.Transform.Rotation.W},
			"scale":    o.Transform.Scale,
		}, "", "  ")
		if err != nil {
			return nil, false
		}
		return append(b, '\n'), true
	case "mesh.obj":
		if o.Kind != scene.KindMesh {
			return nil, false
		}
		m, err := fs.store.GetMesh(o.MeshName)
		if err != nil {
			return nil, false
		}
		return meshutil.EncodeOBJ(m), true
	}
	return nil, false
}

// objectFiles lists the virtual file names for an object.
func objectFiles(o *scene.Object) []string {
	files := []string{"metadata", "transform"}
	if o.Kind == scene.KindMesh {
		files = append(files, "mesh.obj")
	}
	return files
}

// --- billy.Basic ---

func (fs *SceneFS) Create(string) (billy.File, error) { return nil, errReadOnly }

func (fs *SceneFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *SceneFS) OpenFile(filename string, flag int, _ os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)

	if filename == "/"+sceneDocName {
		return &bytesFile{name: sceneDocName, data: fs.sceneJSON}, nil
	}

	dir, base := filepath.Dir(filename), filepath.Base(filename)
	o, err := fs.resolveObject(dir)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	content, ok := fs.fileContent(o, base)
	if !ok {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	return &bytesFile{name: base, data: content}, nil
}

func (fs *SceneFS) Stat(filename string) (os.FileInfo, error) { return fs.Lstat(filename) }
func (fs *SceneFS) Rename(string, string) error               { return errReadOnly }
func (fs *SceneFS) Remove(string) error                       { return errReadOnly }
func (fs *SceneFS) Join(elem ...string) string                { return filepath.Join(elem...) }

// --- billy.TempFile ---

func (fs *SceneFS) TempFile(string, string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *SceneFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	if path == "/" {
		infos := []os.FileInfo{&staticFileInfo{
			name: sceneDocName, size: int64(len(fs.sceneJSON)), mode: 0o444, modTime: fs.mountTime,
		}}
		for _, name := range fs.store.Roots() {
			infos = append(infos, &staticFileInfo{
				name: name, mode: os.ModeDir | 0o555, modTime: fs.mountTime,
			})
		}
		return infos, nil
	}

	o, err := fs.resolveObject(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}
	infos := make([]os.FileInfo, 0, len(o.Children)+3)
	for _, base := range objectFiles(o) {
		content, _ := fs.fileContent(o, base)
		infos = append(infos, &staticFileInfo{
			name: base, size: int64(len(content)), mode: 0o444, modTime: fs.mountTime,
		})
	}
	for _, child := range o.Children {
		infos = append(infos, &staticFileInfo{
			name: child, mode: os.ModeDir | 0o555, modTime: fs.mountTime,
		})
	}
	return infos, nil
}

func (fs *SceneFS) MkdirAll(string, os.FileMode) error { return errReadOnly }

// --- billy.Symlink ---

func (fs *SceneFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		return &staticFileInfo{name: "/", mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}
	if filename == "/"+sceneDocName {
		return &staticFileInfo{
			name: sceneDocName, size: int64(len(fs.sceneJSON)), mode: 0o444, modTime: fs.mountTime,
		}, nil
	}

	if o, err := fs.resolveObject(filename); err == nil {
		return &staticFileInfo{name: o.Name, mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}

	dir, base := filepath.Dir(filename), filepath.Base(filename)
	o, err := fs.resolveObject(dir)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	content, ok := fs.fileContent(o, base)
	if !ok {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return &staticFileInfo{
		name: base, size: int64(len(content)), mode: 0o444, modTime: fs.mountTime,
	}, nil
}

func (fs *SceneFS) Symlink(string, string) error    { return billy.ErrNotSupported }
func (fs *SceneFS) Readlink(string) (string, error) { return "", billy.ErrNotSupported }

// --- billy.Chroot ---

func (fs *SceneFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *SceneFS) Root() string { return "/" }

// --- billy.Capable ---

func (fs *SceneFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

func splitPath(path string) []string {
	path = strings.Trim(cleanPath(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func containsName(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

var (
	_ billy.Filesystem = (*SceneFS)(nil)
	_ billy.Capable    = (*SceneFS)(nil)
)
