package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

var ErrNotFound = errors.New("scene: not found")

// Store is the read surface over a scene. The importer builds against a
// MemoryStore; persistence round-trips through SQLite.
type Store interface {
	GetObject(name string) (*Object, error)
	// Objects returns all objects in creation order.
	Objects() []*Object
	// Roots returns names of objects without a parent, in creation order.
	Roots() []string
	GetMesh(name string) (*Mesh, error)
	Meshes() []*Mesh
	// MeshUsers returns the names of all objects referencing the given
	// mesh data block. More than one user means the mesh is instanced.
	MeshUsers(meshName string) ([]string, error)
}

// MemoryStore is the in-memory scene built during an import.
//
// Mesh usage is tracked in roaring bitmaps keyed by mesh name: each
// object gets a monotonically assigned uint32 ID, and instance collapse
// moves bits between bitmaps instead of rescanning every object.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	order   []string
	meshes  map[string]*Mesh

	meshUsers map[string]*roaring.Bitmap // mesh name → bitmap of object IDs
	objIntID  map[string]uint32
	intToObj  []string
	nextIntID uint32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:   make(map[string]*Object),
		meshes:    make(map[string]*Mesh),
		meshUsers: make(map[string]*roaring.Bitmap),
		objIntID:  make(map[string]uint32),
	}
}

// AddObject registers an object. Re-adding a name replaces the object
// but keeps its creation order and internal ID.
func (s *MemoryStore) AddObject(o *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[o.Name]; !exists {
		s.order = append(s.order, o.Name)
		s.objIntID[o.Name] = s.nextIntID
		s.intToObj = append(s.intToObj, o.Name)
		s.nextIntID++
	}
	s.objects[o.Name] = o
	if o.MeshName != "" {
		s.addUser(o.MeshName, o.Name)
	}
}

// AddMesh registers a mesh data block.
func (s *MemoryStore) AddMesh(m *Mesh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meshes[m.Name] = m
}

// RemoveMesh drops a mesh data block; used after instance collapse
// orphans a duplicate. Objects still referencing it keep their name
// reference, so callers must relink first.
func (s *MemoryStore) RemoveMesh(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meshes, name)
	delete(s.meshUsers, name)
}

// SetMesh points an object at a (possibly shared) mesh data block and
// keeps the usage bitmaps consistent.
func (s *MemoryStore) SetMesh(objName, meshName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[objName]
	if !ok {
		return fmt.Errorf("set mesh %q: %w", objName, ErrNotFound)
	}
	if o.MeshName != "" {
		if bm := s.meshUsers[o.MeshName]; bm != nil {
			bm.Remove(s.objIntID[objName])
		}
	}
	o.MeshName = meshName
	s.addUser(meshName, objName)
	return nil
}

// addUser sets the object's bit in the mesh usage bitmap. Lock held.
func (s *MemoryStore) addUser(meshName, objName string) {
	bm, ok := s.meshUsers[meshName]
	if !ok {
		bm = roaring.New()
		s.meshUsers[meshName] = bm
	}
	bm.Add(s.objIntID[objName])
}

// SetParent links child under parent, refusing self-links and links
// that would introduce a cycle. The converter hands us a tree; this
// guard preserves that, it never has to break existing cycles.
func (s *MemoryStore) SetParent(child, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.objects[child]
	if !ok {
		return fmt.Errorf("set parent: child %q: %w", child, ErrNotFound)
	}
	p, ok := s.objects[parent]
	if !ok {
		return fmt.Errorf("set parent: parent %q: %w", parent, ErrNotFound)
	}
	if child == parent {
		return fmt.Errorf("set parent: %q cannot parent itself", child)
	}
	// Walk up from the prospective parent; hitting child means a cycle.
	for cur := p; cur != nil && cur.Parent != ""; {
		if cur.Parent == child {
			return fmt.Errorf("set parent: %q under %q would create a cycle", child, parent)
		}
		cur = s.objects[cur.Parent]
	}

	if c.Parent != "" {
		if old, ok := s.objects[c.Parent]; ok {
			old.Children = removeString(old.Children, child)
		}
	}
	c.Parent = parent
	if !containsString(p.Children, child) {
		p.Children = append(p.Children, child)
	}
	return nil
}

func (s *MemoryStore) GetObject(name string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) Objects() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Object, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.objects[name])
	}
	return out
}

func (s *MemoryStore) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roots []string
	for _, name := range s.order {
		if s.objects[name].Parent == "" {
			roots = append(roots, name)
		}
	}
	return roots
}

func (s *MemoryStore) GetMesh(name string) (*Mesh, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meshes[name]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) Meshes() []*Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Mesh, 0, len(s.meshes))
	// Creation order is not tracked for meshes; follow object order so
	// output stays deterministic.
	seen := make(map[string]bool, len(s.meshes))
	for _, name := range s.order {
		mn := s.objects[name].MeshName
		if mn == "" || seen[mn] {
			continue
		}
		if m, ok := s.meshes[mn]; ok {
			out = append(out, m)
			seen[mn] = true
		}
	}
	for name, m := range s.meshes {
		if !seen[name] {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemoryStore) MeshUsers(meshName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.meshes[meshName]; !ok {
		return nil, ErrNotFound
	}
	bm := s.meshUsers[meshName]
	if bm == nil {
		return nil, nil
	}
	var users []string
	it := bm.Iterator()
	for it.HasNext() {
		id := it.Next()
		if int(id) < len(s.intToObj) {
			users = append(users, s.intToObj[id])
		}
	}
	return users, nil
}

// Len returns the number of registered objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var _ Store = (*MemoryStore)(nil)
