package scene

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/RoaringBitmap/roaring"
	"github.com/go-gl/mathgl/mgl64"
	_ "modernc.org/sqlite"
)

// Scene database schema. Object IDs match the MemoryStore's internal
// uint32 IDs so the per-mesh users bitmaps are meaningful to external
// readers without a full object scan.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS objects (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	kind INTEGER NOT NULL,
	parent TEXT,
	mesh TEXT,
	transform JSON,
	props JSON
);
CREATE INDEX IF NOT EXISTS idx_objects_parent ON objects(parent);

CREATE TABLE IF NOT EXISTS meshes (
	name TEXT PRIMARY KEY,
	material JSON,
	smooth INTEGER NOT NULL DEFAULT 0,
	auto_smooth_angle REAL NOT NULL DEFAULT 0,
	vertices BLOB,
	triangles BLOB,
	users BLOB
);
`

// transformJSON is the stable on-disk placement encoding. Rotation is
// [x, y, z, w] to match the converter's quaternion order.
type transformJSON struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
}

// SaveSQLite writes the scene to a fresh database at path, replacing
// any existing file. Everything goes in one transaction with prepared
// statements; assemblies are small, so no batching is needed.
func SaveSQLite(store *MemoryStore, path string) error {
	_ = os.Remove(path) // overwrite

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		return err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmtObj, err := tx.Prepare(`
		INSERT INTO objects (id, name, kind, parent, mesh, transform, props)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtObj.Close() }()

	stmtMesh, err := tx.Prepare(`
		INSERT INTO meshes (name, material, smooth, auto_smooth_angle, vertices, triangles, users)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtMesh.Close() }()

	meshList := store.Meshes()

	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, name := range store.order {
		o := store.objects[name]
		tf, err := json.Marshal(transformJSON{
			Position: o.Transform.Position,
			Rotation: [4]float64{o.Transform.Rotation.X(), o.Transform.Rotation.Y(), o.Transform.Rotation.Z(), o.Transform.Rotation.W},
			Scale:    o.Transform.Scale,
		})
		if err != nil {
			return fmt.Errorf("marshal transform %s: %w", name, err)
		}
		var props []byte
		if len(o.Props) > 0 {
			if props, err = json.Marshal(o.Props); err != nil {
				return fmt.Errorf("marshal props %s: %w", name, err)
			}
		}
		if _, err := stmtObj.Exec(store.objIntID[name], name, int(o.Kind),
			nullable(o.Parent), nullable(o.MeshName), tf, props); err != nil {
			return fmt.Errorf("insert object %s: %w", name, err)
		}
	}

	for _, m := range meshList {
		var material []byte
		if m.Material != nil {
			if material, err = json.Marshal(m.Material); err != nil {
				return fmt.Errorf("marshal material %s: %w", m.Name, err)
			}
		}
		users, err := bitmapBytes(store.meshUsers[m.Name])
		if err != nil {
			return fmt.Errorf("serialize users %s: %w", m.Name, err)
		}
		if _, err := stmtMesh.Exec(m.Name, material, boolInt(m.Smooth), m.AutoSmoothAngle,
			encodeVertices(m.Vertices), encodeTriangles(m.Triangles), users); err != nil {
			return fmt.Errorf("insert mesh %s: %w", m.Name, err)
		}
	}

	return tx.Commit()
}

// LoadSQLite reads a scene database back into memory. Object internal
// IDs and mesh usage bitmaps are rebuilt from the object rows (ordered
// by id), so the stored users blobs are only for external readers.
func LoadSQLite(path string) (*MemoryStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scene database: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	store := NewMemoryStore()

	rows, err := db.Query(`SELECT name, kind, parent, mesh, transform, props FROM objects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			o            Object
			kind         int
			parent, mesh sql.NullString
			tf, props    []byte
		)
		if err := rows.Scan(&o.Name, &kind, &parent, &mesh, &tf, &props); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		o.Kind = Kind(kind)
		o.Parent = parent.String
		o.MeshName = mesh.String
		var t transformJSON
		if err := json.Unmarshal(tf, &t); err != nil {
			return nil, fmt.Errorf("transform %s: %w", o.Name, err)
		}
		o.Transform = Transform{
			Position: t.Position,
			Rotation: mgl64.Quat{W: t.Rotation[3], V: mgl64.Vec3{t.Rotation[0], t.Rotation[1], t.Rotation[2]}},
			Scale:    t.Scale,
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &o.Props); err != nil {
				return nil, fmt.Errorf("props %s: %w", o.Name, err)
			}
		}
		store.AddObject(&o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rebuild children lists from parent references.
	for _, o := range store.Objects() {
		if o.Parent == "" {
			continue
		}
		if p, err := store.GetObject(o.Parent); err == nil && !containsString(p.Children, o.Name) {
			p.Children = append(p.Children, o.Name)
		}
	}

	mrows, err := db.Query(`SELECT name, material, smooth, auto_smooth_angle, vertices, triangles FROM meshes`)
	if err != nil {
		return nil, fmt.Errorf("query meshes: %w", err)
	}
	defer func() { _ = mrows.Close() }()

	for mrows.Next() {
		var (
			m        Mesh
			material []byte
			smooth   int
			vb, tb   []byte
		)
		if err := mrows.Scan(&m.Name, &material, &smooth, &m.AutoSmoothAngle, &vb, &tb); err != nil {
			return nil, fmt.Errorf("scan mesh: %w", err)
		}
		m.Smooth = smooth != 0
		if len(material) > 0 {
			m.Material = &Material{}
			if err := json.Unmarshal(material, m.Material); err != nil {
				return nil, fmt.Errorf("material %s: %w", m.Name, err)
			}
		}
		if m.Vertices, err = decodeVertices(vb); err != nil {
			return nil, fmt.Errorf("vertices %s: %w", m.Name, err)
		}
		if m.Triangles, err = decodeTriangles(tb); err != nil {
			return nil, fmt.Errorf("triangles %s: %w", m.Name, err)
		}
		store.AddMesh(&m)
	}
	return store, mrows.Err()
}

// Vertices are packed little-endian float64 triples, triangles
// little-endian uint32 triples. Compact and trivially readable from
// other languages.

func encodeVertices(vs []mgl64.Vec3) []byte {
	buf := make([]byte, 0, len(vs)*24)
	for _, v := range vs {
		for i := 0; i < 3; i++ {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v[i]))
		}
	}
	return buf
}

func decodeVertices(b []byte) ([]mgl64.Vec3, error) {
	if len(b)%24 != 0 {
		return nil, fmt.Errorf("vertex blob length %d not a multiple of 24", len(b))
	}
	vs := make([]mgl64.Vec3, len(b)/24)
	for i := range vs {
		for j := 0; j < 3; j++ {
			vs[i][j] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*24+j*8:]))
		}
	}
	return vs, nil
}

func encodeTriangles(ts [][3]int) []byte {
	buf := make([]byte, 0, len(ts)*12)
	for _, t := range ts {
		for i := 0; i < 3; i++ {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(t[i]))
		}
	}
	return buf
}

func decodeTriangles(b []byte) ([][3]int, error) {
	if len(b)%12 != 0 {
		return nil, fmt.Errorf("triangle blob length %d not a multiple of 12", len(b))
	}
	ts := make([][3]int, len(b)/12)
	for i := range ts {
		for j := 0; j < 3; j++ {
			ts[i][j] = int(binary.LittleEndian.Uint32(b[i*12+j*4:]))
		}
	}
	return ts, nil
}

func bitmapBytes(bm *roaring.Bitmap) ([]byte, error) {
	if bm == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if _, err := bm.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
