package meshutil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apexforge/apexcad/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// ParseOBJFile reads a Wavefront OBJ file written by the converter into
// a mesh data block. The converter exports one part per file, so
// grouping statements are ignored; parsing it ourselves keeps distinct
// parts from being merged the way a generic importer would.
func ParseOBJFile(path, meshName string) (*scene.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseOBJ(f, meshName)
}

// ParseOBJ parses vertex and face statements from r. Faces with more
// than three vertices are fan-triangulated; normals, texture
// coordinates, materials and groups are skipped.
func ParseOBJ(r io.Reader, meshName string) (*scene.Mesh, error) {
	mesh := &scene.Mesh{Name: meshName}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: vertex needs 3 coordinates", lineNo)
			}
			var v mgl64.Vec3
			for i := 0; i < 3; i++ {
				c, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: bad coordinate %q", lineNo, fields[i+1])
				}
				v[i] = c
			}
			mesh.Vertices = append(mesh.Vertices, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 vertices", lineNo)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				i, err := parseFaceIndex(ref, len(mesh.Vertices))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
				}
				idx = append(idx, i)
			}
			for i := 1; i+1 < len(idx); i++ {
				mesh.Triangles = append(mesh.Triangles, [3]int{idx[0], idx[i], idx[i+1]})
			}
		default:
			// vn, vt, g, o, s, usemtl, mtllib — not needed.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}
	if len(mesh.Vertices) == 0 || len(mesh.Triangles) == 0 {
		return nil, fmt.Errorf("obj contains no geometry")
	}
	return mesh, nil
}

// parseFaceIndex resolves one face vertex reference ("7", "7/1",
// "7//3", "-1") to a zero-based vertex index.
func parseFaceIndex(ref string, vertexCount int) (int, error) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		ref = ref[:i]
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad face index %q", ref)
	}
	if n < 0 {
		n = vertexCount + n + 1
	}
	if n < 1 || n > vertexCount {
		return 0, fmt.Errorf("face index %d out of range (1..%d)", n, vertexCount)
	}
	return n - 1, nil
}

// EncodeOBJ renders a mesh back to Wavefront OBJ text, for mounted
// inspection of imported geometry.
func EncodeOBJ(m *scene.Mesh) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s: %d vertices, %d triangles\n", m.Name, len(m.Vertices), len(m.Triangles))
	fmt.Fprintf(&b, "o %s\n", m.Name)
	for _, v := range m.Vertices {
		fmt.Fprintf(&b, "v %g %g %g\n", v[0], v[1], v[2])
	}
	for _, t := range m.Triangles {
		fmt.Fprintf(&b, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
	}
	return b.Bytes()
}
