package scene

// ExportDocument renders the scene as plain maps and slices, the shape
// JSONPath tooling and the mounted _scene.json expect.
func ExportDocument(store Store) map[string]any {
	objects := make([]any, 0)
	for _, o := range store.Objects() {
		entry := map[string]any{
			"name":     o.Name,
			"kind":     o.Kind.String(),
			"position": []any{o.Transform.Position[0], o.Transform.Position[1], o.Transform.Position[2]},
		}
		if o.Parent != "" {
			entry["parent"] = o.Parent
		}
		if len(o.Children) > 0 {
			children := make([]any, len(o.Children))
			for i, c := range o.Children {
				children[i] = c
			}
			entry["children"] = children
		}
		if o.MeshName != "" {
			entry["mesh"] = o.MeshName
		}
		if len(o.Props) > 0 {
			props := make(map[string]any, len(o.Props))
			for k, v := range o.Props {
				props[k] = v
			}
			entry["properties"] = props
		}
		objects = append(objects, entry)
	}

	meshes := make([]any, 0)
	for _, m := range store.Meshes() {
		entry := map[string]any{
			"name":      m.Name,
			"vertices":  len(m.Vertices),
			"triangles": len(m.Triangles),
		}
		if users, err := store.MeshUsers(m.Name); err == nil && len(users) > 1 {
			u := make([]any, len(users))
			for i, name := range users {
				u[i] = name
			}
			entry["instances"] = u
		}
		if m.Material != nil {
			entry["material"] = map[string]any{
				"name": m.Material.Name,
				"rgba": []any{m.Material.RGBA[0], m.Material.RGBA[1], m.Material.RGBA[2], m.Material.RGBA[3]},
			}
		}
		meshes = append(meshes, entry)
	}

	roots := make([]any, 0)
	for _, r := range store.Roots() {
		roots = append(roots, r)
	}

	return map[string]any{
		"objects":      objects,
		"meshes":       meshes,
		"root_objects": roots,
	}
}
