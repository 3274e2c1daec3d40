package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// conversionScript is the Python program FreeCAD executes. It imports
// the CAD file, tessellates every shape, exports one OBJ per leaf part
// and writes hierarchy.json into the output directory. Progress lines
// go to stdout so they end up in the captured process output.
var conversionScript = template.Must(template.New("convert").Parse(`
import FreeCAD
import Import
import Mesh
import os
import json

input_file = r"{{.InputPath}}"
output_dir = r"{{.OutputDir}}"
scale_factor = {{.Scale}}
y_up = {{.YUp}}
tessellation_quality = {{.Quality}}

print("apexcad: starting conversion")
print("apexcad: input %s" % input_file)

try:
    doc = FreeCAD.newDocument("ApexCadImport")

    ext = os.path.splitext(input_file)[1].lower()
    if ext in ['.stp', '.step', '.igs', '.iges']:
        Import.insert(input_file, "ApexCadImport")
    else:
        raise ValueError("unsupported file format: %s" % ext)

    print("apexcad: loaded %d objects" % len(doc.Objects))

    hierarchy = {
        "objects": [],
        "root_objects": [],
        "scale": scale_factor,
        "y_up": y_up,
    }
    object_map = {}

    for idx, obj in enumerate(doc.Objects):
        has_faces = hasattr(obj, 'Shape') and bool(obj.Shape.Faces)
        record = {
            "name": obj.Label,
            "internal_name": obj.Name,
            "type": obj.TypeId,
            "index": idx,
            "metadata": {},
            "parent": None,
            "children": [],
            "is_leaf": has_faces,
        }

        if hasattr(obj, 'Shape'):
            shape = obj.Shape
            record["metadata"]["volume"] = getattr(shape, 'Volume', 0)
            record["metadata"]["area"] = getattr(shape, 'Area', 0)
            try:
                bbox = shape.BoundBox
                record["metadata"]["bbox"] = {
                    "min": [bbox.XMin, bbox.YMin, bbox.ZMin],
                    "max": [bbox.XMax, bbox.YMax, bbox.ZMax],
                }
            except Exception:
                pass

        try:
            color = obj.ViewObject.ShapeColor
            record["metadata"]["color"] = [color[0], color[1], color[2], 1.0]
        except Exception:
            pass

        if hasattr(obj, 'Placement'):
            pos = obj.Placement.Base
            rot = obj.Placement.Rotation
            record["transform"] = {
                "position": [pos.x * scale_factor, pos.y * scale_factor, pos.z * scale_factor],
                "rotation": [rot.Q[0], rot.Q[1], rot.Q[2], rot.Q[3]],
            }

        if hasattr(obj, 'Parents') and obj.Parents:
            record["parent"] = obj.Parents[0][0].Name

        if has_faces:
            mesh_file = os.path.join(output_dir, "%s.obj" % obj.Name)
            try:
                obj.Shape.tessellate(tessellation_quality)
                Mesh.export([obj], mesh_file)
                record["mesh_file"] = mesh_file
                print("apexcad: exported %s -> %s" % (obj.Label, mesh_file))
            except Exception as e:
                print("apexcad: warning - export failed for %s: %s" % (obj.Label, e))

        hierarchy["objects"].append(record)
        object_map[obj.Name] = record

    for record in hierarchy["objects"]:
        if record["parent"]:
            parent = object_map.get(record["parent"])
            if parent:
                parent["children"].append(record["internal_name"])
        else:
            hierarchy["root_objects"].append(record["internal_name"])

    with open(os.path.join(output_dir, "hierarchy.json"), 'w') as f:
        json.dump(hierarchy, f, indent=2)

    print("apexcad: conversion complete, %d objects" % len(hierarchy["objects"]))
    FreeCAD.closeDocument("ApexCadImport")

except Exception as e:
    print("apexcad: ERROR - %s" % e)
    import traceback
    traceback.print_exc()
    exit(1)
`))

type scriptParams struct {
	InputPath string
	OutputDir string
	Scale     float64
	YUp       string // Python literal
	Quality   float64
}

// writeScript renders the conversion script into the bridge temp dir
// and returns its path.
func (b *Bridge) writeScript(inputPath, outputDir string, opts Options) (string, error) {
	params := scriptParams{
		InputPath: inputPath,
		OutputDir: outputDir,
		Scale:     opts.Scale,
		YUp:       pyBool(opts.YUp),
		Quality:   opts.TessellationQuality,
	}
	scriptPath := filepath.Join(b.tempDir, "convert_script.py")
	f, err := os.Create(scriptPath)
	if err != nil {
		return "", fmt.Errorf("create script: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := conversionScript.Execute(f, params); err != nil {
		return "", fmt.Errorf("render script: %w", err)
	}
	return scriptPath, nil
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
