package importer

import (
	"go.uber.org/zap"

	"github.com/apexforge/apexcad/internal/meshutil"
	"github.com/apexforge/apexcad/internal/scene"
)

// detectInstances collapses duplicate meshes to shared data blocks.
// Objects are grouped by the weak mesh fingerprint; within a group a
// sampled-vertex comparison confirms identity before a duplicate's
// data block is replaced by the reference one. Transforms stay
// per-object. Returns the number of instances created.
func (imp *Importer) detectInstances() int {
	groups := make(map[string][]string)
	var hashes []string
	for _, objName := range imp.imported {
		o, err := imp.store.GetObject(objName)
		if err != nil || o.Kind != scene.KindMesh {
			continue
		}
		hash, _ := o.Prop(meshutil.BookkeepingPrefix + "mesh_hash").(string)
		if hash == "" {
			continue
		}
		if _, seen := groups[hash]; !seen {
			hashes = append(hashes, hash)
		}
		groups[hash] = append(groups[hash], objName)
	}

	instances := 0
	for _, hash := range hashes {
		members := groups[hash]
		if len(members) < 2 {
			continue
		}

		refObj, err := imp.store.GetObject(members[0])
		if err != nil {
			continue
		}
		refMesh, err := imp.store.GetMesh(refObj.MeshName)
		if err != nil {
			continue
		}

		for _, name := range members[1:] {
			o, err := imp.store.GetObject(name)
			if err != nil || o.MeshName == refMesh.Name {
				continue
			}
			dup, err := imp.store.GetMesh(o.MeshName)
			if err != nil {
				continue
			}
			// The fingerprint can collide; only verified duplicates
			// collapse.
			if !meshutil.MeshesIdentical(refMesh, dup) {
				imp.log.Debug("fingerprint collision, not instancing",
					zap.String("object", name), zap.String("hash", hash))
				continue
			}
			oldMesh := o.MeshName
			if err := imp.store.SetMesh(name, refMesh.Name); err != nil {
				imp.log.Warn("instancing skipped", zap.String("object", name), zap.Error(err))
				continue
			}
			imp.store.RemoveMesh(oldMesh)
			instances++
			imp.log.Debug("converted to instance",
				zap.String("object", name), zap.String("mesh", refMesh.Name))
		}
	}
	return instances
}
