package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/apexforge/apexcad/internal/meshutil"
	"github.com/apexforge/apexcad/internal/scene"
)

// Retessellate re-runs the whole pipeline against every source file
// recorded in the store and swaps the resulting mesh data into the
// existing objects in place. Transforms, parenting, instancing and
// custom properties survive; only geometry and the recorded quality
// change. newConv builds a fresh converter per source file, since a
// bridge's temp dir is consumed by one import.
func Retessellate(ctx context.Context, newConv func() (Converter, error), store *scene.MemoryStore, quality float64, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Group retessellatable objects by their recorded source file.
	bySource := make(map[string][]*scene.Object)
	var sources []string
	for _, o := range store.Objects() {
		can, _ := o.Prop(meshutil.BookkeepingPrefix + "can_retessellate").(bool)
		src, _ := o.Prop(meshutil.BookkeepingPrefix + "source_file").(string)
		if !can || src == "" || o.Kind != scene.KindMesh {
			continue
		}
		if _, seen := bySource[src]; !seen {
			sources = append(sources, src)
		}
		bySource[src] = append(bySource[src], o)
	}
	if len(sources) == 0 {
		return 0, fmt.Errorf("no retessellatable objects in scene")
	}

	swapped := 0
	for _, src := range sources {
		opts := recordedOptions(store, src)
		opts.TessellationQuality = quality

		conv, err := newConv()
		if err != nil {
			return swapped, err
		}
		fresh := scene.NewMemoryStore()
		imp := New(conv, fresh, log)
		if _, err := imp.Import(ctx, src, opts); err != nil {
			return swapped, fmt.Errorf("reconvert %s: %w", src, err)
		}

		// Index the fresh import by converter internal name.
		freshByInternal := make(map[string]*scene.Object)
		for _, o := range fresh.Objects() {
			if internal, _ := o.Prop(meshutil.BookkeepingPrefix + "original_file").(string); internal != "" {
				freshByInternal[internal] = o
			}
		}

		swappedBlocks := make(map[string]bool)
		for _, target := range bySource[src] {
			internal, _ := target.Prop(meshutil.BookkeepingPrefix + "original_file").(string)
			replacement, ok := freshByInternal[internal]
			if !ok || replacement.MeshName == "" {
				log.Warn("no replacement geometry for object",
					zap.String("object", target.Name), zap.String("internal", internal))
				continue
			}
			newMesh, err := fresh.GetMesh(replacement.MeshName)
			if err != nil {
				continue
			}
			target.SetProp(meshutil.BookkeepingPrefix+"tessellation", quality)
			target.SetProp(meshutil.BookkeepingPrefix+"mesh_hash", meshutil.MeshHash(newMesh))

			// Shared data blocks are swapped once; every instance sees
			// the new geometry through the shared reference.
			if swappedBlocks[target.MeshName] {
				continue
			}
			old, err := store.GetMesh(target.MeshName)
			if err != nil {
				log.Warn("mesh data block missing", zap.String("object", target.Name))
				continue
			}
			old.Vertices = newMesh.Vertices
			old.Triangles = newMesh.Triangles
			swappedBlocks[target.MeshName] = true
			swapped++
		}
		log.Info("retessellated source",
			zap.String("source", src), zap.Float64("quality", quality),
			zap.Int("swapped_blocks", len(swappedBlocks)))
	}
	return swapped, nil
}

// recordedOptions restores the options the original import ran with,
// from the root container's bookkeeping properties.
func recordedOptions(store *scene.MemoryStore, source string) Options {
	opts := DefaultOptions()
	for _, name := range store.Roots() {
		root, err := store.GetObject(name)
		if err != nil {
			continue
		}
		src, _ := root.Prop(meshutil.BookkeepingPrefix + "source_file").(string)
		if src != source {
			continue
		}
		if v, ok := root.Prop(meshutil.BookkeepingPrefix + "scale").(float64); ok && v != 0 {
			opts.Scale = v
		}
		if v, ok := root.Prop(meshutil.BookkeepingPrefix + "y_up").(bool); ok {
			opts.YUp = v
		}
		if v, ok := root.Prop(meshutil.BookkeepingPrefix + "hierarchy_mode").(string); ok && v != "" {
			opts.HierarchyMode = HierarchyMode(v)
		}
		break
	}
	return opts
}
