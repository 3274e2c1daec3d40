// Package importer replays a converted CAD hierarchy into a scene
// store: object creation, parent linking, name-based hierarchy
// reconstruction, instance detection and axis conversion.
package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/apexforge/apexcad/api"
	"github.com/apexforge/apexcad/internal/bridge"
	"github.com/apexforge/apexcad/internal/meshutil"
	"github.com/apexforge/apexcad/internal/scene"
)

// Phase tracks import progress. Each phase completes fully before the
// next starts; any fatal error short-circuits to PhaseFailed.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseBridgeValidated
	PhaseConverted
	PhaseObjectsCreated
	PhaseParentsLinked
	PhaseHierarchyReconstructed
	PhaseInstancesDetected
	PhaseAxisConverted
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	"NotStarted", "BridgeValidated", "Converted", "ObjectsCreated",
	"ParentsLinked", "HierarchyReconstructed", "InstancesDetected",
	"AxisConverted", "Done", "Failed",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// HierarchyMode selects how imported objects are organized.
type HierarchyMode string

const (
	// ModeCollection groups leaves under a named collection; only
	// reconstructed assembly links create object parenting.
	ModeCollection HierarchyMode = "collection"
	// ModeEmpty parents every leaf under the root empty.
	ModeEmpty HierarchyMode = "empty"
)

// Options control a single import.
type Options struct {
	Scale               float64
	HierarchyMode       HierarchyMode
	YUp                 bool
	ChunkSize           int
	TessellationQuality float64
}

// DefaultOptions mirror the converter-side defaults: millimeters to
// meters, collection grouping, Y-up, 50 objects per progress batch.
func DefaultOptions() Options {
	return Options{
		Scale:               0.001,
		HierarchyMode:       ModeCollection,
		YUp:                 true,
		ChunkSize:           50,
		TessellationQuality: 0.1,
	}
}

// Converter is the bridge surface the importer needs; satisfied by
// *bridge.Bridge and by test fakes.
type Converter interface {
	Validate(ctx context.Context) (string, error)
	Convert(ctx context.Context, inputPath, outputDir string, opts bridge.Options) bridge.Result
	Cleanup()
}

// Importer drives one import into one store. Not reusable across
// imports; the object map and phase are per-run state.
type Importer struct {
	conv  Converter
	store *scene.MemoryStore
	log   *zap.Logger
	phase Phase

	// objectMap maps converter internal names to scene object names.
	// An empty value means the record was registered but skipped (datum
	// or geometry-less leaf); children must always resolve against it.
	objectMap map[string]string
	imported  []string
	rootName  string
}

func New(conv Converter, store *scene.MemoryStore, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{
		conv:      conv,
		store:     store,
		log:       log,
		phase:     PhaseNotStarted,
		objectMap: make(map[string]string),
	}
}

// Phase returns the current import phase.
func (imp *Importer) Phase() Phase { return imp.phase }

// ImportedObjects returns scene object names in creation order. The
// root container is excluded; RootName reports it.
func (imp *Importer) ImportedObjects() []string { return imp.imported }

// RootName returns the name of the root container, set once objects
// have been created.
func (imp *Importer) RootName() string { return imp.rootName }

// Import converts inputPath and replays the result into the store. On
// failure the store is left unmodified and the conversion error string
// is surfaced verbatim.
func (imp *Importer) Import(ctx context.Context, inputPath string, opts Options) (string, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 50
	}
	if opts.Scale == 0 {
		opts.Scale = 1.0
	}

	if _, err := imp.conv.Validate(ctx); err != nil {
		return "", imp.fail(fmt.Errorf("converter validation failed: %w", err))
	}
	imp.phase = PhaseBridgeValidated

	outputDir, err := os.MkdirTemp("", "apexcad_import_")
	if err != nil {
		return "", imp.fail(fmt.Errorf("create output dir: %w", err))
	}
	defer func() {
		imp.conv.Cleanup()
		_ = os.RemoveAll(outputDir)
	}()

	res := imp.conv.Convert(ctx, inputPath, outputDir, bridge.Options{
		Scale:               opts.Scale,
		YUp:                 opts.YUp,
		TessellationQuality: opts.TessellationQuality,
	})
	if !res.Success {
		return "", imp.fail(errors.New(res.Err))
	}
	imp.phase = PhaseConverted

	if err := imp.replay(res.Hierarchy, opts, inputPath); err != nil {
		return "", imp.fail(err)
	}
	imp.phase = PhaseDone
	return fmt.Sprintf("imported %d objects", len(imp.imported)), nil
}

// replay walks the hierarchy document through the creation, linking,
// reconstruction, instancing and axis-conversion passes.
func (imp *Importer) replay(h *api.Hierarchy, opts Options, inputPath string) error {
	if len(h.Objects) == 0 {
		return errors.New("no objects found in file")
	}

	imp.createRoot(inputPath, opts)

	// Pre-register every record so child references always resolve to a
	// (possibly empty) map entry.
	for _, rec := range h.Objects {
		imp.objectMap[rec.InternalName] = ""
	}

	// Fixed-size batches purely to bound per-batch log output; there is
	// no concurrency here.
	total := len(h.Objects)
	chunks := (total + opts.ChunkSize - 1) / opts.ChunkSize
	for ci := 0; ci < chunks; ci++ {
		lo := ci * opts.ChunkSize
		hi := lo + opts.ChunkSize
		if hi > total {
			hi = total
		}
		imp.log.Info("processing batch",
			zap.Int("batch", ci+1), zap.Int("batches", chunks), zap.Int("objects", hi-lo))
		for _, rec := range h.Objects[lo:hi] {
			if err := imp.createObject(rec, opts, inputPath); err != nil {
				return err
			}
		}
	}
	imp.phase = PhaseObjectsCreated

	for _, rec := range h.Objects {
		imp.linkParent(rec)
	}
	imp.phase = PhaseParentsLinked

	reparented := imp.reconstructHierarchy()
	if reparented > 0 {
		imp.log.Info("reconstructed hierarchy links", zap.Int("reparented", reparented))
	}
	imp.phase = PhaseHierarchyReconstructed

	instanced := imp.detectInstances()
	if instanced > 0 {
		imp.log.Info("collapsed duplicate meshes", zap.Int("instances", instanced))
	}
	imp.phase = PhaseInstancesDetected

	if opts.YUp {
		imp.convertAxes()
	}
	imp.phase = PhaseAxisConverted
	return nil
}

// createRoot creates the root container named after the source file.
func (imp *Importer) createRoot(inputPath string, opts Options) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	name := meshutil.SanitizeName(base)
	name = meshutil.UniqueName(name, imp.nameTaken)

	root := &scene.Object{
		Name:      name,
		Kind:      scene.KindEmpty,
		Transform: scene.IdentityTransform(),
	}
	root.SetProp(meshutil.BookkeepingPrefix+"source_file", inputPath)
	root.SetProp(meshutil.BookkeepingPrefix+"scale", opts.Scale)
	root.SetProp(meshutil.BookkeepingPrefix+"y_up", opts.YUp)
	root.SetProp(meshutil.BookkeepingPrefix+"tessellation", opts.TessellationQuality)
	root.SetProp(meshutil.BookkeepingPrefix+"hierarchy_mode", string(opts.HierarchyMode))
	if opts.HierarchyMode == ModeCollection {
		root.SetProp(meshutil.BookkeepingPrefix+"collection", name)
	}
	// The root empty is bookkeeping, not an imported record: it is not
	// counted in ImportedObjects and never competes as a reparent target.
	imp.store.AddObject(root)
	imp.objectMap[name] = name
	imp.rootName = name
}

// createObject creates one scene object for a hierarchy record.
// Containers become empties at the origin (children carry world
// coordinates); datum records and geometry-less leaves are registered
// as skipped. A missing or unparsable mesh file is fatal.
func (imp *Importer) createObject(rec api.Record, opts Options, inputPath string) error {
	if isDatum(rec.Type) {
		imp.log.Debug("skipped datum object",
			zap.String("name", rec.Name), zap.String("type", rec.Type))
		return nil
	}

	name := meshutil.UniqueName(meshutil.SanitizeName(rec.Name), imp.nameTaken)

	if rec.MeshFile == "" {
		if rec.IsLeaf {
			// Leaf without exported geometry: tolerated, not created.
			imp.log.Warn("skipped object without geometry", zap.String("name", rec.Name))
			return nil
		}
		o := &scene.Object{
			Name:      name,
			Kind:      scene.KindEmpty,
			Transform: scene.IdentityTransform(),
			Parent:    "",
		}
		meshutil.FlattenMetadata(o, rec.Metadata)
		imp.store.AddObject(o)
		if err := imp.store.SetParent(name, imp.rootName); err != nil {
			return err
		}
		imp.register(rec.InternalName, name)
		return nil
	}

	mesh, err := meshutil.ParseOBJFile(rec.MeshFile, name)
	if err != nil {
		return fmt.Errorf("mesh for %s: %w", rec.Name, err)
	}
	if opts.Scale != 1.0 {
		mesh.Apply(mgl64.Scale3D(opts.Scale, opts.Scale, opts.Scale))
	}
	mesh.Smooth = true
	mesh.AutoSmoothAngle = 30
	if mat := meshutil.MaterialFromColor("CAD_"+name, rec.Metadata.Color); mat != nil {
		mesh.Material = mat
	}
	imp.store.AddMesh(mesh)

	o := &scene.Object{
		Name:      name,
		Kind:      scene.KindMesh,
		Transform: scene.IdentityTransform(),
		MeshName:  mesh.Name,
	}
	meshutil.FlattenMetadata(o, rec.Metadata)
	o.SetProp(meshutil.BookkeepingPrefix+"original_file", rec.InternalName)
	o.SetProp(meshutil.BookkeepingPrefix+"source_file", inputPath)
	o.SetProp(meshutil.BookkeepingPrefix+"tessellation", opts.TessellationQuality)
	o.SetProp(meshutil.BookkeepingPrefix+"mesh_hash", meshutil.MeshHash(mesh))
	o.SetProp(meshutil.BookkeepingPrefix+"can_retessellate", true)
	if opts.HierarchyMode == ModeCollection {
		o.SetProp(meshutil.BookkeepingPrefix+"collection", imp.rootName)
	}
	imp.store.AddObject(o)
	if opts.HierarchyMode == ModeEmpty {
		if err := imp.store.SetParent(name, imp.rootName); err != nil {
			return err
		}
	}
	imp.register(rec.InternalName, name)
	return nil
}

// linkParent resolves one record's parent reference. Unresolved or
// self-referential links are diagnostics, never fatal; an unresolved
// parent leaves the child at the root.
func (imp *Importer) linkParent(rec api.Record) {
	if rec.Parent == "" {
		return
	}
	childName := imp.objectMap[rec.InternalName]
	if childName == "" {
		return // record was skipped
	}
	parentName, registered := imp.objectMap[rec.Parent]
	if !registered || parentName == "" {
		imp.log.Warn("parent not found, keeping at root",
			zap.String("child", childName), zap.String("parent", rec.Parent))
		if err := imp.store.SetParent(childName, imp.rootName); err != nil {
			imp.log.Warn("link to root failed", zap.String("child", childName), zap.Error(err))
		}
		return
	}
	if parentName == childName {
		imp.log.Warn("self-referential parent link skipped", zap.String("object", childName))
		return
	}
	if err := imp.store.SetParent(childName, parentName); err != nil {
		imp.log.Warn("parent link skipped",
			zap.String("child", childName), zap.String("parent", parentName), zap.Error(err))
	}
}

// convertAxes reconciles the converter's Z-up convention with the Y-up
// target: the root container is rotated a half turn about X, and the
// quarter-turn is baked into each leaf mesh's vertex data.
func (imp *Importer) convertAxes() {
	if root, err := imp.store.GetObject(imp.rootName); err == nil {
		root.Transform.Rotation = mgl64.QuatRotate(-math.Pi, mgl64.Vec3{1, 0, 0})
	}

	rot := mgl64.HomogRotate3DX(-math.Pi / 2)
	done := make(map[string]bool)
	for _, name := range imp.imported {
		o, err := imp.store.GetObject(name)
		if err != nil || o.Kind != scene.KindMesh || done[o.MeshName] {
			continue
		}
		if mesh, err := imp.store.GetMesh(o.MeshName); err == nil {
			mesh.Apply(rot)
			done[o.MeshName] = true
		}
	}
}

// register records a created object and its converter-side name.
func (imp *Importer) register(internalName, objName string) {
	imp.objectMap[internalName] = objName
	imp.imported = append(imp.imported, objName)
}

func (imp *Importer) nameTaken(name string) bool {
	_, err := imp.store.GetObject(name)
	return err == nil
}

func (imp *Importer) fail(err error) error {
	imp.phase = PhaseFailed
	imp.log.Error("import failed", zap.Error(err))
	return err
}

// datumTypePrefixes identify CAD reference features (origins, axes,
// planes) that carry no geometry and are filtered before import.
var datumTypePrefixes = []string{
	"App::Origin",
	"App::Line",
	"App::Plane",
	"PartDesign::CoordinateSystem",
	"PartDesign::Line",
	"PartDesign::Plane",
	"PartDesign::Point",
}

func isDatum(typeTag string) bool {
	for _, p := range datumTypePrefixes {
		if strings.HasPrefix(typeTag, p) {
			return true
		}
	}
	return strings.Contains(typeTag, "Datum")
}
