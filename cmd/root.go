package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apexforge/apexcad/internal/bridge"
	"github.com/apexforge/apexcad/internal/config"
	"github.com/apexforge/apexcad/internal/importer"
	"github.com/apexforge/apexcad/internal/logging"
	"github.com/apexforge/apexcad/internal/scene"
)

var (
	scaleFlag     string
	hierarchyFlag string
	yUpFlag       bool
	chunkSizeFlag int
	qualityFlag   float64
	freecadFlag   string
	verboseFlag   bool
)

// scalePresets maps unit shorthands to scene scale factors. CAD kernels
// work in millimetres; the scene works in metres.
var scalePresets = map[string]float64{
	"mm": 0.001,
	"cm": 0.01,
	"m":  1.0,
	"in": 0.0254,
	"ft": 0.3048,
}

func init() {
	rootCmd.Flags().StringVar(&scaleFlag, "scale", "mm", "Unit preset (mm, cm, m, in, ft) or a custom scale factor")
	rootCmd.Flags().StringVar(&hierarchyFlag, "hierarchy", string(importer.ModeCollection), "Hierarchy mode: collection or empty")
	rootCmd.Flags().BoolVar(&yUpFlag, "y-up", true, "Convert from Z-up CAD axes to Y-up scene axes")
	rootCmd.Flags().IntVar(&chunkSizeFlag, "chunk-size", 50, "Objects created per progress report")
	rootCmd.Flags().Float64VarP(&qualityFlag, "quality", "q", 0.1, "Tessellation quality (linear deflection, lower = finer)")
	rootCmd.Flags().StringVar(&freecadFlag, "freecad", "", "Path to the FreeCAD executable (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "apexcad [file.step] [scene.db]",
	Short: "ApexCAD: import STEP/IGES assemblies into a portable scene database",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath := args[0]
		outputPath := ""
		if len(args) == 2 {
			outputPath = args[1]
		} else {
			base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
			outputPath = base + ".db"
		}

		cfgPath, err := config.Path()
		if err != nil {
			return err
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		opts, err := importOptions(cmd, cfg)
		if err != nil {
			return err
		}

		log, err := logging.New(verboseFlag)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		exePath := freecadFlag
		if exePath == "" {
			exePath = cfg.FreeCADPath
		}
		if exePath == "" {
			exePath, err = bridge.DetectExecutable()
			if err != nil {
				return fmt.Errorf("no FreeCAD executable configured; run 'apexcad detect' or pass --freecad: %w", err)
			}
		}

		conv, err := bridge.New(exePath, log)
		if err != nil {
			return err
		}

		store := scene.NewMemoryStore()
		imp := importer.New(conv, store, log)

		start := time.Now()
		fmt.Printf("Importing %s...\n", inputPath)
		if _, err := imp.Import(cmd.Context(), inputPath, opts); err != nil {
			return err
		}

		if err := scene.SaveSQLite(store, outputPath); err != nil {
			return fmt.Errorf("save scene: %w", err)
		}

		fmt.Printf("Imported %d objects into %s in %v.\n",
			len(imp.ImportedObjects()), outputPath, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// importOptions merges config defaults with explicit flags. A flag the
// user set wins over the config value.
func importOptions(cmd *cobra.Command, cfg config.Config) (importer.Options, error) {
	opts := importer.DefaultOptions()

	if cfg.DefaultScale != 0 {
		opts.Scale = cfg.DefaultScale
	}
	if cfg.HierarchyMode != "" {
		opts.HierarchyMode = importer.HierarchyMode(cfg.HierarchyMode)
	}
	opts.YUp = cfg.YUp
	if cfg.ChunkSize != 0 {
		opts.ChunkSize = cfg.ChunkSize
	}
	if cfg.TessellationQuality != 0 {
		opts.TessellationQuality = cfg.TessellationQuality
	}

	if cmd.Flags().Changed("scale") || cfg.DefaultScale == 0 {
		scale, err := parseScale(scaleFlag)
		if err != nil {
			return opts, err
		}
		opts.Scale = scale
	}
	if cmd.Flags().Changed("hierarchy") || cfg.HierarchyMode == "" {
		switch importer.HierarchyMode(hierarchyFlag) {
		case importer.ModeCollection, importer.ModeEmpty:
			opts.HierarchyMode = importer.HierarchyMode(hierarchyFlag)
		default:
			return opts, fmt.Errorf("unknown hierarchy mode %q (want collection or empty)", hierarchyFlag)
		}
	}
	if cmd.Flags().Changed("y-up") {
		opts.YUp = yUpFlag
	}
	if cmd.Flags().Changed("chunk-size") {
		opts.ChunkSize = chunkSizeFlag
	}
	if cmd.Flags().Changed("quality") {
		opts.TessellationQuality = qualityFlag
	}

	return opts, nil
}

// parseScale accepts a unit preset name or a literal factor.
func parseScale(s string) (float64, error) {
	if scale, ok := scalePresets[strings.ToLower(s)]; ok {
		return scale, nil
	}
	scale, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown scale %q (want mm, cm, m, in, ft or a number)", s)
	}
	if scale <= 0 {
		return 0, fmt.Errorf("scale must be positive, got %v", scale)
	}
	return scale, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
