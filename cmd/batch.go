package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apexforge/apexcad/internal/bridge"
	"github.com/apexforge/apexcad/internal/config"
	"github.com/apexforge/apexcad/internal/importer"
	"github.com/apexforge/apexcad/internal/logging"
	"github.com/apexforge/apexcad/internal/scene"
)

// cadExtensions are the file types the converter accepts.
var cadExtensions = map[string]bool{
	".step": true,
	".stp":  true,
	".iges": true,
	".igs":  true,
}

var batchCmd = &cobra.Command{
	Use:   "batch [dir] [outdir]",
	Short: "Import every STEP/IGES file in a folder, one scene database each",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceDir := args[0]
		outDir := sourceDir
		if len(args) == 2 {
			outDir = args[1]
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

		entries, err := os.ReadDir(sourceDir)
		if err != nil {
			return fmt.Errorf("read source dir: %w", err)
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		async := cfg.AsyncImport
		if cmd.Flags().Changed("async") {
			async, _ = cmd.Flags().GetBool("async")
		}

		var jobs []batchJob
		for _, entry := range entries {
			if entry.IsDir() || !cadExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			jobs = append(jobs, batchJob{
				input:  filepath.Join(sourceDir, entry.Name()),
				output: filepath.Join(outDir, base+".db"),
			})
		}

		imported, failed := 0, 0
		start := time.Now()
		if async {
			imported, failed = runBatchAsync(cmd, exePath, jobs, opts, log)
		} else {
			for _, job := range jobs {
				fmt.Printf("Importing %s...\n", job.input)
				if err := importOne(cmd, exePath, job.input, job.output, opts, log); err != nil {
					// One bad file must not abort the rest of the folder.
					fmt.Fprintf(os.Stderr, "  failed: %v\n", err)
					failed++
					continue
				}
				imported++
			}
		}

		if imported == 0 && failed == 0 {
			return fmt.Errorf("no CAD files found in %s", sourceDir)
		}
		fmt.Printf("Batch done: %d imported, %d failed in %v.\n",
			imported, failed, time.Since(start).Round(time.Millisecond))
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, imported+failed)
		}
		return nil
	},
}

type batchJob struct {
	input  string
	output string
}

// runBatchAsync imports every job concurrently. Each job owns its bridge,
// temp dir and store, so the only shared state is the two counters.
func runBatchAsync(cmd *cobra.Command, exePath string, jobs []batchJob, opts importer.Options, log *zap.Logger) (imported, failed int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, job := range jobs {
		wg.Add(1)
		go func(job batchJob) {
			defer wg.Done()
			fmt.Printf("Importing %s...\n", job.input)
			err := importOne(cmd, exePath, job.input, job.output, opts, log)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(os.Stderr, "  %s failed: %v\n", job.input, err)
				failed++
				return
			}
			imported++
		}(job)
	}
	wg.Wait()
	return imported, failed
}

// importOne runs the full pipeline for a single file with a fresh bridge
// and store, so per-file temp dirs and state never leak between imports.
func importOne(cmd *cobra.Command, exePath, inputPath, outputPath string, opts importer.Options, log *zap.Logger) error {
	conv, err := bridge.New(exePath, log)
	if err != nil {
		return err
	}
	store := scene.NewMemoryStore()
	imp := importer.New(conv, store, log)
	if _, err := imp.Import(cmd.Context(), inputPath, opts); err != nil {
		return err
	}
	return scene.SaveSQLite(store, outputPath)
}

func init() {
	batchCmd.Flags().Bool("async", false, "import files concurrently")
	rootCmd.AddCommand(batchCmd)
}
