package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/apexforge/apexcad/internal/bridge"
	"github.com/apexforge/apexcad/internal/config"
	"github.com/apexforge/apexcad/internal/importer"
	"github.com/apexforge/apexcad/internal/logging"
	"github.com/apexforge/apexcad/internal/scene"
)

var retessellateCmd = &cobra.Command{
	Use:   "retessellate [scene.db] [quality]",
	Short: "Re-run the conversion at a new tessellation quality and swap meshes in place",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := args[0]
		quality, err := strconv.ParseFloat(args[1], 64)
		if err != nil || quality <= 0 {
			return fmt.Errorf("quality must be a positive number, got %q", args[1])
		}

		cfgPath, err := config.Path()
		if err != nil {
			return err
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
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

		store, err := scene.LoadSQLite(dbPath)
		if err != nil {
			return fmt.Errorf("load scene: %w", err)
		}

		newConv := func() (importer.Converter, error) {
			return bridge.New(exePath, log)
		}

		start := time.Now()
		fmt.Printf("Retessellating %s at quality %g...\n", dbPath, quality)
		updated, err := importer.Retessellate(cmd.Context(), newConv, store, quality, log)
		if err != nil {
			return err
		}

		if err := scene.SaveSQLite(store, dbPath); err != nil {
			return fmt.Errorf("save scene: %w", err)
		}

		fmt.Printf("Updated %d objects in %v.\n", updated, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retessellateCmd)
}
