package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apexforge/apexcad/internal/bridge"
	"github.com/apexforge/apexcad/internal/config"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Locate the FreeCAD executable and record it in the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exePath, err := bridge.DetectExecutable()
		if err != nil {
			return fmt.Errorf("no FreeCAD installation found: %w", err)
		}
		fmt.Printf("Found FreeCAD executable: %s\n", exePath)

		cfgPath, err := config.Path()
		if err != nil {
			return err
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.FreeCADPath = exePath
		if err := config.Save(cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", cfgPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
