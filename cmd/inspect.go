package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/ohler55/ojg/pretty"
	"github.com/spf13/cobra"

	"github.com/apexforge/apexcad/internal/scene"
)

var queryFlag string

var inspectCmd = &cobra.Command{
	Use:   "inspect [hierarchy.json|scene.db]",
	Short: "Query an imported scene or a raw hierarchy file with JSONPath",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		doc, err := loadDocument(path)
		if err != nil {
			return err
		}

		if queryFlag == "" {
			fmt.Println(pretty.JSON(doc, 80.4))
			return nil
		}

		x, err := jp.ParseString(queryFlag)
		if err != nil {
			return fmt.Errorf("invalid jsonpath '%s': %w", queryFlag, err)
		}

		results := x.Get(doc)
		if len(results) == 0 {
			return fmt.Errorf("no matches for %s", queryFlag)
		}
		for _, r := range results {
			fmt.Println(pretty.JSON(r, 80.4))
		}
		return nil
	},
}

// loadDocument parses either a raw hierarchy.json from the converter or
// an imported scene database into a queryable document.
func loadDocument(path string) (any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := oj.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return doc, nil
	case ".db", ".sqlite":
		store, err := scene.LoadSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("load scene: %w", err)
		}
		return scene.ExportDocument(store), nil
	default:
		return nil, fmt.Errorf("unsupported file type %s (want .json or .db)", path)
	}
}

func init() {
	inspectCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "JSONPath selector, e.g. $.objects[?(@.kind=='mesh')].name")
	rootCmd.AddCommand(inspectCmd)
}
