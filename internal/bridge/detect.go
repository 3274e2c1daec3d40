package bridge

import (
	"errors"
	"os"
	"os/exec"
)

// candidateBinaries are tried on PATH, in order.
var candidateBinaries = []string{"freecadcmd", "FreeCADCmd", "freecad"}

// wellKnownPaths are fixed install locations checked after PATH lookup.
var wellKnownPaths = []string{
	`C:\Program Files\FreeCAD 0.21\bin\FreeCADCmd.exe`,
	`C:\Program Files\FreeCAD 0.20\bin\FreeCADCmd.exe`,
	`C:\Program Files\FreeCAD\bin\FreeCADCmd.exe`,
	"/usr/bin/freecadcmd",
	"/usr/bin/freecad",
	"/usr/local/bin/freecadcmd",
	"/usr/local/bin/freecad",
	"/Applications/FreeCAD.app/Contents/MacOS/FreeCAD",
}

// DetectExecutable locates a FreeCAD executable via PATH and well-known
// install locations.
func DetectExecutable() (string, error) {
	for _, name := range candidateBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, path := range wellKnownPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("FreeCAD executable not found; set the path in the config file")
}
