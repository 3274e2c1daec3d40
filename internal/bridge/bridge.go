// Package bridge drives the external FreeCAD command-line interface:
// it generates a conversion script, runs it with a size-scaled timeout
// and parses the hierarchy document the process writes. FreeCAD is
// treated as an opaque converter — input file plus options in,
// hierarchy.json plus OBJ meshes out, or an error.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/apexforge/apexcad/api"
)

const (
	// validateTimeout bounds the --version probe.
	validateTimeout = 10 * time.Second
	// baseTimeout plus perMBTimeout per megabyte of input, capped at
	// maxTimeout, bounds a conversion run.
	baseTimeout  = 60 * time.Second
	perMBTimeout = 10 * time.Second
	maxTimeout   = 600 * time.Second

	// pipeWaitDelay bounds how long Run waits on the output pipes after
	// the deadline kills the converter. FreeCAD forks workers that
	// inherit the pipes and can outlive it.
	pipeWaitDelay = 5 * time.Second

	hierarchyFileName = "hierarchy.json"
)

// ErrTimeout marks a conversion that exceeded its computed deadline.
var ErrTimeout = errors.New("conversion timed out")

// Options parameterize a single conversion.
type Options struct {
	// Scale is the unit scale factor applied by the converter.
	Scale float64
	// YUp requests Y-up axis convention in the import step.
	YUp bool
	// TessellationQuality controls mesh density; lower is finer.
	TessellationQuality float64
}

// Result is the outcome of one conversion attempt. Success carries the
// hierarchy and output directory; failure carries the error message and
// whatever the process printed. Process-level failures are data, not Go
// errors: the caller decides whether to retry or surface them.
type Result struct {
	Success   bool
	Hierarchy *api.Hierarchy
	OutputDir string
	// Err is the failure message, surfaced verbatim to the user.
	Err string
	// Output is the captured process stdout for diagnostics.
	Output string
	// TimedOut distinguishes a timeout from other conversion failures.
	TimedOut bool
}

// Bridge owns one converter executable and a temp dir for generated
// scripts. It is not safe for concurrent conversions; create one bridge
// per import.
type Bridge struct {
	exePath   string
	tempDir   string
	log       *zap.Logger
	validated bool
}

// New creates a bridge for the given FreeCAD executable.
func New(exePath string, log *zap.Logger) (*Bridge, error) {
	if exePath == "" {
		return nil, errors.New("converter path not configured")
	}
	if _, err := os.Stat(exePath); err != nil {
		return nil, fmt.Errorf("converter not found at %s: %w", exePath, err)
	}
	tempDir, err := os.MkdirTemp("", "apexcad_")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{exePath: exePath, tempDir: tempDir, log: log}, nil
}

// Validate probes the executable with --version under a short timeout
// and returns the reported version string. The result is cached; a
// bridge validates at most once.
func (b *Bridge) Validate(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.exePath, "--version")
	cmd.WaitDelay = pipeWaitDelay
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("converter validation timed out (>%s)", validateTimeout)
	}
	if err != nil {
		return "", fmt.Errorf("converter failed to execute: %w", err)
	}
	version := strings.TrimSpace(string(out))
	b.validated = true
	b.log.Info("converter validated", zap.String("path", b.exePath), zap.String("version", version))
	return version, nil
}

// Validated reports whether the version probe has succeeded.
func (b *Bridge) Validated() bool { return b.validated }

// Convert runs one conversion synchronously, blocking up to the
// computed timeout. One attempt per call; no retry.
func (b *Bridge) Convert(ctx context.Context, inputPath, outputDir string, opts Options) Result {
	info, err := os.Stat(inputPath)
	if err != nil {
		return failure(fmt.Sprintf("input file not found: %s", inputPath), "")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return failure(fmt.Sprintf("create output dir: %v", err), "")
	}

	scriptPath, err := b.writeScript(inputPath, outputDir, opts)
	if err != nil {
		return failure(fmt.Sprintf("generate conversion script: %v", err), "")
	}

	timeout := timeoutFor(info.Size())
	b.log.Info("starting conversion",
		zap.String("input", inputPath),
		zap.Int64("size_bytes", info.Size()),
		zap.Duration("timeout", timeout))

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.exePath, "-c", scriptPath)
	cmd.WaitDelay = pipeWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		b.log.Warn("conversion timed out", zap.Duration("timeout", timeout))
		return Result{Success: false, Err: ErrTimeout.Error(), Output: stdout.String(), TimedOut: true}
	}
	if runErr != nil {
		msg := fmt.Sprintf("conversion failed: %v", runErr)
		if s := strings.TrimSpace(stderr.String()); s != "" {
			msg = fmt.Sprintf("%s: %s", msg, s)
		}
		return failure(msg, stdout.String())
	}

	hierarchyPath := filepath.Join(outputDir, hierarchyFileName)
	data, err := os.ReadFile(hierarchyPath)
	if err != nil {
		return failure("hierarchy file not generated", stdout.String())
	}
	var h api.Hierarchy
	if err := json.Unmarshal(data, &h); err != nil {
		return failure(fmt.Sprintf("parse hierarchy file: %v", err), stdout.String())
	}

	b.log.Info("conversion complete", zap.Int("objects", len(h.Objects)))
	return Result{Success: true, Hierarchy: &h, OutputDir: outputDir, Output: stdout.String()}
}

// Cleanup removes the bridge's temp dir. Failures are ignored — the
// directory lives under the system temp root.
func (b *Bridge) Cleanup() {
	_ = os.RemoveAll(b.tempDir)
}

// timeoutFor scales the conversion timeout with the input size: 60s
// base plus 10s per megabyte, capped at 600s.
func timeoutFor(sizeBytes int64) time.Duration {
	mb := float64(sizeBytes) / (1024 * 1024)
	t := baseTimeout + time.Duration(mb*float64(perMBTimeout))
	if t > maxTimeout {
		return maxTimeout
	}
	return t
}

func failure(msg, output string) Result {
	return Result{Success: false, Err: msg, Output: output}
}
