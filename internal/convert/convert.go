// Package convert implements the pluggable ConversionService boundary:
// format testing and image format conversion via an external converter
// process, shelling out and surfacing stderr on failure. The concrete
// converter binary is out of scope, so Service is an interface with an
// os/exec-based default implementation.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	nferrors "namefix/internal/errors"
)

// supportedExts is the case-insensitive extension set the ConversionService
// contract recognizes.
var supportedExts = map[string]bool{
	".heic": true, ".heif": true, ".png": true, ".jpg": true,
	".jpeg": true, ".tiff": true, ".bmp": true, ".gif": true,
}

// DefaultJPEGQuality is applied when Options.Quality is zero and
// OutputFormat is "jpeg".
const DefaultJPEGQuality = 90

// Options parameterizes a single Convert call.
type Options struct {
	OutputFormat string
	OutputDir    string
	Quality      int
}

// Result describes a completed conversion.
type Result struct {
	SrcPath    string
	DestPath   string
	Format     string
	DurationMs int64
}

// Service is the pluggable conversion boundary. Implementations need not
// be safe for concurrent use unless documented otherwise.
type Service interface {
	CanConvert(ext string) bool
	Convert(ctx context.Context, srcPath string, opts Options) (Result, error)
}

// ExecService shells out to an external converter binary for the actual
// pixel work, matching namefix's Non-goal of implementing image codecs
// itself. The binary is looked up via PATH at call time, not at
// construction, so it can be installed/changed without restarting.
type ExecService struct {
	// BinaryName is the external converter's executable name, e.g.
	// "magick" or "heif-convert". Resolved via exec.LookPath per call.
	BinaryName string
	// BuildArgs constructs the argument list for one invocation; it lets
	// callers adapt to whichever converter CLI they have installed
	// without namefix hardcoding a single tool's flag syntax.
	BuildArgs func(srcPath, destPath string, quality int) []string
}

// NewExecService returns an ExecService using the given binary and a
// generic "src dest -quality N" argument convention.
func NewExecService(binaryName string) *ExecService {
	return &ExecService{
		BinaryName: binaryName,
		BuildArgs: func(src, dest string, quality int) []string {
			return []string{src, dest, "-quality", strconv.Itoa(quality)}
		},
	}
}

// CanConvert reports whether ext (case-insensitive, with or without the
// leading dot) is in the supported format set.
func (s *ExecService) CanConvert(ext string) bool {
	return supportedExts[normalizeExt(ext)]
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Convert invokes the external converter to produce destPath from
// srcPath in opts.OutputFormat, collision-resolving the destination name
// with _2, _3, ... suffixes. A non-zero converter exit surfaces its
// stderr in the returned error.
func (s *ExecService) Convert(ctx context.Context, srcPath string, opts Options) (Result, error) {
	start := time.Now()

	quality := opts.Quality
	if quality == 0 && opts.OutputFormat == "jpeg" {
		quality = DefaultJPEGQuality
	}

	destPath := s.resolveDest(srcPath, opts)

	path, err := exec.LookPath(s.BinaryName)
	if err != nil {
		return Result{}, nferrors.NewFileError(
			fmt.Sprintf("converter %q not found on PATH", s.BinaryName),
			srcPath, nferrors.UnsupportedFormat, err)
	}

	args := s.BuildArgs(srcPath, destPath, quality)
	cmd := exec.CommandContext(ctx, path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Result{}, nferrors.NewFileError(
			fmt.Sprintf("conversion to %s failed: %s", opts.OutputFormat, msg),
			srcPath, nferrors.ConversionFailure, err)
	}

	return Result{
		SrcPath:    srcPath,
		DestPath:   destPath,
		Format:     opts.OutputFormat,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (s *ExecService) resolveDest(srcPath string, opts Options) string {
	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(srcPath)
	}

	base := filepath.Base(srcPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext := "." + opts.OutputFormat

	candidate := filepath.Join(dir, stem+ext)
	if !pathExists(candidate) {
		return candidate
	}
	for n := 2; ; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if !pathExists(candidate) {
			return candidate
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
