package exif

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"imgpkg/internal/config"
	"imgpkg/internal/fileutil"
	"imgpkg/internal/logging"
	"imgpkg/internal/metadata"
)

// SidecarName is the package file holding the raw extraction output.
const SidecarName = "original-exif.json"

// ErrNoFacts reports tool output without an object for the file.
var ErrNoFacts = errors.New("exif: no facts in output")

// Result is one extraction: the raw JSON and the facts parsed from it.
type Result struct {
	Raw   []byte
	Facts metadata.Facts
}

// Extractor reads header facts from an image file.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// ExifTool runs the exiftool binary.
type ExifTool struct {
	Binary  string
	Timeout time.Duration
	logger  *slog.Logger
}

// New returns an ExifTool extractor.
func New(binary string, timeout time.Duration, logger *slog.Logger) *ExifTool {
	if strings.TrimSpace(binary) == "" {
		binary = "exiftool"
	}
	return &ExifTool{
		Binary:  binary,
		Timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "exif"),
	}
}

// NewFromConfig returns the configured extractor, or nil when extraction is
// disabled.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) Extractor {
	if cfg == nil || !cfg.Exif.Enabled {
		return nil
	}
	return New(cfg.Exif.Binary, cfg.ExifTimeout(), logger)
}

// Args returns the exiftool arguments used for path.
func Args(path string) []string {
	return []string{"-json", "-G1", "-n", "--", path}
}

func (e *ExifTool) Extract(ctx context.Context, path string) (Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, Args(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("exiftool %s: %w", path, ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return Result{}, fmt.Errorf("exiftool %s: %w", path, err)
		}
		return Result{}, fmt.Errorf("exiftool %s: %w: %s", path, err, detail)
	}

	facts, err := Parse(stdout.Bytes())
	if err != nil {
		return Result{}, fmt.Errorf("exiftool %s: %w", path, err)
	}
	e.logger.Debug("facts extracted",
		logging.Path(path),
		logging.Int("tags", len(facts)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return Result{Raw: bytes.Clone(stdout.Bytes()), Facts: facts}, nil
}

// Parse converts exiftool -json output into facts. Only the first object is
// read. Arrays become multiple values; nested objects are skipped.
func Parse(data []byte) (metadata.Facts, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("parse exiftool json: %w", err)
	}
	if len(objects) == 0 {
		return nil, ErrNoFacts
	}

	facts := metadata.Facts{}
	keys := make([]string, 0, len(objects[0]))
	for k := range objects[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == "SourceFile" {
			continue
		}
		values := flatten(objects[0][key])
		if len(values) == 0 {
			continue
		}
		tag := FoldGroup(key)
		facts[tag] = append(facts[tag], values...)
	}
	return facts, nil
}

// FoldGroup maps "XMP-dc:Subject" to "XMP:Subject"; other tags are returned
// unchanged.
func FoldGroup(tag string) string {
	group, name, ok := strings.Cut(tag, ":")
	if !ok {
		return tag
	}
	if strings.HasPrefix(group, "XMP-") {
		return "XMP:" + name
	}
	return tag
}

func flatten(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case json.Number:
		return []string{val.String()}
	case bool:
		if val {
			return []string{"true"}
		}
		return []string{"false"}
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, flatten(item)...)
		}
		return out
	}
	return nil
}

// WriteSidecar stores raw extraction output at path.
func WriteSidecar(path string, raw []byte) error {
	if err := fileutil.WriteFileAtomic(path, raw, 0o644); err != nil {
		return fmt.Errorf("write exif sidecar: %w", err)
	}
	return nil
}

// ReadSidecar parses a previously written sidecar.
func ReadSidecar(path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read exif sidecar: %w", err)
	}
	facts, err := Parse(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return Result{Raw: raw, Facts: facts}, nil
}
