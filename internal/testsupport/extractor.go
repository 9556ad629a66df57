package testsupport

import (
	"context"
	"encoding/json"
	"sync"

	"imgpkg/internal/exif"
	"imgpkg/internal/metadata"
)

// FakeExtractor returns canned facts and records the paths it was asked for.
type FakeExtractor struct {
	Tags map[string]any
	Err  error

	mu    sync.Mutex
	paths []string
}

func (f *FakeExtractor) Extract(ctx context.Context, path string) (exif.Result, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return exif.Result{}, err
	}
	if f.Err != nil {
		return exif.Result{}, f.Err
	}
	obj := map[string]any{"SourceFile": path}
	for k, v := range f.Tags {
		obj[k] = v
	}
	raw, err := json.MarshalIndent([]map[string]any{obj}, "", "  ")
	if err != nil {
		return exif.Result{}, err
	}
	facts, err := exif.Parse(raw)
	if err != nil {
		return exif.Result{}, err
	}
	return exif.Result{Raw: raw, Facts: facts}, nil
}

// Paths returns the paths passed to Extract so far.
func (f *FakeExtractor) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

var _ exif.Extractor = (*FakeExtractor)(nil)

// Facts is a shorthand for building metadata facts in tests.
func Facts(pairs ...string) metadata.Facts {
	facts := metadata.Facts{}
	for i := 0; i+1 < len(pairs); i += 2 {
		facts[pairs[i]] = append(facts[pairs[i]], pairs[i+1])
	}
	return facts
}
