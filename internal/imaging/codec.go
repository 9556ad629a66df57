package imaging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"imgpkg/internal/fileutil"
	"imgpkg/internal/imaging/icc"
)

// Format names an output encoding.
type Format string

const (
	FormatTIFF Format = "tiff"
	FormatJPEG Format = "jpeg"
)

// SaveOptions controls how Save encodes an image.
type SaveOptions struct {
	Format  Format
	Quality int
	// Profile is embedded in the output; nil writes an untagged file.
	Profile *icc.Profile
}

// Codec is the image capability the derivative pipeline depends on.
type Codec interface {
	Decode(path string) (*Image, error)
	ConvertProfile(img *Image, src, dst *icc.Profile) (*Image, error)
	Resize(img *Image, width, height int) *Image
	Save(img *Image, path string, opts SaveOptions) error
}

// Engine is the pure-Go Codec.
type Engine struct {
	// PreshrinkFactor enables the nearest-neighbour first pass when the source
	// exceeds the target by this factor; values below 2 disable it.
	PreshrinkFactor int
}

// NewEngine returns an Engine with the given pre-shrink factor.
func NewEngine(preshrink int) *Engine {
	return &Engine{PreshrinkFactor: preshrink}
}

// Decode reads path. When the embedded profile is unreadable the decoded
// image is returned together with a *ProfileError.
func (e *Engine) Decode(path string) (*Image, error) {
	return DecodeFile(path)
}

// ConvertProfile converts pixels from src to dst and tags the result with dst.
func (e *Engine) ConvertProfile(img *Image, src, dst *icc.Profile) (*Image, error) {
	t, err := icc.NewTransform(src, dst)
	if err != nil {
		return nil, err
	}
	return &Image{Pixels: t.Apply(img.Pixels), Profile: dst, Format: img.Format}, nil
}

func (e *Engine) Resize(img *Image, width, height int) *Image {
	if img.Width() == width && img.Height() == height {
		return img
	}
	return &Image{
		Pixels:  resize(img.Pixels, width, height, e.PreshrinkFactor),
		Profile: img.Profile,
		Format:  img.Format,
	}
}

// Save encodes img to path atomically.
func (e *Engine) Save(img *Image, path string, opts SaveOptions) error {
	var profile []byte
	if opts.Profile != nil {
		profile = opts.Profile.Raw
	}
	var encode func(io.Writer) error
	switch opts.Format {
	case FormatTIFF:
		encode = func(w io.Writer) error { return encodeTIFF(w, img.Pixels, profile) }
	case FormatJPEG:
		encode = func(w io.Writer) error { return encodeJPEG(w, img.Pixels, opts.Quality, profile) }
	default:
		return fmt.Errorf("save %s: unsupported format %q", path, opts.Format)
	}
	if err := fileutil.WriteAtomic(path, 0o644, encode); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ResolveProfile maps a configured profile reference to a profile: the
// built-in sRGB name (or empty) or a path to an ICC file.
func ResolveProfile(ref string) (*icc.Profile, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.EqualFold(ref, icc.BuiltinSRGB) {
		return icc.SRGB(), nil
	}
	p, err := icc.Load(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("color profile %s: %w", ref, fileutil.ErrPathNotFound)
		}
		return nil, err
	}
	return p, nil
}
