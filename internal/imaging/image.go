package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imgpkg/internal/imaging/icc"
)

// Image is decoded pixel data plus the profile it was tagged with.
type Image struct {
	Pixels *image.NRGBA
	// Profile is nil when the source carried no usable embedded profile.
	Profile *icc.Profile
	Format  string
}

func (i *Image) Width() int  { return i.Pixels.Rect.Dx() }
func (i *Image) Height() int { return i.Pixels.Rect.Dy() }

// DecodeFile reads path and decodes it, including any embedded profile. A
// profile that fails to parse is reported through ProfileError so callers
// can fall back to a default.
func DecodeFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes is DecodeFile over an in-memory encoding.
func DecodeBytes(data []byte) (*Image, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img := &Image{Pixels: toNRGBA(src), Format: format}

	raw := embeddedProfile(format, data)
	if len(raw) == 0 {
		return img, nil
	}
	profile, err := icc.Parse(raw)
	if err != nil {
		return img, &ProfileError{Err: err}
	}
	img.Profile = profile
	return img, nil
}

// ProfileError accompanies a successfully decoded image whose embedded
// profile could not be parsed.
type ProfileError struct {
	Err error
}

func (e *ProfileError) Error() string { return "embedded profile: " + e.Err.Error() }

func (e *ProfileError) Unwrap() error { return e.Err }

func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
