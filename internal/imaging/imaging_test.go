package imaging

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"imgpkg/internal/fileutil"
	"imgpkg/internal/imaging/icc"
)

func pattern(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{uint8(40 * x), uint8(90 * y), uint8(17*x + 3*y), 255})
		}
	}
	return img
}

func uniform(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestTIFFRoundTrip(t *testing.T) {
	engine := NewEngine(3)
	path := filepath.Join(t.TempDir(), "master.tif")
	src := &Image{Pixels: pattern(5, 3)}
	if err := engine.Save(src, path, SaveOptions{Format: FormatTIFF, Profile: icc.SRGB()}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := engine.Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Format != "tiff" || got.Width() != 5 || got.Height() != 3 {
		t.Fatalf("unexpected decode %s %dx%d", got.Format, got.Width(), got.Height())
	}
	if !got.Profile.Same(icc.SRGB()) {
		t.Fatalf("expected embedded sRGB profile, got %v", got.Profile)
	}
	for y := range 3 {
		for x := range 5 {
			if got.Pixels.NRGBAAt(x, y) != src.Pixels.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got.Pixels.NRGBAAt(x, y), src.Pixels.NRGBAAt(x, y))
			}
		}
	}
}

func TestTIFFWithoutProfile(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeTIFF(&buf, pattern(2, 2), nil); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if img.Profile != nil {
		t.Fatalf("expected no profile, got %v", img.Profile)
	}
}

func TestJPEGEmbedsProfile(t *testing.T) {
	engine := NewEngine(3)
	dir := t.TempDir()
	tagged := filepath.Join(dir, "preview.jpg")
	if err := engine.Save(&Image{Pixels: pattern(8, 8)}, tagged, SaveOptions{Format: FormatJPEG, Quality: 80, Profile: icc.SRGB()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	img, err := engine.Decode(tagged)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Format != "jpeg" || !img.Profile.Same(icc.SRGB()) {
		t.Fatalf("expected sRGB-tagged jpeg, got %s %v", img.Format, img.Profile)
	}

	plain := filepath.Join(dir, "plain.jpg")
	if err := engine.Save(&Image{Pixels: pattern(8, 8)}, plain, SaveOptions{Format: FormatJPEG}); err != nil {
		t.Fatal(err)
	}
	img, err = engine.Decode(plain)
	if err != nil {
		t.Fatal(err)
	}
	if img.Profile != nil {
		t.Fatalf("expected untagged jpeg, got %v", img.Profile)
	}
}

func TestSaveRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gif")
	if err := NewEngine(3).Save(&Image{Pixels: pattern(1, 1)}, path, SaveOptions{Format: "gif"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if fileutil.Exists(path) {
		t.Fatal("unsupported format should not create a file")
	}
}

func TestSpliceICCSplitsLargeProfiles(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pattern(4, 4), nil); err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, 150000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	spliced := spliceICC(buf.Bytes(), payload)
	if got := jpegProfile(spliced); !bytes.Equal(got, payload) {
		t.Fatalf("reassembled %d bytes, want %d", len(got), len(payload))
	}
	if _, err := jpeg.Decode(bytes.NewReader(spliced)); err != nil {
		t.Fatalf("spliced jpeg no longer decodes: %v", err)
	}
}

func TestJPEGProfileMissingChunk(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pattern(2, 2), nil); err != nil {
		t.Fatal(err)
	}
	spliced := spliceICC(buf.Bytes(), make([]byte, 2*maxJPEGChunk+10))
	// Drop the second segment.
	first := 2 + 2 + int(binary.BigEndian.Uint16(spliced[4:6]))
	second := 2 + int(binary.BigEndian.Uint16(spliced[first+2:first+4]))
	broken := append(append([]byte(nil), spliced[:first]...), spliced[first+second:]...)
	if got := jpegProfile(broken); got != nil {
		t.Fatalf("expected nil for incomplete chunk sequence, got %d bytes", len(got))
	}
}

func TestCorruptProfileIsReported(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, pattern(2, 2), nil); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeBytes(spliceICC(buf.Bytes(), []byte("definitely not icc")))
	var perr *ProfileError
	if !errors.As(err, &perr) || !errors.Is(err, icc.ErrMalformed) {
		t.Fatalf("expected ProfileError wrapping ErrMalformed, got %v", err)
	}
	if img == nil || img.Width() != 2 {
		t.Fatal("expected pixels alongside profile error")
	}
}

func pngWithICC(t *testing.T, profile []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, pattern(3, 3)); err != nil {
		t.Fatal(err)
	}
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, _ = zw.Write(profile)
	_ = zw.Close()

	body := append([]byte("sRGB\x00\x00"), z.Bytes()...)
	chunk := binary.BigEndian.AppendUint32(nil, uint32(len(body)))
	chunk = append(chunk, "iCCP"...)
	chunk = append(chunk, body...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	data := buf.Bytes()
	const afterIHDR = 8 + 25
	out := append([]byte(nil), data[:afterIHDR]...)
	out = append(out, chunk...)
	return append(out, data[afterIHDR:]...)
}

func TestPNGICCPChunk(t *testing.T) {
	img, err := DecodeBytes(pngWithICC(t, icc.SRGB().Raw))
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if img.Format != "png" || !img.Profile.Same(icc.SRGB()) {
		t.Fatalf("expected sRGB-tagged png, got %s %v", img.Format, img.Profile)
	}
}

func TestWebPProfileChunk(t *testing.T) {
	data := []byte("RIFF\x00\x00\x00\x00WEBP")
	data = append(data, "VP8X"...)
	data = binary.LittleEndian.AppendUint32(data, 10)
	data = append(data, make([]byte, 10)...)
	data = append(data, "ICCP"...)
	data = binary.LittleEndian.AppendUint32(data, 3)
	data = append(data, 'a', 'b', 'c', 0)
	if got := webpProfile(data); string(got) != "abc" {
		t.Fatalf("webpProfile = %q", got)
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, boxW, boxH int
		wantW, wantH     int
	}{
		{4000, 3000, 800, 600, 800, 600},
		{3000, 4000, 800, 600, 450, 600},
		{100, 50, 800, 600, 100, 50},
		{1000, 10, 128, 128, 128, 1},
		{801, 600, 800, 600, 800, 599},
		{800, 600, 128, 128, 128, 96},
	}
	for _, tt := range tests {
		w, h := FitWithin(tt.w, tt.h, tt.boxW, tt.boxH)
		if w != tt.wantW || h != tt.wantH {
			t.Fatalf("FitWithin(%d,%d,%d,%d) = %dx%d, want %dx%d", tt.w, tt.h, tt.boxW, tt.boxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestPreshrinkDoesNotChangeOutputShape(t *testing.T) {
	c := color.NRGBA{200, 120, 40, 255}
	src := &Image{Pixels: uniform(1000, 600, c), Profile: icc.SRGB()}
	w, h := FitWithin(1000, 600, 100, 100)

	fast := NewEngine(3).Resize(src, w, h)
	slow := NewEngine(0).Resize(src, w, h)
	for _, img := range []*Image{fast, slow} {
		if img.Width() != 100 || img.Height() != 60 {
			t.Fatalf("unexpected size %dx%d", img.Width(), img.Height())
		}
		if img.Profile != src.Profile {
			t.Fatal("resize dropped the profile")
		}
		got := img.Pixels.NRGBAAt(50, 30)
		if absDiff(got.R, c.R) > 1 || absDiff(got.G, c.G) > 1 || absDiff(got.B, c.B) > 1 {
			t.Fatalf("center pixel %v, want %v", got, c)
		}
	}
}

func TestResizeSameSizeReturnsInput(t *testing.T) {
	src := &Image{Pixels: pattern(4, 4)}
	if NewEngine(3).Resize(src, 4, 4) != src {
		t.Fatal("expected no-op resize to return the input")
	}
}

func TestResolveProfile(t *testing.T) {
	for _, ref := range []string{"", icc.BuiltinSRGB, "BUILTIN:SRGB"} {
		p, err := ResolveProfile(ref)
		if err != nil || p != icc.SRGB() {
			t.Fatalf("ResolveProfile(%q) = %v, %v", ref, p, err)
		}
	}
	if _, err := ResolveProfile(filepath.Join(t.TempDir(), "missing.icc")); !errors.Is(err, fileutil.ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
	path := filepath.Join(t.TempDir(), "custom.icc")
	if err := os.WriteFile(path, icc.SRGB().Raw, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := ResolveProfile(path)
	if err != nil || !p.Same(icc.SRGB()) {
		t.Fatalf("ResolveProfile(file) = %v, %v", p, err)
	}
}

func TestConvertProfileTagsResult(t *testing.T) {
	src := &Image{Pixels: pattern(2, 2), Format: "jpeg"}
	out, err := NewEngine(3).ConvertProfile(src, icc.SRGB(), icc.SRGB())
	if err != nil {
		t.Fatal(err)
	}
	if out.Profile != icc.SRGB() || out.Format != "jpeg" {
		t.Fatalf("unexpected result %+v", out)
	}
	if out.Pixels.NRGBAAt(1, 1) != src.Pixels.NRGBAAt(1, 1) {
		t.Fatal("identity conversion changed pixels")
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
