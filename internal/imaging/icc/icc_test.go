package icc

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinSRGBParses(t *testing.T) {
	p := SRGB()
	if p.ColorSpace != SpaceRGB || p.PCS != "XYZ" || p.Class != "mntr" {
		t.Fatalf("unexpected header: space=%q pcs=%q class=%q", p.ColorSpace, p.PCS, p.Class)
	}
	if p.Version != "4.3" {
		t.Fatalf("version = %q", p.Version)
	}
	if p.Description != "sRGB IEC61966-2.1 (imgpkg)" {
		t.Fatalf("description = %q", p.Description)
	}
	if !p.MatrixTRC() {
		t.Fatal("expected matrix/TRC profile")
	}
	if math.Abs(p.WhitePoint[0]-0.9642) > 1e-4 || math.Abs(p.WhitePoint[2]-0.8249) > 1e-4 {
		t.Fatalf("white point = %v", p.WhitePoint)
	}
	if math.Abs(p.colorants[0][0]-0.4360747) > 1e-4 {
		t.Fatalf("red colorant = %v", p.colorants[0])
	}
	if SRGB() != p {
		t.Fatal("expected shared built-in profile")
	}
}

func TestSRGBCurve(t *testing.T) {
	curve := SRGB().curves[0]
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.02, 0.02 / 12.92},
		{0.5, math.Pow((0.5+0.055)/1.055, 2.4)},
		{1, 1},
	}
	for _, tt := range tests {
		if got := curve.Eval(tt.in); math.Abs(got-tt.want) > 1e-4 {
			t.Fatalf("Eval(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCurveVariants(t *testing.T) {
	identity := []byte("curv\x00\x00\x00\x00\x00\x00\x00\x00")
	c, err := parseCurve(identity)
	if err != nil {
		t.Fatalf("identity curve: %v", err)
	}
	if got := c.Eval(0.3); math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("identity Eval = %v", got)
	}

	gamma := []byte("curv\x00\x00\x00\x00\x00\x00\x00\x01\x02\x00")
	c, err = parseCurve(gamma)
	if err != nil {
		t.Fatalf("gamma curve: %v", err)
	}
	if got := c.Eval(0.5); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("gamma 2.0 Eval(0.5) = %v", got)
	}

	table := []byte("curv\x00\x00\x00\x00\x00\x00\x00\x03\x00\x00\x40\x00\xff\xff")
	c, err = parseCurve(table)
	if err != nil {
		t.Fatalf("table curve: %v", err)
	}
	if got := c.Eval(0.25); math.Abs(got-float64(0x4000)/65535/2) > 1e-6 {
		t.Fatalf("table Eval(0.25) = %v", got)
	}

	if _, err := parseCurve([]byte("para\x00\x00\x00\x00\x00\x09\x00\x00")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for unknown para type, got %v", err)
	}
	if _, err := parseCurve([]byte("curv\x00\x00\x00\x00\x00\x00\x00\x05")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated table, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not a profile")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	data := append([]byte(nil), SRGB().Raw...)
	copy(data[36:40], "nope")
	if _, err := Parse(data); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for bad signature, got %v", err)
	}
	if _, err := Parse(SRGB().Raw[:200]); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated profile, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srgb.icc")
	if err := os.WriteFile(path, SRGB().Raw, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !p.Same(SRGB()) {
		t.Fatal("expected loaded profile to match built-in bytes")
	}
}

func TestLUTProfileUnsupported(t *testing.T) {
	b := newBuilder("prtr", SpaceRGB)
	b.text("desc", "Lookup only")
	b.add("A2B0", []byte("mft2\x00\x00\x00\x00"))
	p, err := Parse(b.bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.MatrixTRC() {
		t.Fatal("expected lookup-table profile")
	}
	if _, err := NewTransform(p, SRGB()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func fill(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := range 2 {
		for x := range 2 {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestSameProfileIsIdentity(t *testing.T) {
	tr, err := NewTransform(SRGB(), SRGB())
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Identity() {
		t.Fatal("expected identity transform")
	}
	in := fill(color.NRGBA{10, 200, 30, 128})
	out := tr.Apply(in)
	if out.NRGBAAt(1, 1) != in.NRGBAAt(1, 1) {
		t.Fatalf("identity changed pixel: %v", out.NRGBAAt(1, 1))
	}
}

func TestRoundTripThroughEquivalentProfile(t *testing.T) {
	// Same colorants and curves under different bytes forces the full path.
	b := newBuilder("mntr", SpaceRGB)
	b.text("desc", "sRGB copy")
	b.xyz("wtpt", D50)
	b.xyz("rXYZ", XYZ{0.4360747, 0.2225045, 0.0139322})
	b.xyz("gXYZ", XYZ{0.3850649, 0.7168786, 0.0971045})
	b.xyz("bXYZ", XYZ{0.1430804, 0.0606169, 0.7141733})
	trc := b.para(3, 2.4, 1/1.055, 0.055/1.055, 1/12.92, 0.04045)
	b.share("rTRC", trc)
	b.share("gTRC", trc)
	b.share("bTRC", trc)
	src, err := Parse(b.bytes())
	if err != nil {
		t.Fatal(err)
	}
	tr, err := NewTransform(src, SRGB())
	if err != nil {
		t.Fatal(err)
	}
	if tr.Identity() {
		t.Fatal("expected full transform")
	}
	for _, c := range []color.NRGBA{{0, 0, 0, 255}, {255, 255, 255, 255}, {12, 128, 240, 255}, {200, 3, 77, 9}} {
		got := tr.Apply(fill(c)).NRGBAAt(0, 0)
		for i, pair := range [][2]uint8{{got.R, c.R}, {got.G, c.G}, {got.B, c.B}} {
			if d := int(pair[0]) - int(pair[1]); d < -1 || d > 1 {
				t.Fatalf("channel %d of %v converted to %v", i, c, got)
			}
		}
		if got.A != c.A {
			t.Fatalf("alpha changed: %v -> %v", c, got)
		}
	}
}

func TestGrayToRGBStaysNeutral(t *testing.T) {
	b := newBuilder("mntr", SpaceGray)
	b.text("desc", "Gray gamma 2.2")
	b.xyz("wtpt", D50)
	b.gamma("kTRC", 2.2)
	gray, err := Parse(b.bytes())
	if err != nil {
		t.Fatal(err)
	}
	if gray.ColorSpace != SpaceGray || !gray.MatrixTRC() {
		t.Fatalf("unexpected gray profile %+v", gray)
	}
	tr, err := NewTransform(gray, SRGB())
	if err != nil {
		t.Fatal(err)
	}
	got := tr.Apply(fill(color.NRGBA{128, 128, 128, 255})).NRGBAAt(0, 0)
	if absDiff(got.R, got.G) > 1 || absDiff(got.G, got.B) > 1 {
		t.Fatalf("expected neutral output, got %v", got)
	}
	if got.R < 120 || got.R > 140 {
		t.Fatalf("unexpected gray level %v", got)
	}
}

func TestGrayTargetRejected(t *testing.T) {
	b := newBuilder("mntr", SpaceGray)
	b.gamma("kTRC", 1.8)
	gray, err := Parse(b.bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTransform(SRGB(), gray); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for gray target, got %v", err)
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
