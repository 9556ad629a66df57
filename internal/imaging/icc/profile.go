package icc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf16"
)

var (
	// ErrMalformed reports profile bytes that do not follow the ICC layout.
	ErrMalformed = errors.New("icc: malformed profile")
	// ErrUnsupported reports a profile whose transform model is not matrix/TRC.
	ErrUnsupported = errors.New("icc: unsupported profile")
)

const headerSize = 128

// Color spaces recognized in the profile header.
const (
	SpaceRGB  = "RGB"
	SpaceGray = "GRAY"
)

// XYZ is a CIE tristimulus value in profile connection space.
type XYZ [3]float64

// Profile is a parsed ICC profile. Raw keeps the exact bytes so a profile can
// be embedded into derivatives unchanged.
type Profile struct {
	Raw         []byte
	Version     string
	Class       string
	ColorSpace  string
	PCS         string
	Description string
	WhitePoint  XYZ

	colorants [3]XYZ
	curves    [3]Curve
	gray      Curve
	matrix    bool
}

// Load reads and parses the profile stored at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

type tagEntry struct {
	offset uint32
	size   uint32
}

// Parse decodes the header and the tags needed for matrix/TRC transforms.
// Profiles built on lookup tables parse successfully but report
// ErrUnsupported from NewTransform.
func Parse(data []byte) (*Profile, error) {
	if len(data) < headerSize+4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	size := binary.BigEndian.Uint32(data[0:4])
	if int(size) > len(data) || size < headerSize+4 {
		return nil, fmt.Errorf("%w: declared size %d, have %d", ErrMalformed, size, len(data))
	}
	data = data[:size]
	if string(data[36:40]) != "acsp" {
		return nil, fmt.Errorf("%w: missing acsp signature", ErrMalformed)
	}

	p := &Profile{
		Raw:        bytes.Clone(data),
		Version:    fmt.Sprintf("%d.%d", data[8], data[9]>>4),
		Class:      strings.TrimSpace(string(data[12:16])),
		ColorSpace: strings.TrimSpace(string(data[16:20])),
		PCS:        strings.TrimSpace(string(data[20:24])),
	}

	count := binary.BigEndian.Uint32(data[128:132])
	if uint64(count)*12+132 > uint64(len(data)) {
		return nil, fmt.Errorf("%w: tag table overruns profile", ErrMalformed)
	}
	tags := make(map[string]tagEntry, count)
	for i := range int(count) {
		base := 132 + i*12
		entry := tagEntry{
			offset: binary.BigEndian.Uint32(data[base+4 : base+8]),
			size:   binary.BigEndian.Uint32(data[base+8 : base+12]),
		}
		if uint64(entry.offset)+uint64(entry.size) > uint64(len(data)) || entry.size < 8 {
			return nil, fmt.Errorf("%w: tag %q out of range", ErrMalformed, data[base:base+4])
		}
		tags[string(data[base:base+4])] = entry
	}
	tag := func(sig string) ([]byte, bool) {
		e, ok := tags[sig]
		if !ok {
			return nil, false
		}
		return data[e.offset : e.offset+e.size], true
	}

	if raw, ok := tag("desc"); ok {
		p.Description = parseText(raw)
	}
	if raw, ok := tag("wtpt"); ok {
		if xyz, err := parseXYZ(raw); err == nil {
			p.WhitePoint = xyz
		}
	}

	switch p.ColorSpace {
	case SpaceRGB:
		names := [3][2]string{{"rXYZ", "rTRC"}, {"gXYZ", "gTRC"}, {"bXYZ", "bTRC"}}
		complete := true
		for i, pair := range names {
			colorant, okC := tag(pair[0])
			trc, okT := tag(pair[1])
			if !okC || !okT {
				complete = false
				break
			}
			xyz, err := parseXYZ(colorant)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pair[0], err)
			}
			curve, err := parseCurve(trc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pair[1], err)
			}
			p.colorants[i] = xyz
			p.curves[i] = curve
		}
		p.matrix = complete
	case SpaceGray:
		if trc, ok := tag("kTRC"); ok {
			curve, err := parseCurve(trc)
			if err != nil {
				return nil, fmt.Errorf("kTRC: %w", err)
			}
			p.gray = curve
			p.matrix = true
		}
	}
	return p, nil
}

// MatrixTRC reports whether the profile can be transformed by this package.
func (p *Profile) MatrixTRC() bool {
	return p != nil && p.matrix && p.PCS == "XYZ"
}

// Same reports whether p and other carry identical bytes.
func (p *Profile) Same(other *Profile) bool {
	if p == nil || other == nil {
		return p == other
	}
	return bytes.Equal(p.Raw, other.Raw)
}

func (p *Profile) String() string {
	if p == nil {
		return "<none>"
	}
	if p.Description != "" {
		return p.Description
	}
	return fmt.Sprintf("%s %s profile v%s", p.ColorSpace, p.Class, p.Version)
}

func s15Fixed16(b []byte) float64 {
	return float64(int32(binary.BigEndian.Uint32(b))) / 65536
}

func parseXYZ(raw []byte) (XYZ, error) {
	if len(raw) < 20 || string(raw[0:4]) != "XYZ " {
		return XYZ{}, fmt.Errorf("%w: bad XYZ tag", ErrMalformed)
	}
	return XYZ{s15Fixed16(raw[8:12]), s15Fixed16(raw[12:16]), s15Fixed16(raw[16:20])}, nil
}

// parseText handles both the v2 textDescription and the v4 multiLocalizedUnicode
// layouts. The first mluc record wins.
func parseText(raw []byte) string {
	switch string(raw[0:4]) {
	case "desc":
		if len(raw) < 12 {
			return ""
		}
		n := binary.BigEndian.Uint32(raw[8:12])
		if uint64(n)+12 > uint64(len(raw)) {
			return ""
		}
		return strings.TrimRight(string(raw[12:12+n]), "\x00 ")
	case "mluc":
		if len(raw) < 28 || binary.BigEndian.Uint32(raw[8:12]) == 0 {
			return ""
		}
		length := binary.BigEndian.Uint32(raw[20:24])
		offset := binary.BigEndian.Uint32(raw[24:28])
		if uint64(offset)+uint64(length) > uint64(len(raw)) || length%2 != 0 {
			return ""
		}
		units := make([]uint16, length/2)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(raw[int(offset)+2*i:])
		}
		return strings.TrimRight(string(utf16.Decode(units)), "\x00 ")
	case "text":
		return strings.TrimRight(string(raw[8:]), "\x00 ")
	}
	return ""
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
