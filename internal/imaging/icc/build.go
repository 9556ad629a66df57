package icc

import (
	"encoding/binary"
	"math"
	"sync"
	"unicode/utf16"
)

// BuiltinSRGB names the synthesized sRGB profile in configuration values.
const BuiltinSRGB = "builtin:srgb"

// D50 is the profile connection space illuminant.
var D50 = XYZ{0.9642, 1.0, 0.8249}

var srgb = sync.OnceValue(func() *Profile {
	b := newBuilder("mntr", SpaceRGB)
	b.text("desc", "sRGB IEC61966-2.1 (imgpkg)")
	b.text("cprt", "No copyright, use freely")
	b.xyz("wtpt", D50)
	b.xyz("rXYZ", XYZ{0.4360747, 0.2225045, 0.0139322})
	b.xyz("gXYZ", XYZ{0.3850649, 0.7168786, 0.0971045})
	b.xyz("bXYZ", XYZ{0.1430804, 0.0606169, 0.7141733})
	trc := b.para(3, 2.4, 1/1.055, 0.055/1.055, 1/12.92, 0.04045)
	b.share("rTRC", trc)
	b.share("gTRC", trc)
	b.share("bTRC", trc)
	b.sf32("chad", []float64{
		1.0478112, 0.0228866, -0.0501270,
		0.0295424, 0.9904844, -0.0170491,
		-0.0092345, 0.0150436, 0.7521316,
	})
	p, err := Parse(b.bytes())
	if err != nil {
		panic("icc: built-in sRGB profile: " + err.Error())
	}
	return p
})

// SRGB returns the built-in ICC v4 sRGB matrix/TRC profile. The returned
// profile is shared; callers must not modify it.
func SRGB() *Profile {
	return srgb()
}

type builtTag struct {
	sig  string
	data int
}

// builder assembles a v4 profile: header, tag table, then 4-byte aligned tag
// data. Tags registered with share point at an earlier element's data.
type builder struct {
	class, space string
	tags         []builtTag
	elements     [][]byte
}

func newBuilder(class, space string) *builder {
	return &builder{class: class, space: space}
}

func (b *builder) add(sig string, data []byte) int {
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	b.elements = append(b.elements, data)
	idx := len(b.elements) - 1
	b.tags = append(b.tags, builtTag{sig: sig, data: idx})
	return idx
}

func (b *builder) share(sig string, data int) {
	b.tags = append(b.tags, builtTag{sig: sig, data: data})
}

func (b *builder) text(sig, s string) {
	units := utf16.Encode([]rune(s))
	data := make([]byte, 28, 28+2*len(units))
	copy(data[0:4], "mluc")
	binary.BigEndian.PutUint32(data[8:12], 1)
	binary.BigEndian.PutUint32(data[12:16], 12)
	copy(data[16:20], "enUS")
	binary.BigEndian.PutUint32(data[20:24], uint32(2*len(units)))
	binary.BigEndian.PutUint32(data[24:28], 28)
	for _, u := range units {
		data = binary.BigEndian.AppendUint16(data, u)
	}
	b.add(sig, data)
}

func (b *builder) xyz(sig string, v XYZ) {
	data := make([]byte, 8, 20)
	copy(data[0:4], "XYZ ")
	for _, f := range v {
		data = appendFixed(data, f)
	}
	b.add(sig, data)
}

func (b *builder) para(kind int, params ...float64) int {
	data := make([]byte, 12, 12+4*len(params))
	copy(data[0:4], "para")
	binary.BigEndian.PutUint16(data[8:10], uint16(kind))
	for _, f := range params {
		data = appendFixed(data, f)
	}
	return b.add("", data)
}

func (b *builder) gamma(sig string, g float64) {
	data := make([]byte, 14)
	copy(data[0:4], "curv")
	binary.BigEndian.PutUint32(data[8:12], 1)
	binary.BigEndian.PutUint16(data[12:14], uint16(math.Round(g*256)))
	b.add(sig, data)
}

func (b *builder) sf32(sig string, values []float64) {
	data := make([]byte, 8, 8+4*len(values))
	copy(data[0:4], "sf32")
	for _, f := range values {
		data = appendFixed(data, f)
	}
	b.add(sig, data)
}

func (b *builder) bytes() []byte {
	var tags []builtTag
	for _, t := range b.tags {
		if t.sig != "" {
			tags = append(tags, t)
		}
	}
	offsets := make([]int, len(b.elements))
	pos := headerSize + 4 + 12*len(tags)
	for i, el := range b.elements {
		offsets[i] = pos
		pos += len(el)
	}

	out := make([]byte, headerSize, pos)
	binary.BigEndian.PutUint32(out[0:4], uint32(pos))
	out[8], out[9] = 4, 0x30
	copy(out[12:16], b.class)
	copy(out[16:20], padSig(b.space))
	copy(out[20:24], "XYZ ")
	binary.BigEndian.PutUint16(out[24:26], 2024)
	binary.BigEndian.PutUint16(out[26:28], 1)
	binary.BigEndian.PutUint16(out[28:30], 1)
	copy(out[36:40], "acsp")
	illuminant := make([]byte, 0, 12)
	for _, f := range D50 {
		illuminant = appendFixed(illuminant, f)
	}
	copy(out[68:80], illuminant)

	out = binary.BigEndian.AppendUint32(out, uint32(len(tags)))
	for _, t := range tags {
		out = append(out, t.sig...)
		out = binary.BigEndian.AppendUint32(out, uint32(offsets[t.data]))
		out = binary.BigEndian.AppendUint32(out, uint32(len(b.elements[t.data])))
	}
	for _, el := range b.elements {
		out = append(out, el...)
	}
	return out
}

func padSig(s string) string {
	for len(s) < 4 {
		s += " "
	}
	return s
}

func appendFixed(dst []byte, f float64) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(int32(math.Round(f*65536))))
}
