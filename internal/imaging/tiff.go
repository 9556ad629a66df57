package imaging

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
)

const (
	tiffShort    = 3
	tiffLong     = 4
	tiffRational = 5
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value uint32
}

// encodeTIFF writes img as a single-strip, uncompressed, little-endian RGB
// TIFF. Alpha is dropped. A non-empty profile is stored in the ICC tag.
func encodeTIFF(w io.Writer, img *image.NRGBA, profile []byte) error {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	stripBytes := uint64(width) * uint64(height) * 3
	if width == 0 || height == 0 {
		return fmt.Errorf("encode tiff: empty image")
	}

	entries := 13
	if len(profile) > 0 {
		entries++
	}
	off := uint64(8 + 2 + 12*entries + 4)
	bpsOff := off
	off += 6
	xresOff := off
	off += 8
	yresOff := off
	off += 8
	iccOff := off
	off += uint64(len(profile))
	pad := off % 2
	off += pad
	stripOff := off
	if stripOff+stripBytes > math.MaxUint32 {
		return fmt.Errorf("encode tiff: %dx%d exceeds the 4 GiB classic TIFF limit", width, height)
	}

	ifd := []ifdEntry{
		{256, tiffLong, 1, uint32(width)},
		{257, tiffLong, 1, uint32(height)},
		{258, tiffShort, 3, uint32(bpsOff)},
		{259, tiffShort, 1, 1},
		{262, tiffShort, 1, 2},
		{273, tiffLong, 1, uint32(stripOff)},
		{277, tiffShort, 1, 3},
		{278, tiffLong, 1, uint32(height)},
		{279, tiffLong, 1, uint32(stripBytes)},
		{282, tiffRational, 1, uint32(xresOff)},
		{283, tiffRational, 1, uint32(yresOff)},
		{284, tiffShort, 1, 1},
		{296, tiffShort, 1, 2},
	}
	if len(profile) > 0 {
		ifd = append(ifd, ifdEntry{tiffICCTag, tiffUndefined, uint32(len(profile)), uint32(iccOff)})
	}

	le := binary.LittleEndian
	head := make([]byte, 0, stripOff)
	head = append(head, 'I', 'I')
	head = le.AppendUint16(head, 42)
	head = le.AppendUint32(head, 8)
	head = le.AppendUint16(head, uint16(len(ifd)))
	for _, e := range ifd {
		head = le.AppendUint16(head, e.tag)
		head = le.AppendUint16(head, e.typ)
		head = le.AppendUint32(head, e.count)
		head = le.AppendUint32(head, e.value)
	}
	head = le.AppendUint32(head, 0)
	head = le.AppendUint16(head, 8)
	head = le.AppendUint16(head, 8)
	head = le.AppendUint16(head, 8)
	for range 2 {
		head = le.AppendUint32(head, 72)
		head = le.AppendUint32(head, 1)
	}
	head = append(head, profile...)
	if pad == 1 {
		head = append(head, 0)
	}
	if _, err := w.Write(head); err != nil {
		return err
	}

	row := make([]byte, 3*width)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		px := img.Pix[img.PixOffset(img.Rect.Min.X, y):]
		for x := range width {
			copy(row[3*x:3*x+3], px[4*x:4*x+3])
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
