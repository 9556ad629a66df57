package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
)

// DefaultQuality is the JPEG quality used when SaveOptions leaves it unset.
const DefaultQuality = 80

func encodeJPEG(w io.Writer, img *image.NRGBA, quality int, profile []byte) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, opaque(img), &jpeg.Options{Quality: quality}); err != nil {
		return err
	}
	_, err := w.Write(spliceICC(buf.Bytes(), profile))
	return err
}

// opaque returns img with alpha forced to 255 so the encoder does not
// premultiply translucent pixels.
func opaque(img *image.NRGBA) *image.NRGBA {
	translucent := false
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xFF {
			translucent = true
			break
		}
	}
	if !translucent {
		return img
	}
	out := &image.NRGBA{Pix: bytes.Clone(img.Pix), Stride: img.Stride, Rect: img.Rect}
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xFF
	}
	return out
}
