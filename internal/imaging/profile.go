package imaging

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
)

const (
	iccMarker     = "ICC_PROFILE\x00"
	maxJPEGChunk  = 65535 - 2 - len(iccMarker) - 2
	tiffICCTag    = 34675
	tiffUndefined = 7
)

func embeddedProfile(format string, data []byte) []byte {
	switch format {
	case "jpeg":
		return jpegProfile(data)
	case "png":
		return pngProfile(data)
	case "tiff":
		return tiffProfile(data)
	case "webp":
		return webpProfile(data)
	}
	return nil
}

// jpegProfile reassembles the APP2 ICC chunks that precede the scan data.
// Incomplete sequences yield nil.
func jpegProfile(data []byte) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil
	}
	chunks := map[byte][]byte{}
	var total byte
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			i++
			continue
		case marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			i = len(data)
			continue
		}
		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if length < 2 || i+2+length > len(data) {
			return nil
		}
		payload := data[i+4 : i+2+length]
		if marker == 0xE2 && len(payload) > len(iccMarker)+2 && string(payload[:len(iccMarker)]) == iccMarker {
			seq, count := payload[len(iccMarker)], payload[len(iccMarker)+1]
			chunks[seq] = payload[len(iccMarker)+2:]
			total = count
		}
		i += 2 + length
	}
	if total == 0 {
		return nil
	}
	var out []byte
	for seq := byte(1); seq <= total; seq++ {
		chunk, ok := chunks[seq]
		if !ok {
			return nil
		}
		out = append(out, chunk...)
		if seq == 255 {
			break
		}
	}
	return out
}

// spliceICC inserts APP2 ICC segments directly after the SOI marker.
func spliceICC(jpegData, profile []byte) []byte {
	if len(profile) == 0 || len(jpegData) < 2 {
		return jpegData
	}
	count := (len(profile) + maxJPEGChunk - 1) / maxJPEGChunk
	out := make([]byte, 0, len(jpegData)+len(profile)+count*(4+len(iccMarker)+2))
	out = append(out, jpegData[:2]...)
	for seq := 1; seq <= count; seq++ {
		start := (seq - 1) * maxJPEGChunk
		end := min(start+maxJPEGChunk, len(profile))
		chunk := profile[start:end]
		out = append(out, 0xFF, 0xE2)
		out = binary.BigEndian.AppendUint16(out, uint16(2+len(iccMarker)+2+len(chunk)))
		out = append(out, iccMarker...)
		out = append(out, byte(seq), byte(count))
		out = append(out, chunk...)
	}
	return append(out, jpegData[2:]...)
}

func pngProfile(data []byte) []byte {
	const sig = "\x89PNG\r\n\x1a\n"
	if len(data) < len(sig) || string(data[:len(sig)]) != sig {
		return nil
	}
	i := len(sig)
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		kind := string(data[i+4 : i+8])
		if length < 0 || i+12+length > len(data) {
			return nil
		}
		body := data[i+8 : i+8+length]
		switch kind {
		case "iCCP":
			nul := bytes.IndexByte(body, 0)
			if nul < 0 || nul+2 > len(body) || body[nul+1] != 0 {
				return nil
			}
			r, err := zlib.NewReader(bytes.NewReader(body[nul+2:]))
			if err != nil {
				return nil
			}
			defer r.Close()
			profile, err := io.ReadAll(r)
			if err != nil {
				return nil
			}
			return profile
		case "IDAT", "IEND":
			return nil
		}
		i += 12 + length
	}
	return nil
}

func tiffProfile(data []byte) []byte {
	if len(data) < 8 {
		return nil
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil
	}
	ifd := int(order.Uint32(data[4:8]))
	if ifd+2 > len(data) {
		return nil
	}
	n := int(order.Uint16(data[ifd : ifd+2]))
	for k := range n {
		e := ifd + 2 + 12*k
		if e+12 > len(data) {
			return nil
		}
		if order.Uint16(data[e:e+2]) != tiffICCTag {
			continue
		}
		count := int(order.Uint32(data[e+4 : e+8]))
		if count <= 4 {
			return bytes.Clone(data[e+8 : e+8+count])
		}
		off := int(order.Uint32(data[e+8 : e+12]))
		if off < 0 || off+count > len(data) {
			return nil
		}
		return bytes.Clone(data[off : off+count])
	}
	return nil
}

func webpProfile(data []byte) []byte {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil
	}
	i := 12
	for i+8 <= len(data) {
		kind := string(data[i : i+4])
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		if size < 0 || i+8+size > len(data) {
			return nil
		}
		if kind == "ICCP" {
			return bytes.Clone(data[i+8 : i+8+size])
		}
		i += 8 + size + size%2
	}
	return nil
}
