package encoding

import "encoding/binary"

// EncodeDeltaTimestamps compresses a column of timestamps as a first value
// plus a run of deltas stored at the narrowest signed width that holds all
// of them. The width is one of 1, 2, 4 or 8 bytes and is recorded in the
// header so the decoder never has to guess it.
//
// Layout: first(u64) | n(u64) | bytesPerDelta(u8) | deltas[n-1 @ bytesPerDelta]
func EncodeDeltaTimestamps(ts []uint64) []byte {
	n := len(ts)
	if n == 0 {
		out := make([]byte, 17)
		out[16] = 1
		return out
	}

	deltas := make([]int64, n-1)
	width := byte(1)
	for i := 1; i < n; i++ {
		d := int64(ts[i]) - int64(ts[i-1])
		deltas[i-1] = d
		if w := widthForDelta(d); w > width {
			width = w
		}
	}

	out := make([]byte, 17+len(deltas)*int(width))
	binary.LittleEndian.PutUint64(out[0:], ts[0])
	binary.LittleEndian.PutUint64(out[8:], uint64(n))
	out[16] = width
	off := 17
	for _, d := range deltas {
		putSigned(out[off:off+int(width)], d, width)
		off += int(width)
	}
	return out
}

// DecodeDeltaTimestamps reverses EncodeDeltaTimestamps. It fails with
// ErrCorrupt when the declared width is not one of 1, 2, 4, 8, or when the
// payload is shorter than the header claims.
func DecodeDeltaTimestamps(data []byte) ([]uint64, error) {
	if len(data) < 17 {
		return nil, ErrCorrupt
	}
	first := binary.LittleEndian.Uint64(data[0:])
	n := binary.LittleEndian.Uint64(data[8:])
	width := data[16]
	if n == 0 {
		return []uint64{}, nil
	}
	switch width {
	case 1, 2, 4, 8:
	default:
		return nil, ErrCorrupt
	}

	deltaCount := int(n - 1)
	need := 17 + deltaCount*int(width)
	if need < 0 || len(data) < need {
		return nil, ErrCorrupt
	}

	out := make([]uint64, n)
	out[0] = first
	off := 17
	prev := int64(first)
	for i := 0; i < deltaCount; i++ {
		d := getSigned(data[off:off+int(width)], width)
		prev += d
		out[i+1] = uint64(prev)
		off += int(width)
	}
	return out, nil
}

// widthForDelta returns the narrowest of {1,2,4,8} bytes that can hold d as
// a signed two's-complement integer.
func widthForDelta(d int64) byte {
	switch {
	case d >= -(1<<7) && d <= (1<<7)-1:
		return 1
	case d >= -(1<<15) && d <= (1<<15)-1:
		return 2
	case d >= -(1<<31) && d <= (1<<31)-1:
		return 4
	default:
		return 8
	}
}

func putSigned(dst []byte, v int64, width byte) {
	switch width {
	case 1:
		dst[0] = byte(int8(v))
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	default:
		binary.LittleEndian.PutUint64(dst, uint64(v))
	}
}

func getSigned(src []byte, width byte) int64 {
	switch width {
	case 1:
		return int64(int8(src[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(src)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(src)))
	default:
		return int64(binary.LittleEndian.Uint64(src))
	}
}
