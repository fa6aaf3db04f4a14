package encoding

import (
	"bytes"
	"encoding/binary"
)

// EncodeRawFloat64 encodes float64 values without compression. It is the
// uncompressed counterpart to EncodeRLEFloat64; nothing in this package
// chooses between the two.
func EncodeRawFloat64(values []float64) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(values)))
	for _, v := range values {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// DecodeRawFloat64 decodes raw-encoded float64 values.
func DecodeRawFloat64(data []byte) ([]float64, error) {
	reader := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make([]float64, 0, count)
	for i := uint32(0); i < count; i++ {
		var v float64
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
