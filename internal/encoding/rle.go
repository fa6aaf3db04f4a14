package encoding

import (
	"bytes"
	"encoding/binary"
	"math"
)

// EncodeRLEFloat64 compresses a column of values as a sequence of runs. Each
// run is a (runLen uint16, value float64) pair; consecutive values are
// merged into one run only when they are bit-exact equal, so a run never
// silently collapses values that differ only in how a NaN or signed zero is
// represented.
//
// Layout: n(u32) | runs[(runLen:u16, value:f64)]
func EncodeRLEFloat64(values []float64) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(values)))
	if len(values) == 0 {
		return buf.Bytes()
	}

	runVal := values[0]
	runLen := uint16(1)
	flush := func() {
		_ = binary.Write(buf, binary.LittleEndian, runLen)
		_ = binary.Write(buf, binary.LittleEndian, runVal)
	}
	for i := 1; i < len(values); i++ {
		if bitEqual(values[i], runVal) && runLen < math.MaxUint16 {
			runLen++
			continue
		}
		flush()
		runVal = values[i]
		runLen = 1
	}
	flush()
	return buf.Bytes()
}

// DecodeRLEFloat64 reverses EncodeRLEFloat64, failing with ErrCorrupt if the
// run lengths present don't add up to the declared count.
func DecodeRLEFloat64(data []byte) ([]float64, error) {
	reader := bytes.NewReader(data)
	var n uint32
	if err := binary.Read(reader, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]float64, 0, n)
	for uint32(len(out)) < n {
		var runLen uint16
		if err := binary.Read(reader, binary.LittleEndian, &runLen); err != nil {
			return nil, ErrCorrupt
		}
		var v float64
		if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
			return nil, ErrCorrupt
		}
		for i := uint16(0); i < runLen; i++ {
			out = append(out, v)
		}
	}
	if uint32(len(out)) != n {
		return nil, ErrCorrupt
	}
	return out, nil
}

func bitEqual(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}
