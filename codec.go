package waffledb

import (
	"bytes"
	"encoding/binary"

	"github.com/waffledb/waffledb/internal/encoding"
)

// walRecord is one length-framed entry in the write-ahead log (§4.4):
//
//	u32 entrySize      (bytes following this field)
//	u64 sequence
//	u64 timestamp
//	f64 value
//	u32 metricLen;  metricLen bytes
//	u32 tagCount
//	repeat tagCount times:
//	  u32 keyLen;   keyLen bytes
//	  u32 valueLen; valueLen bytes
type walRecord struct {
	Sequence  uint64
	Timestamp uint64
	Value     float64
	Metric    string
	Tags      map[string]string
}

// encodeWALRecord serializes a single record including the outer
// entrySize length prefix.
func encodeWALRecord(rec walRecord) ([]byte, error) {
	body := &bytes.Buffer{}
	if err := binary.Write(body, binary.LittleEndian, rec.Sequence); err != nil {
		return nil, err
	}
	if err := binary.Write(body, binary.LittleEndian, rec.Timestamp); err != nil {
		return nil, err
	}
	if err := binary.Write(body, binary.LittleEndian, rec.Value); err != nil {
		return nil, err
	}
	if err := encoding.WriteString(body, rec.Metric); err != nil {
		return nil, err
	}
	if err := encoding.WriteTags(body, rec.Tags); err != nil {
		return nil, err
	}

	out := &bytes.Buffer{}
	if err := binary.Write(out, binary.LittleEndian, uint32(body.Len())); err != nil {
		return nil, err
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// decodeWALRecord parses one record body (the bytes following entrySize,
// exactly entrySize long). It fails with encoding.ErrCorrupt on any
// internal length violation, including tag keys/values over the 256-byte
// hard cap.
func decodeWALRecord(body []byte) (walRecord, error) {
	reader := bytes.NewReader(body)
	var rec walRecord

	if err := binary.Read(reader, binary.LittleEndian, &rec.Sequence); err != nil {
		return rec, encoding.ErrCorrupt
	}
	if err := binary.Read(reader, binary.LittleEndian, &rec.Timestamp); err != nil {
		return rec, encoding.ErrCorrupt
	}
	if err := binary.Read(reader, binary.LittleEndian, &rec.Value); err != nil {
		return rec, encoding.ErrCorrupt
	}
	metric, err := encoding.ReadString(reader)
	if err != nil {
		return rec, encoding.ErrCorrupt
	}
	rec.Metric = metric
	tags, err := encoding.ReadTags(reader)
	if err != nil {
		return rec, encoding.ErrCorrupt
	}
	rec.Tags = tags

	if reader.Len() != 0 {
		return rec, encoding.ErrCorrupt
	}

	return rec, nil
}
