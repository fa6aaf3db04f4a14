package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrCorrupt is returned by decoders when a declared length or width code
// does not agree with the payload actually present.
var ErrCorrupt = errors.New("encoding: corrupt data")

// MaxTagLen is the hard cap, in bytes, on a tag key or tag value. It is part
// of the on-disk chunk format and the WAL record format: both reject any
// key or value longer than this during decode.
const MaxTagLen = 256

// WriteString writes a length-prefixed string to the buffer with no cap on
// length. Used for fields (such as metric names) that are not bound by the
// tag-length format contract.
func WriteString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

// ReadString reads a length-prefixed string with no cap on length.
func ReadString(reader *bytes.Reader) (string, error) {
	return ReadBoundedString(reader, 0)
}

// ReadBoundedString reads a length-prefixed string, failing with ErrCorrupt
// if the declared length exceeds maxLen (when maxLen > 0) or runs past the
// end of the reader.
func ReadBoundedString(reader *bytes.Reader, maxLen uint32) (string, error) {
	var length uint32
	if err := binary.Read(reader, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	if maxLen > 0 && length > maxLen {
		return "", ErrCorrupt
	}
	if int64(length) > int64(reader.Len()) {
		return "", ErrCorrupt
	}
	b := make([]byte, length)
	if _, err := reader.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteTags writes a tag map to the buffer as a count followed by
// (keyLen, key, valueLen, value) tuples. Keys and values longer than
// MaxTagLen are rejected so that a chunk or WAL file is never written in a
// form its own decoder would reject.
func WriteTags(buf *bytes.Buffer, tags map[string]string) error {
	if tags == nil {
		return binary.Write(buf, binary.LittleEndian, uint32(0))
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(tags))); err != nil {
		return err
	}
	for k, v := range tags {
		if len(k) > MaxTagLen || len(v) > MaxTagLen {
			return ErrCorrupt
		}
		if err := WriteString(buf, k); err != nil {
			return err
		}
		if err := WriteString(buf, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadTags reads a tag map, enforcing MaxTagLen on every key and value.
func ReadTags(reader *bytes.Reader) (map[string]string, error) {
	var count uint32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	tags := make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		key, err := ReadBoundedString(reader, MaxTagLen)
		if err != nil {
			return nil, err
		}
		val, err := ReadBoundedString(reader, MaxTagLen)
		if err != nil {
			return nil, err
		}
		tags[key] = val
	}
	return tags, nil
}
