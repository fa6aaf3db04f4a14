package waffledb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"
)

// walFileName is the write-ahead log's file name at the database root.
const walFileName = "wal.log"

// WAL is the append-only, length-framed write-ahead log described in
// §4.4. It is single-writer: all operations are serialized by mu, and
// recovery is performed before any writer goroutine starts, so readers
// never run concurrently with writers.
type WAL struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
	nextSeq uint64

	// syncOnWrite flushes the buffered writer to the OS after every
	// Append/AppendBatch call. When false, buffered records only reach
	// the OS at the next Checkpoint (the engine's periodic flush cycle)
	// or Close, trading per-write durability for throughput.
	syncOnWrite bool
}

// OpenWAL opens or creates the WAL file at path. syncOnWrite matches
// Config.WALSyncOnWrite.
func OpenWAL(path string, syncOnWrite bool) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &WAL{
		path:        path,
		file:        f,
		writer:      bufio.NewWriter(f),
		syncOnWrite: syncOnWrite,
	}, nil
}

// Append assigns the next sequence number and serializes a single point
// under the WAL lock, flushing immediately when syncOnWrite is set.
func (w *WAL) Append(p Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.appendLocked(p); err != nil {
		return err
	}
	if w.syncOnWrite {
		return w.writer.Flush()
	}
	return nil
}

// AppendBatch writes every point under one lock acquisition, flushing
// once at the end when syncOnWrite is set.
func (w *WAL) AppendBatch(points []Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range points {
		if err := w.appendLocked(p); err != nil {
			return err
		}
	}
	if w.syncOnWrite {
		return w.writer.Flush()
	}
	return nil
}

func (w *WAL) appendLocked(p Point) error {
	rec := walRecord{
		Sequence:  w.nextSeq,
		Timestamp: uint64(p.Timestamp),
		Value:     p.Value,
		Metric:    p.Metric,
		Tags:      p.Tags,
	}
	data, err := encodeWALRecord(rec)
	if err != nil {
		return err
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	w.nextSeq++
	return nil
}

// Checkpoint flushes buffered writes to the OS. No truncation occurs.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writer.Flush()
}

// Recover flushes pending writes, rewinds the already-open log file,
// reads it entirely into memory, and walks forward parsing entries. Any invalid entrySize (zero, or
// extending past EOF) or an internal length violation truncates recovery
// at that point: the valid prefix is returned and the remainder is
// assumed torn. nextSeq is advanced to max(sequence)+1 across every
// record successfully parsed.
func (w *WAL) Recover() ([]Point, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return nil, err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(w.file)
	if err != nil {
		return nil, err
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}

	var points []Point
	var maxSeq uint64
	sawAny := false

	offset := 0
	for {
		if offset+4 > len(data) {
			break
		}
		entrySize := binary.LittleEndian.Uint32(data[offset : offset+4])
		if entrySize == 0 {
			break
		}
		bodyStart := offset + 4
		bodyEnd := bodyStart + int(entrySize)
		if bodyEnd > len(data) {
			break
		}

		rec, err := decodeWALRecord(data[bodyStart:bodyEnd])
		if err != nil {
			break
		}

		points = append(points, Point{
			Metric:    rec.Metric,
			Tags:      rec.Tags,
			Value:     rec.Value,
			Timestamp: int64(rec.Timestamp),
		})
		if !sawAny || rec.Sequence > maxSeq {
			maxSeq = rec.Sequence
			sawAny = true
		}

		offset = bodyEnd
	}

	if sawAny {
		w.nextSeq = maxSeq + 1
	}

	return points, nil
}

// Clear closes, deletes, and recreates an empty WAL file, resetting
// nextSeq to 0.
func (w *WAL) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	w.nextSeq = 0
	return nil
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
