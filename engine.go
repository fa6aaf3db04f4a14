package waffledb

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// brand names the database root directory per §6: <cwd>/.<brand>db/<dbname>/.
const brand = "waffle"

// Engine is the top-level embedded database handle. One Engine owns one
// database directory; callers must not share a directory across processes.
type Engine struct {
	dbName string
	dbPath string

	cfg Config

	metricsMu sync.RWMutex
	metrics   map[string]struct{}

	chunksMu     sync.Mutex
	sealedChunks map[string][]*Chunk
	activeChunks map[string]*Chunk

	ingressQueue *IngressQueue
	wal          *WAL
	chunkStore   ChunkStore
	adaptive     AdaptiveIndex

	running  atomic.Bool
	flushDone chan struct{}
}

// Open creates or recovers a database at <cwd>/.<brand>db/<dbname>/ using
// the supplied config's tunables. cfg.Path is ignored in favor of dbName so
// callers may reuse one Config across differently-named databases.
func Open(dbName string, cfg Config) (*Engine, error) {
	root, err := dbRoot(dbName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, newStorageError(root, err)
	}

	wal, err := OpenWAL(filepath.Join(root, walFileName), cfg.WALSyncOnWrite)
	if err != nil {
		return nil, newStorageError(root, err)
	}

	var backend StorageBackend
	fileBackend, err := NewFileBackend(root)
	if err != nil {
		return nil, newStorageError(root, err)
	}
	backend = fileBackend
	if cfg.StorageBackend == "s3" {
		s3Backend, err := NewS3Backend(S3BackendConfig{
			Bucket: cfg.S3.Bucket,
			Region: cfg.S3.Region,
			Prefix: cfg.S3.Prefix,
		})
		if err != nil {
			return nil, newStorageError(root, err)
		}
		backend = s3Backend
	}
	if cfg.Compression == "snappy" {
		backend = NewCompressingBackend(backend)
	}
	if cfg.Encryption.Enabled {
		enc, err := NewEncryptor(EncryptionConfig{
			Enabled:     true,
			KeyPassword: cfg.Encryption.Password,
		})
		if err != nil {
			return nil, err
		}
		backend = NewEncryptingBackend(backend, enc)
	}
	store := NewBackendChunkStore(backend)

	e := &Engine{
		dbName:       dbName,
		dbPath:       root,
		cfg:          cfg,
		metrics:      make(map[string]struct{}),
		sealedChunks: make(map[string][]*Chunk),
		activeChunks: make(map[string]*Chunk),
		ingressQueue: NewIngressQueue(),
		wal:          wal,
		chunkStore:   store,
		adaptive:     NewAdaptiveIndex(),
		flushDone:    make(chan struct{}),
	}

	if err := e.recover(); err != nil {
		return nil, err
	}

	e.running.Store(true)
	go e.flushLoop()

	return e, nil
}

func dbRoot(dbName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "."+brand+"db", dbName), nil
}

// recover implements §4.6's recovery protocol.
func (e *Engine) recover() error {
	snap, err := readMetadata(filepath.Join(e.dbPath, metadataFileName))
	if err != nil {
		return newStorageError(e.dbPath, err)
	}

	for _, metric := range snap.Metrics {
		e.metrics[metric] = struct{}{}
	}
	for metric, count := range snap.ChunkCounts {
		e.metrics[metric] = struct{}{}
		for id := 0; id < count; id++ {
			chunk, err := e.chunkStore.Load(metric, id)
			if err != nil {
				log.Printf("waffledb: failed to load chunk %s/%d: %v", metric, id, err)
				continue
			}
			if chunk == nil {
				log.Printf("waffledb: missing or corrupt chunk %s/%d, skipping", metric, id)
				continue
			}
			e.sealedChunks[metric] = append(e.sealedChunks[metric], chunk)
			minTS, maxTS := chunk.TimeRange()
			e.adaptive.Register(metric, id, minTS, maxTS)
		}
	}

	hasExistingData := len(e.sealedChunks) > 0 || len(e.activeChunks) > 0

	if !hasExistingData {
		points, err := e.wal.Recover()
		if err != nil {
			return newStorageError(e.dbPath, err)
		}
		for _, p := range points {
			e.registerMetric(p.Metric)
			e.ingressQueue.Push(p)
		}
		e.flushOnce()
		if err := e.wal.Clear(); err != nil {
			return newStorageError(e.dbPath, err)
		}
		return nil
	}

	// WAL contents are superseded by chunks already persisted; see the
	// WAL-when-chunks-exist open question resolution.
	if err := e.wal.Clear(); err != nil {
		return newStorageError(e.dbPath, err)
	}
	return nil
}

func (e *Engine) flushLoop() {
	interval := e.cfg.FlushInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(e.flushDone)

	for e.running.Load() {
		<-ticker.C
		if !e.running.Load() {
			return
		}
		e.flushOnce()
	}
}

// flushOnce runs one flush cycle: drain the ingress queue, group by
// metric, append into active chunks (sealing as needed), checkpoint WAL.
func (e *Engine) flushOnce() {
	points := e.ingressQueue.DrainAll()
	if len(points) == 0 {
		if err := e.wal.Checkpoint(); err != nil {
			log.Printf("waffledb: WAL checkpoint failed: %v", err)
		}
		return
	}

	byMetric := make(map[string][]Point)
	for _, p := range points {
		byMetric[p.Metric] = append(byMetric[p.Metric], p)
	}

	e.chunksMu.Lock()
	for metric, pts := range byMetric {
		for _, p := range pts {
			active := e.activeChunks[metric]
			if active == nil {
				active = NewChunkWithCapacity(e.cfg.ChunkCapacity)
				e.activeChunks[metric] = active
			}
			if err := active.Append(uint64(p.Timestamp), p.Value, p.Tags); err != nil {
				e.sealActive(metric)
				active = NewChunkWithCapacity(e.cfg.ChunkCapacity)
				e.activeChunks[metric] = active
				if err := active.Append(uint64(p.Timestamp), p.Value, p.Tags); err != nil {
					log.Printf("waffledb: dropping point for %s: %v", metric, err)
					continue
				}
			}
			if !active.CanAppend() {
				e.sealActive(metric)
			}
		}
	}
	e.chunksMu.Unlock()

	if err := e.wal.Checkpoint(); err != nil {
		log.Printf("waffledb: WAL checkpoint failed: %v", err)
	}
}

// sealActive seals the current active chunk for metric, if any, and
// starts a fresh one. Must be called with chunksMu held.
func (e *Engine) sealActive(metric string) {
	active := e.activeChunks[metric]
	if active == nil || active.Count() == 0 {
		delete(e.activeChunks, metric)
		return
	}
	id := len(e.sealedChunks[metric])
	if err := e.chunkStore.Save(metric, id, active); err != nil {
		log.Printf("waffledb: failed to save sealed chunk %s/%d: %v", metric, id, err)
	}
	e.sealedChunks[metric] = append(e.sealedChunks[metric], active)
	minTS, maxTS := active.TimeRange()
	e.adaptive.Register(metric, id, minTS, maxTS)
	delete(e.activeChunks, metric)
}

func (e *Engine) registerMetric(metric string) {
	e.metricsMu.Lock()
	e.metrics[metric] = struct{}{}
	e.metricsMu.Unlock()
}

// Write WAL-appends and enqueues a single point.
func (e *Engine) Write(p Point) error {
	if !e.running.Load() {
		return ErrClosed
	}
	if err := ValidatePoint(&p); err != nil {
		return err
	}
	e.registerMetric(p.Metric)
	if err := e.wal.Append(p); err != nil {
		return newStorageError(e.dbPath, err)
	}
	e.ingressQueue.Push(p)
	return nil
}

// WriteBatch WAL-appends the batch under one lock acquisition, then
// enqueues each point.
func (e *Engine) WriteBatch(points []Point) error {
	if !e.running.Load() {
		return ErrClosed
	}
	for i := range points {
		if err := ValidatePoint(&points[i]); err != nil {
			return err
		}
	}
	for _, p := range points {
		e.registerMetric(p.Metric)
	}
	if err := e.wal.AppendBatch(points); err != nil {
		return newStorageError(e.dbPath, err)
	}
	for _, p := range points {
		e.ingressQueue.Push(p)
	}
	return nil
}

// Query returns tag-matching points for metric in [start, end], ascending
// by timestamp. An unknown metric, or a closed engine, returns an empty
// slice — Query has no error return, so a closed engine is treated the
// same way as a metric with no data rather than via ErrClosed.
func (e *Engine) Query(metric string, start, end uint64, tags map[string]string) []Point {
	if !e.running.Load() {
		return nil
	}
	e.chunksMu.Lock()
	defer e.chunksMu.Unlock()

	var out []Point
	if active := e.activeChunks[metric]; active != nil {
		out = append(out, collectFromChunk(active, metric, start, end, tags)...)
	}
	for _, chunk := range e.sealedChunks[metric] {
		out = append(out, collectFromChunk(chunk, metric, start, end, tags)...)
	}

	sortPointsByTimestamp(out)
	return out
}

// collectFromChunk implements §4.7's per-chunk pruning: skip chunks whose
// bounds don't intersect [start, end], then intersect time and tag index
// sets when tags are non-empty.
func collectFromChunk(c *Chunk, metric string, start, end uint64, tags map[string]string) []Point {
	minTS, maxTS := c.TimeRange()
	if c.Count() == 0 || maxTS < start || minTS > end {
		return nil
	}

	timeIdx := c.QueryTimeRange(start, end)
	if len(timeIdx) == 0 {
		return nil
	}

	var idx []int
	if len(tags) > 0 {
		tagIdx := c.QueryTags(tags)
		idx = intersectSortedInts(timeIdx, tagIdx)
	} else {
		idx = timeIdx
	}

	return c.pointsAt(metric, idx)
}

// pointsAt materializes TimePoints for the given row indices.
func (c *Chunk) pointsAt(metric string, idx []int) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Point, 0, len(idx))
	for _, i := range idx {
		out = append(out, Point{
			Metric:    metric,
			Tags:      copyTags(c.tags[i]),
			Value:     c.values[i],
			Timestamp: int64(c.timestamps[i]),
		})
	}
	return out
}

func intersectSortedInts(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func sortPointsByTimestamp(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})
}

// Sum aggregates matching values across sealed and active chunks. An
// empty matching range, unknown metric, or closed engine returns 0.0.
func (e *Engine) Sum(metric string, start, end uint64, tags map[string]string) float64 {
	if !e.running.Load() {
		return 0.0
	}
	var sum float64
	e.forEachChunk(metric, func(c *Chunk) {
		sum += chunkAggregate(c, start, end, tags, func(c *Chunk, s, e uint64) float64 { return c.Sum(s, e) })
	})
	return sum
}

// Min aggregates the minimum matching value. 0.0 when nothing matches or
// the engine is closed.
func (e *Engine) Min(metric string, start, end uint64, tags map[string]string) float64 {
	if !e.running.Load() {
		return 0.0
	}
	found := false
	var result float64
	e.forEachChunk(metric, func(c *Chunk) {
		idx := chunkMatchIndices(c, start, end, tags)
		for _, i := range idx {
			v := c.valueAt(i)
			if !found || v < result {
				result = v
				found = true
			}
		}
	})
	if !found {
		return 0.0
	}
	return result
}

// Max aggregates the maximum matching value. 0.0 when nothing matches or
// the engine is closed.
func (e *Engine) Max(metric string, start, end uint64, tags map[string]string) float64 {
	if !e.running.Load() {
		return 0.0
	}
	found := false
	var result float64
	e.forEachChunk(metric, func(c *Chunk) {
		idx := chunkMatchIndices(c, start, end, tags)
		for _, i := range idx {
			v := c.valueAt(i)
			if !found || v > result {
				result = v
				found = true
			}
		}
	})
	if !found {
		return 0.0
	}
	return result
}

// Avg accumulates sum and count across every chunk and divides once at
// the end, per §4.7 (component-wise averaging would be incorrect across
// unequally-sized chunk ranges). 0.0 when nothing matches or the engine
// is closed.
func (e *Engine) Avg(metric string, start, end uint64, tags map[string]string) float64 {
	if !e.running.Load() {
		return 0.0
	}
	var sum float64
	var count int
	e.forEachChunk(metric, func(c *Chunk) {
		idx := chunkMatchIndices(c, start, end, tags)
		for _, i := range idx {
			sum += c.valueAt(i)
		}
		count += len(idx)
	})
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// Count returns the number of matching points across sealed and active
// chunks. 0 when the engine is closed.
func (e *Engine) Count(metric string, start, end uint64, tags map[string]string) int {
	if !e.running.Load() {
		return 0
	}
	total := 0
	e.forEachChunk(metric, func(c *Chunk) {
		total += len(chunkMatchIndices(c, start, end, tags))
	})
	return total
}

func (e *Engine) forEachChunk(metric string, fn func(*Chunk)) {
	e.chunksMu.Lock()
	defer e.chunksMu.Unlock()
	if active := e.activeChunks[metric]; active != nil {
		fn(active)
	}
	for _, chunk := range e.sealedChunks[metric] {
		fn(chunk)
	}
}

func chunkMatchIndices(c *Chunk, start, end uint64, tags map[string]string) []int {
	minTS, maxTS := c.TimeRange()
	if c.Count() == 0 || maxTS < start || minTS > end {
		return nil
	}
	timeIdx := c.QueryTimeRange(start, end)
	if len(tags) == 0 {
		return timeIdx
	}
	return intersectSortedInts(timeIdx, c.QueryTags(tags))
}

func chunkAggregate(c *Chunk, start, end uint64, tags map[string]string, fn func(*Chunk, uint64, uint64) float64) float64 {
	if len(tags) == 0 {
		minTS, maxTS := c.TimeRange()
		if c.Count() == 0 || maxTS < start || minTS > end {
			return 0.0
		}
		return fn(c, start, end)
	}
	var sum float64
	for _, i := range chunkMatchIndices(c, start, end, tags) {
		sum += c.valueAt(i)
	}
	return sum
}

func (c *Chunk) valueAt(i int) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[i]
}

// GetMetrics returns a snapshot of known metric names.
func (e *Engine) GetMetrics() []string {
	e.metricsMu.RLock()
	defer e.metricsMu.RUnlock()
	out := make([]string, 0, len(e.metrics))
	for m := range e.metrics {
		out = append(out, m)
	}
	return out
}

// DeleteMetric removes a metric from the registry and drops its chunks,
// in memory and on disk, then persists metadata.
func (e *Engine) DeleteMetric(metric string) error {
	if !e.running.Load() {
		return ErrClosed
	}
	e.metricsMu.Lock()
	delete(e.metrics, metric)
	e.metricsMu.Unlock()

	e.chunksMu.Lock()
	delete(e.activeChunks, metric)
	delete(e.sealedChunks, metric)
	e.chunksMu.Unlock()

	e.adaptive.Forget(metric)

	if err := e.chunkStore.DeleteChunks(metric); err != nil {
		log.Printf("waffledb: failed to delete on-disk chunks for %s: %v", metric, err)
	}
	return e.persistMetadata()
}

func (e *Engine) persistMetadata() error {
	e.metricsMu.RLock()
	metrics := make([]string, 0, len(e.metrics))
	for m := range e.metrics {
		metrics = append(metrics, m)
	}
	e.metricsMu.RUnlock()

	e.chunksMu.Lock()
	counts := make(map[string]int, len(e.sealedChunks))
	for m, chunks := range e.sealedChunks {
		counts[m] = len(chunks)
	}
	e.chunksMu.Unlock()

	snap := metadataSnapshot{Metrics: metrics, ChunkCounts: counts}
	if err := writeMetadata(filepath.Join(e.dbPath, metadataFileName), snap); err != nil {
		return newStorageError(e.dbPath, err)
	}
	return nil
}

// Close implements the shutdown protocol of §4.6: stop the flusher, run
// one more flush, seal every non-empty active chunk, persist metadata,
// and release the WAL and chunk store.
func (e *Engine) Close() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	<-e.flushDone

	e.flushOnce()

	e.chunksMu.Lock()
	for metric := range e.activeChunks {
		e.sealActive(metric)
	}
	e.chunksMu.Unlock()

	if err := e.persistMetadata(); err != nil {
		log.Printf("waffledb: failed to persist metadata on close: %v", err)
	}

	return e.wal.Close()
}

// Destroy closes the engine and removes its database directory entirely.
func (e *Engine) Destroy() error {
	if err := e.Close(); err != nil {
		log.Printf("waffledb: error during destroy close: %v", err)
	}
	if err := os.RemoveAll(e.dbPath); err != nil {
		return fmt.Errorf("waffledb: failed to remove database directory: %w", err)
	}
	return nil
}
