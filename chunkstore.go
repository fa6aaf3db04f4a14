package waffledb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ChunkStore persists sealed chunks keyed by metric and dense chunk ID.
// Implementations write a file (or object) named "<metric>_<id>.chunk" per
// §4.3; the engine never sees which StorageBackend sits underneath.
type ChunkStore interface {
	Save(metric string, id int, chunk *Chunk) error
	Load(metric string, id int) (*Chunk, error)
	ListChunks(metric string) ([]int, error)
	DeleteChunks(metric string) error
}

var chunkFileRe = regexp.MustCompile(`^(.+)_(\d+)\.chunk$`)

func chunkFileName(metric string, id int) string {
	return fmt.Sprintf("%s_%d.chunk", metric, id)
}

// BackendChunkStore adapts a generic StorageBackend (file, memory, S3, ...)
// into the ChunkStore contract. Loading a missing or corrupt chunk returns
// (nil, nil) per §4.3 — chunk-store failures are lenient by design.
type BackendChunkStore struct {
	backend StorageBackend
}

// NewBackendChunkStore wraps a StorageBackend as a ChunkStore.
func NewBackendChunkStore(backend StorageBackend) *BackendChunkStore {
	return &BackendChunkStore{backend: backend}
}

func (s *BackendChunkStore) Save(metric string, id int, chunk *Chunk) error {
	data, err := chunk.Serialize()
	if err != nil {
		return err
	}
	return s.backend.Write(context.Background(), chunkFileName(metric, id), data)
}

func (s *BackendChunkStore) Load(metric string, id int) (*Chunk, error) {
	data, err := s.backend.Read(context.Background(), chunkFileName(metric, id))
	if err != nil {
		return nil, nil
	}
	chunk, err := DeserializeChunk(data)
	if err != nil {
		return nil, nil
	}
	return chunk, nil
}

func (s *BackendChunkStore) ListChunks(metric string) ([]int, error) {
	keys, err := s.backend.List(context.Background(), "")
	if err != nil {
		return nil, err
	}
	var ids []int
	prefix := metric + "_"
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		m := chunkFileRe.FindStringSubmatch(k)
		if m == nil || m[1] != metric {
			continue
		}
		id, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *BackendChunkStore) DeleteChunks(metric string) error {
	ids, err := s.ListChunks(metric)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_ = s.backend.Delete(context.Background(), chunkFileName(metric, id))
	}
	return nil
}

