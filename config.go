package waffledb

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// S3Config holds the settings needed to address a bucket when
// StorageBackend is "s3".
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

// EncryptionConfigYAML holds at-rest key material loaded from YAML. It is
// deliberately separate from encryption.go's EncryptionConfig so a
// plaintext key never has to be a struct tag away from serialization.
type EncryptionConfigYAML struct {
	Enabled  bool   `yaml:"enabled"`
	Password string `yaml:"password"`
}

// Config holds the tunables of an Engine. Zero-value fields are filled in
// by DefaultConfig; LoadConfig starts from DefaultConfig and overlays
// whatever the YAML document sets.
type Config struct {
	// Path is the database name, resolved to <cwd>/.waffledb/<Path>/ per §6.
	Path string `yaml:"path"`

	// FlushInterval is how often the background flusher drains the
	// ingress queue into chunks. Default 100ms per §4.6.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// ChunkCapacity bounds the number of rows an active chunk accepts
	// before it is sealed. Default 1000 per §3.
	ChunkCapacity int `yaml:"chunk_capacity"`

	// WALSyncOnWrite flushes the WAL's buffered writer to the OS after
	// every append. Default true.
	WALSyncOnWrite bool `yaml:"wal_sync_on_write"`

	// StorageBackend selects the byte-blob backend chunks are persisted
	// to: "file" (default) or "s3".
	StorageBackend string `yaml:"storage_backend"`

	// Compression selects an optional envelope applied to sealed-chunk
	// bytes below the ChunkStore, outside the normative §6 byte layout:
	// "none" (default) or "snappy".
	Compression string `yaml:"compression"`

	S3         S3Config              `yaml:"s3"`
	Encryption EncryptionConfigYAML  `yaml:"encryption"`
}

// DefaultConfig returns the default tunables for a database named dbName,
// with no YAML involved.
func DefaultConfig(dbName string) Config {
	return Config{
		Path:           dbName,
		FlushInterval:  100 * time.Millisecond,
		ChunkCapacity:  ChunkCapacity,
		WALSyncOnWrite: true,
		StorageBackend: "file",
		Compression:    "none",
	}
}

// LoadConfig reads a YAML document at path and overlays it onto
// DefaultConfig(""). The Path field, if unset in YAML, must be set by the
// caller before use.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig("")

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, newStorageError(path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, newStorageError(path, err)
	}
	if cfg.ChunkCapacity <= 0 {
		cfg.ChunkCapacity = ChunkCapacity
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 100 * time.Millisecond
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "file"
	}
	if cfg.Compression == "" {
		cfg.Compression = "none"
	}
	return cfg, nil
}
