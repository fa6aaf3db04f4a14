package waffledb

import (
	"context"

	"github.com/golang/snappy"
)

// CompressingBackend wraps a StorageBackend and snappy-compresses every
// value on Write, decompressing on Read. It sits below ChunkStore, so it
// transparently compresses whatever bytes BackendChunkStore serializes —
// sealed chunk files today — without touching the normative in-chunk
// byte layout of §6. Composes with EncryptingBackend in either order.
type CompressingBackend struct {
	backend StorageBackend
}

// NewCompressingBackend wraps backend with snappy framing.
func NewCompressingBackend(backend StorageBackend) *CompressingBackend {
	return &CompressingBackend{backend: backend}
}

func (b *CompressingBackend) Read(ctx context.Context, key string) ([]byte, error) {
	compressed, err := b.backend.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return snappy.Decode(nil, compressed)
}

func (b *CompressingBackend) Write(ctx context.Context, key string, data []byte) error {
	return b.backend.Write(ctx, key, snappy.Encode(nil, data))
}

func (b *CompressingBackend) Delete(ctx context.Context, key string) error {
	return b.backend.Delete(ctx, key)
}

func (b *CompressingBackend) List(ctx context.Context, prefix string) ([]string, error) {
	return b.backend.List(ctx, prefix)
}

func (b *CompressingBackend) Exists(ctx context.Context, key string) (bool, error) {
	return b.backend.Exists(ctx, key)
}

func (b *CompressingBackend) Close() error {
	return b.backend.Close()
}

// EncryptingBackend wraps a StorageBackend and encrypts every value at
// rest with an AES-GCM Encryptor, decrypting on Read. Optional; off by
// default.
type EncryptingBackend struct {
	backend   StorageBackend
	encryptor *Encryptor
}

// NewEncryptingBackend wraps backend with encryption at rest. Returns
// backend unchanged if enc is nil (encryption disabled).
func NewEncryptingBackend(backend StorageBackend, enc *Encryptor) StorageBackend {
	if enc == nil {
		return backend
	}
	return &EncryptingBackend{backend: backend, encryptor: enc}
}

func (b *EncryptingBackend) Read(ctx context.Context, key string) ([]byte, error) {
	ciphertext, err := b.backend.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return b.encryptor.Decrypt(ciphertext)
}

func (b *EncryptingBackend) Write(ctx context.Context, key string, data []byte) error {
	ciphertext, err := b.encryptor.Encrypt(data)
	if err != nil {
		return err
	}
	return b.backend.Write(ctx, key, ciphertext)
}

func (b *EncryptingBackend) Delete(ctx context.Context, key string) error {
	return b.backend.Delete(ctx, key)
}

func (b *EncryptingBackend) List(ctx context.Context, prefix string) ([]string, error) {
	return b.backend.List(ctx, prefix)
}

func (b *EncryptingBackend) Exists(ctx context.Context, key string) (bool, error) {
	return b.backend.Exists(ctx, key)
}

func (b *EncryptingBackend) Close() error {
	return b.backend.Close()
}

var (
	_ StorageBackend = (*CompressingBackend)(nil)
	_ StorageBackend = (*EncryptingBackend)(nil)
)
